package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/brightloop-io/modbus-toolkit/client"
	"github.com/brightloop-io/modbus-toolkit/common"
	"github.com/brightloop-io/modbus-toolkit/logging"
	"github.com/brightloop-io/modbus-toolkit/transport"
)

func main() {
	port := pflag.IntP("port", "p", common.DefaultTCPPort, "TCP port to connect to")
	unitID := pflag.Uint8P("unit-id", "u", 1, "unit id to address requests to")
	timeoutMS := pflag.IntP("timeout", "t", 5000, "connection and request timeout in milliseconds")
	verbose := pflag.BoolP("verbose", "v", false, "enable info-level logging")
	debug := pflag.Bool("debug", false, "enable debug-level logging")
	help := pflag.BoolP("help", "h", false, "show this help message and exit")
	pflag.Parse()

	args := pflag.Args()
	if *help || len(args) < 2 {
		usage()
		if *help {
			os.Exit(0)
		}
		os.Exit(1)
	}

	host, command, commandArgs := args[0], args[1], args[2:]

	logLevel := common.LevelWarn
	switch {
	case *debug:
		logLevel = common.LevelDebug
	case *verbose:
		logLevel = common.LevelInfo
	}
	logger := logging.NewLogger(logging.WithLevel(logLevel))
	timeout := time.Duration(*timeoutMS) * time.Millisecond

	modbusClient := client.NewTCPClient(
		host,
		transport.WithPort(*port),
		transport.WithTimeoutOption(timeout),
		transport.WithTransportLogger(logger),
	).WithOptions(
		client.WithTCPUnitID(common.UnitID(*unitID)),
		client.WithTCPLogger(logger),
	)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := modbusClient.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: connect: %v\n", err)
		os.Exit(1)
	}
	defer modbusClient.Disconnect(context.Background())

	if err := runCommand(ctx, modbusClient, command, commandArgs); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, c common.Client, command string, args []string) error {
	switch command {
	case "read-coils":
		address, count, err := parseAddrCount(args)
		if err != nil {
			return err
		}
		values, err := c.ReadCoils(ctx, address, count)
		if err != nil {
			return err
		}
		printBits(address, values)
		return nil

	case "read-holding":
		address, count, err := parseAddrCount(args)
		if err != nil {
			return err
		}
		values, err := c.ReadHoldingRegisters(ctx, address, count)
		if err != nil {
			return err
		}
		printRegisters(address, values)
		return nil

	case "write-coil":
		if len(args) != 2 {
			return fmt.Errorf("write-coil requires ADDR {0|1}")
		}
		address, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		value, err := strconv.Atoi(args[1])
		if err != nil || (value != 0 && value != 1) {
			return fmt.Errorf("coil value must be 0 or 1")
		}
		if err := c.WriteSingleCoil(ctx, address, common.CoilValue(value == 1)); err != nil {
			return err
		}
		fmt.Printf("wrote coil %d = %d\n", address, value)
		return nil

	case "write-register":
		if len(args) != 2 {
			return fmt.Errorf("write-register requires ADDR VALUE")
		}
		address, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		value, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid register value %q: %w", args[1], err)
		}
		if err := c.WriteSingleRegister(ctx, address, common.RegisterValue(value)); err != nil {
			return err
		}
		fmt.Printf("wrote register %d = %d\n", address, value)
		return nil

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func parseAddress(s string) (common.Address, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return common.Address(v), nil
}

func parseAddrCount(args []string) (common.Address, common.Quantity, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("command requires ADDR COUNT")
	}
	address, err := parseAddress(args[0])
	if err != nil {
		return 0, 0, err
	}
	count, err := strconv.ParseUint(args[1], 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid count %q: %w", args[1], err)
	}
	return address, common.Quantity(count), nil
}

func printBits(base common.Address, values []common.CoilValue) {
	for i, v := range values {
		bit := 0
		if v {
			bit = 1
		}
		fmt.Printf("%d: %d\n", int(base)+i, bit)
	}
}

func printRegisters(base common.Address, values []common.RegisterValue) {
	for i, v := range values {
		fmt.Printf("%d: %d\n", int(base)+i, v)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s [flags] HOST COMMAND [ARGS...]

Commands:
  read-coils ADDR COUNT
  read-holding ADDR COUNT
  write-coil ADDR {0|1}
  write-register ADDR VALUE

Flags:
`, os.Args[0])
	pflag.PrintDefaults()
}
