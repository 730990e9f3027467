package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/brightloop-io/modbus-toolkit/common"
	"github.com/brightloop-io/modbus-toolkit/logging"
	"github.com/brightloop-io/modbus-toolkit/server"
	"github.com/brightloop-io/modbus-toolkit/store"
)

func main() {
	bind := pflag.StringP("bind", "b", "0.0.0.0", "address to bind to")
	port := pflag.IntP("port", "p", common.DefaultTCPPort, "TCP port to listen on")
	unitID := pflag.Uint8P("unit-id", "u", 1, "unit id this server answers for")
	maxConnections := pflag.Int64P("max-connections", "c", 10, "maximum concurrent client connections")
	verbose := pflag.BoolP("verbose", "v", false, "enable info-level logging")
	debug := pflag.Bool("debug", false, "enable debug-level logging")
	help := pflag.BoolP("help", "h", false, "show this help message and exit")
	pflag.Parse()

	if *help {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", os.Args[0])
		pflag.PrintDefaults()
		os.Exit(0)
	}

	logLevel := common.LevelWarn
	switch {
	case *debug:
		logLevel = common.LevelDebug
	case *verbose:
		logLevel = common.LevelInfo
	}
	logger := logging.NewLogger(logging.WithLevel(logLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dataStore := store.NewMemoryStore()
	preloadSampleData(dataStore, logger)

	modbusServer := server.NewTCPServer(
		*bind,
		server.WithServerPort(*port),
		server.WithServerLogger(logger),
		server.WithServerDataStore(dataStore),
		server.WithServerUnitID(common.UnitID(*unitID)),
		server.WithMaxConnections(*maxConnections),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info(ctx, "received shutdown signal, stopping server")
		if err := modbusServer.Stop(ctx); err != nil {
			logger.Error(ctx, "error stopping server: %v", err)
		}
		cancel()
	}()

	logger.Info(ctx, "starting modbus TCP server on %s:%d", *bind, *port)
	if err := modbusServer.Start(ctx); err != nil {
		logger.Error(ctx, "failed to start server: %v", err)
		os.Exit(1)
	}

	// Demonstrate changing register values so a connected client has
	// something live to read.
	go func() {
		tick := time.NewTicker(1 * time.Second)
		defer tick.Stop()

		counter := common.RegisterValue(0)
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				counter++
				dataStore.SetInputRegister(common.Address(1000), common.InputRegisterValue(counter))
				dataStore.SetInputRegister(common.Address(1001), common.InputRegisterValue(time.Now().Unix()&0xFFFF))
				dataStore.SetHoldingRegister(common.Address(2000), common.RegisterValue(counter))
				dataStore.SetCoil(common.Address(3000), common.CoilValue(counter%2 == 0))
			}
		}
	}()

	<-ctx.Done()
	logger.Info(ctx, "server shutdown complete")
}

// preloadSampleData initializes the data store with sample values so a
// freshly started server has something to read before a client writes to it.
func preloadSampleData(dataStore *store.MemoryStore, logger common.LoggerInterface) {
	ctx := context.Background()

	coilValues := []common.CoilValue{true, false, true, true, false}
	for i, value := range coilValues {
		dataStore.SetCoil(common.Address(i), value)
	}

	diValues := []common.DiscreteInputValue{false, true, false, true, true}
	for i, value := range diValues {
		dataStore.SetDiscreteInput(common.Address(i), value)
	}

	hrValues := []common.RegisterValue{1000, 2000, 3000, 4000, 5000}
	for i, value := range hrValues {
		dataStore.SetHoldingRegister(common.Address(i), value)
	}

	irValues := []common.InputRegisterValue{100, 200, 300, 400, 500}
	for i, value := range irValues {
		dataStore.SetInputRegister(common.Address(i), value)
	}

	dataStore.SetHoldingRegister(common.Address(5000), common.RegisterValue(12345))

	logger.Debug(ctx, "preloaded sample data:\n%s", dataStore.DumpRegisters())
}
