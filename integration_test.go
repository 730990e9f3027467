package gomodbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brightloop-io/modbus-toolkit/client"
	"github.com/brightloop-io/modbus-toolkit/common"
	"github.com/brightloop-io/modbus-toolkit/logging"
	"github.com/brightloop-io/modbus-toolkit/server"
	"github.com/brightloop-io/modbus-toolkit/store"
	"github.com/brightloop-io/modbus-toolkit/transport"
)

// TestClientServerIntegration performs an integration test with a real TCP client and server.
func TestClientServerIntegration(t *testing.T) {
	logger := logging.NewLogger(logging.WithLevel(common.LevelDebug))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dataStore := store.NewMemoryStore()
	dataStore.SetCoil(common.Address(1000), true)
	dataStore.SetCoil(common.Address(1001), false)
	dataStore.SetCoil(common.Address(1002), true)

	dataStore.SetHoldingRegister(common.Address(2000), 0x1234)
	dataStore.SetHoldingRegister(common.Address(2001), 0x5678)

	dataStore.SetInputRegister(common.Address(3000), 0xABCD)
	dataStore.SetInputRegister(common.Address(3001), 0xEF01)

	serverPort, err := common.FindFreePortTCP()
	require.NoError(t, err)

	modbusServer := server.NewTCPServer(
		"127.0.0.1",
		server.WithServerPort(serverPort),
		server.WithServerLogger(logger),
		server.WithServerDataStore(dataStore),
	)

	serverErrCh := make(chan error, 1)
	go func() { serverErrCh <- modbusServer.Start(ctx) }()

	time.Sleep(100 * time.Millisecond)

	modbusClient := client.NewTCPClient(
		"127.0.0.1",
		transport.WithPort(serverPort),
		transport.WithTimeoutOption(5*time.Second),
		transport.WithTransportLogger(logger),
	).WithOptions(
		client.WithTCPUnitID(1),
		client.WithTCPLogger(logger),
	)

	require.NoError(t, modbusClient.Connect(ctx))
	defer modbusClient.Disconnect(context.Background())

	coils, err := modbusClient.ReadCoils(ctx, common.Address(1000), common.Quantity(3))
	require.NoError(t, err)
	require.Equal(t, []common.CoilValue{true, false, true}, coils)

	holdingRegisters, err := modbusClient.ReadHoldingRegisters(ctx, common.Address(2000), common.Quantity(2))
	require.NoError(t, err)
	require.Equal(t, []common.RegisterValue{0x1234, 0x5678}, holdingRegisters)

	inputRegisters, err := modbusClient.ReadInputRegisters(ctx, common.Address(3000), common.Quantity(2))
	require.NoError(t, err)
	require.Equal(t, []common.InputRegisterValue{0xABCD, 0xEF01}, inputRegisters)

	require.NoError(t, modbusClient.WriteSingleCoil(ctx, common.Address(1010), common.CoilValue(true)))
	coilValue, ok := dataStore.GetCoil(common.Address(1010))
	require.True(t, ok)
	require.True(t, bool(coilValue))

	require.NoError(t, modbusClient.WriteSingleRegister(ctx, common.Address(2010), common.RegisterValue(0x4321)))
	registerValue, ok := dataStore.GetHoldingRegister(common.Address(2010))
	require.True(t, ok)
	require.Equal(t, common.RegisterValue(0x4321), registerValue)

	coilValues := []common.CoilValue{true, false, true, false}
	require.NoError(t, modbusClient.WriteMultipleCoils(ctx, common.Address(1020), coilValues))
	for i, expected := range coilValues {
		addr := common.Address(1020 + i)
		got, ok := dataStore.GetCoil(addr)
		require.True(t, ok)
		require.Equal(t, expected, got)
	}

	registerValues := []common.RegisterValue{0x1111, 0x2222, 0x3333}
	require.NoError(t, modbusClient.WriteMultipleRegisters(ctx, common.Address(2020), registerValues))
	for i, expected := range registerValues {
		addr := common.Address(2020 + i)
		got, ok := dataStore.GetHoldingRegister(addr)
		require.True(t, ok)
		require.Equal(t, expected, got)
	}

	require.NoError(t, modbusServer.Stop(ctx))

	select {
	case err := <-serverErrCh:
		require.True(t, err == nil || err == context.Canceled)
	default:
		// Server is still running, this is fine.
	}
}
