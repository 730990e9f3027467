package client

import (
	"context"
	"time"

	"github.com/brightloop-io/modbus-toolkit/common"
	"github.com/brightloop-io/modbus-toolkit/logging"
	"github.com/brightloop-io/modbus-toolkit/protocol"
	"github.com/brightloop-io/modbus-toolkit/transport"
)

// BaseClient provides common functionality for all Modbus clients.
// It uses a Transport for low-level communication.
type BaseClient struct {
	logger    common.LoggerInterface
	transport common.Transport
	protocol  common.Protocol
	unitID    common.UnitID
}

// Option is a function that configures a BaseClient
type Option func(*BaseClient)

// WithLogger sets the logger for the client
func WithLogger(logger common.LoggerInterface) Option {
	return func(c *BaseClient) {
		c.logger = logger

		// Propagate logger to transport and protocol if possible
		if c.transport != nil {
			c.transport = c.transport.WithLogger(logger)
		}
		if c.protocol != nil {
			c.protocol = c.protocol.WithLogger(logger)
		}
	}
}

// WithUnitID sets the unit ID for the client
func WithUnitID(unitID common.UnitID) Option {
	return func(c *BaseClient) {
		c.unitID = unitID
	}
}

// WithProtocol sets the protocol handler for the client
func WithProtocol(protocol common.Protocol) Option {
	return func(c *BaseClient) {
		c.protocol = protocol
	}
}

// NewBaseClient creates a new BaseClient.
func NewBaseClient(transport common.Transport, options ...Option) *BaseClient {
	client := &BaseClient{
		logger:    logging.NewLogger(),
		transport: transport,
		protocol:  protocol.NewProtocolHandler(),
		unitID:    0, // Default unit ID
	}

	// Apply options
	for _, option := range options {
		option(client)
	}

	return client
}

// WithLogger returns a new client with the given logger
func (c *BaseClient) WithLogger(logger common.LoggerInterface) common.Client {
	// Create a copy of the client with the new logger
	return NewBaseClient(
		c.transport,
		WithLogger(logger),
		WithUnitID(c.unitID),
		WithProtocol(c.protocol),
	)
}

// Connect establishes a connection to the Modbus server.
func (c *BaseClient) Connect(ctx context.Context) error {
	c.logger.Info(ctx, "Connecting to Modbus server with unit ID %d", c.unitID)
	return c.transport.Connect(ctx)
}

// Disconnect closes the connection to the Modbus server.
func (c *BaseClient) Disconnect(ctx context.Context) error {
	c.logger.Info(ctx, "Disconnecting from Modbus server")
	return c.transport.Disconnect(ctx)
}

// IsConnected returns true if the client is connected to the server.
func (c *BaseClient) IsConnected() bool {
	return c.transport.IsConnected()
}

// Send enqueues the request to the transport layer and awaits for the response.
func (c *BaseClient) Send(ctx context.Context, functionCode common.FunctionCode, data []byte) (common.Response, error) {
	if !c.IsConnected() {
		return nil, common.ErrNotConnected
	}

	// Create the request
	request := transport.NewRequest(c.unitID, functionCode, data)

	// Use the context or derive a new one with timeout
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		// Apply a default timeout if no deadline specified
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	c.logger.Debug(ctx, "Sending request: function=%s, data=%v", functionCode, data)

	// Send the request and get the response
	response, err := c.transport.Send(ctx, request)
	if err != nil {
		c.logger.Error(ctx, "Error sending request: %v", err)
		return nil, err
	}

	// Check for Modbus exception
	if response.IsException() {
		c.logger.Warn(ctx, "Received exception response: function=%s, exception=%d",
			response.GetPDU().FunctionCode, response.GetException())
		return nil, response.ToError()
	}

	c.logger.Debug(ctx, "Received successful response: function=%s", response.GetPDU().FunctionCode)
	return response, nil
}

// readValues runs the generate -> send -> parse sequence shared by the four
// read operations, which differ only in function code, log label and value
// type. Mirrors the generate/parse helper split protocol.go uses for the
// same four operations on the encode/decode side.
func readValues[T any](ctx context.Context, c *BaseClient, label string, functionCode common.FunctionCode,
	generate func() ([]byte, error), parse func([]byte) ([]T, error)) ([]T, error) {

	requestData, err := generate()
	if err != nil {
		c.logger.Error(ctx, "Error generating %s request: %v", label, err)
		return nil, err
	}

	response, err := c.Send(ctx, functionCode, requestData)
	if err != nil {
		return nil, err
	}

	values, err := parse(response.GetPDU().Data)
	if err != nil {
		c.logger.Error(ctx, "Error parsing %s response: %v", label, err)
		return nil, err
	}

	c.logger.Debug(ctx, "Read %d %s successfully", len(values), label)
	return values, nil
}

// ReadCoils reads coils from the server.
func (c *BaseClient) ReadCoils(ctx context.Context, address common.Address, quantity common.Quantity) ([]common.CoilValue, error) {
	c.logger.Debug(ctx, "Reading %d coils from address %d", quantity, address)
	return readValues(ctx, c, "coils", common.FuncReadCoils,
		func() ([]byte, error) { return c.protocol.GenerateReadCoilsRequest(address, quantity) },
		func(data []byte) ([]common.CoilValue, error) { return c.protocol.ParseReadCoilsResponse(data, quantity) },
	)
}

// ReadDiscreteInputs reads discrete inputs from the server.
func (c *BaseClient) ReadDiscreteInputs(ctx context.Context, address common.Address, quantity common.Quantity) ([]common.DiscreteInputValue, error) {
	c.logger.Debug(ctx, "Reading %d discrete inputs from address %d", quantity, address)
	return readValues(ctx, c, "discrete inputs", common.FuncReadDiscreteInputs,
		func() ([]byte, error) { return c.protocol.GenerateReadDiscreteInputsRequest(address, quantity) },
		func(data []byte) ([]common.DiscreteInputValue, error) {
			return c.protocol.ParseReadDiscreteInputsResponse(data, quantity)
		},
	)
}

// ReadHoldingRegisters reads holding registers from the server.
func (c *BaseClient) ReadHoldingRegisters(ctx context.Context, address common.Address, quantity common.Quantity) ([]common.RegisterValue, error) {
	c.logger.Debug(ctx, "Reading %d holding registers from address %d", quantity, address)
	return readValues(ctx, c, "holding registers", common.FuncReadHoldingRegisters,
		func() ([]byte, error) { return c.protocol.GenerateReadHoldingRegistersRequest(address, quantity) },
		func(data []byte) ([]common.RegisterValue, error) {
			return c.protocol.ParseReadHoldingRegistersResponse(data, quantity)
		},
	)
}

// ReadInputRegisters reads input registers from the server.
func (c *BaseClient) ReadInputRegisters(ctx context.Context, address common.Address, quantity common.Quantity) ([]common.InputRegisterValue, error) {
	c.logger.Debug(ctx, "Reading %d input registers from address %d", quantity, address)
	return readValues(ctx, c, "input registers", common.FuncReadInputRegisters,
		func() ([]byte, error) { return c.protocol.GenerateReadInputRegistersRequest(address, quantity) },
		func(data []byte) ([]common.InputRegisterValue, error) {
			return c.protocol.ParseReadInputRegistersResponse(data, quantity)
		},
	)
}

// writeSingle runs the generate -> send -> parse sequence shared by the two
// single-value write operations, which differ only in function code, log
// label and echoed value type.
func writeSingle[V any](ctx context.Context, c *BaseClient, label string, functionCode common.FunctionCode,
	generate func() ([]byte, error), parse func([]byte) (common.Address, V, error)) error {

	requestData, err := generate()
	if err != nil {
		c.logger.Error(ctx, "Error generating %s request: %v", label, err)
		return err
	}

	response, err := c.Send(ctx, functionCode, requestData)
	if err != nil {
		return err
	}

	if _, _, err := parse(response.GetPDU().Data); err != nil {
		c.logger.Error(ctx, "Error parsing %s response: %v", label, err)
		return err
	}

	c.logger.Debug(ctx, "Wrote %s successfully", label)
	return nil
}

// WriteSingleCoil writes a single coil to the server.
func (c *BaseClient) WriteSingleCoil(ctx context.Context, address common.Address, value common.CoilValue) error {
	c.logger.Info(ctx, "Writing coil at address %d with value %t", address, value)
	return writeSingle(ctx, c, "write single coil", common.FuncWriteSingleCoil,
		func() ([]byte, error) { return c.protocol.GenerateWriteSingleCoilRequest(address, value) },
		c.protocol.ParseWriteSingleCoilResponse,
	)
}

// WriteSingleRegister writes a single register to the server.
func (c *BaseClient) WriteSingleRegister(ctx context.Context, address common.Address, value common.RegisterValue) error {
	c.logger.Info(ctx, "Writing register at address %d with value %d", address, value)
	return writeSingle(ctx, c, "write single register", common.FuncWriteSingleRegister,
		func() ([]byte, error) { return c.protocol.GenerateWriteSingleRegisterRequest(address, value) },
		c.protocol.ParseWriteSingleRegisterResponse,
	)
}

// writeMultiple runs the generate -> send -> parse sequence shared by the
// two multiple-value write operations; both echo an (address, quantity)
// response regardless of value type, so no generic type parameter is needed.
func (c *BaseClient) writeMultiple(ctx context.Context, label string, functionCode common.FunctionCode, count int,
	generate func() ([]byte, error), parse func([]byte) (common.Address, common.Quantity, error)) error {

	requestData, err := generate()
	if err != nil {
		c.logger.Error(ctx, "Error generating %s request: %v", label, err)
		return err
	}

	response, err := c.Send(ctx, functionCode, requestData)
	if err != nil {
		return err
	}

	if _, _, err := parse(response.GetPDU().Data); err != nil {
		c.logger.Error(ctx, "Error parsing %s response: %v", label, err)
		return err
	}

	c.logger.Debug(ctx, "Wrote %d %s successfully", count, label)
	return nil
}

// WriteMultipleCoils writes multiple coils to the server.
func (c *BaseClient) WriteMultipleCoils(ctx context.Context, address common.Address, values []common.CoilValue) error {
	c.logger.Info(ctx, "Writing %d coils starting at address %d", len(values), address)
	return c.writeMultiple(ctx, "write multiple coils", common.FuncWriteMultipleCoils, len(values),
		func() ([]byte, error) { return c.protocol.GenerateWriteMultipleCoilsRequest(address, values) },
		c.protocol.ParseWriteMultipleCoilsResponse,
	)
}

// WriteMultipleRegisters writes multiple registers to the server.
func (c *BaseClient) WriteMultipleRegisters(ctx context.Context, address common.Address, values []common.RegisterValue) error {
	c.logger.Info(ctx, "Writing %d registers starting at address %d", len(values), address)
	return c.writeMultiple(ctx, "write multiple registers", common.FuncWriteMultipleRegisters, len(values),
		func() ([]byte, error) { return c.protocol.GenerateWriteMultipleRegistersRequest(address, values) },
		c.protocol.ParseWriteMultipleRegistersResponse,
	)
}
