package common

import "context"

// Client is the interface that all Modbus clients must implement.
type Client interface {
	// Connect establishes a connection to the Modbus server.
	Connect(ctx context.Context) error

	// Disconnect closes the connection to the Modbus server.
	Disconnect(ctx context.Context) error

	// IsConnected returns true if the client is connected to the server.
	IsConnected() bool

	// ReadCoils reads coils from the server.
	// The address is the starting address of the coils to read.
	// The quantity is the number of coils to read.
	ReadCoils(ctx context.Context, address Address, quantity Quantity) ([]CoilValue, error)

	// ReadDiscreteInputs reads discrete inputs from the server.
	// The address is the starting address of the discrete inputs to read.
	// The quantity is the number of discrete inputs to read.
	ReadDiscreteInputs(ctx context.Context, address Address, quantity Quantity) ([]DiscreteInputValue, error)

	// ReadHoldingRegisters reads holding registers from the server.
	// The address is the starting address of the registers to read.
	// The quantity is the number of registers to read.
	ReadHoldingRegisters(ctx context.Context, address Address, quantity Quantity) ([]RegisterValue, error)

	// ReadInputRegisters reads input registers from the server.
	// The address is the starting address of the registers to read.
	// The quantity is the number of registers to read.
	ReadInputRegisters(ctx context.Context, address Address, quantity Quantity) ([]InputRegisterValue, error)

	// WriteSingleCoil writes a single coil to the server.
	// The address is the address of the coil to write.
	// The value is the value to write.
	WriteSingleCoil(ctx context.Context, address Address, value CoilValue) error

	// WriteSingleRegister writes a single register to the server.
	// The address is the address of the register to write.
	// The value is the value to write.
	WriteSingleRegister(ctx context.Context, address Address, value RegisterValue) error

	// WriteMultipleCoils writes multiple coils to the server.
	// The address is the starting address of the coils to write.
	// The values are the values to write.
	WriteMultipleCoils(ctx context.Context, address Address, values []CoilValue) error

	// WriteMultipleRegisters writes multiple registers to the server.
	// The address is the starting address of the registers to write.
	// The values are the values to write.
	WriteMultipleRegisters(ctx context.Context, address Address, values []RegisterValue) error

	// WithLogger sets the logger for the client.
	WithLogger(logger LoggerInterface) Client
}

// Protocol defines the interface for a Modbus protocol handler.
type Protocol interface {
	// GenerateReadCoilsRequest generates a request PDU data to read coils.
	// The returned byte slice contains only the PDU data (excluding function code).
	GenerateReadCoilsRequest(address Address, quantity Quantity) ([]byte, error)

	// ParseReadCoilsResponse parses a response PDU data from a read coils request.
	ParseReadCoilsResponse(data []byte, quantity Quantity) ([]CoilValue, error)

	// GenerateReadDiscreteInputsRequest generates a request PDU data to read discrete inputs.
	GenerateReadDiscreteInputsRequest(address Address, quantity Quantity) ([]byte, error)

	// ParseReadDiscreteInputsResponse parses a response PDU data from a read discrete inputs request.
	ParseReadDiscreteInputsResponse(data []byte, quantity Quantity) ([]DiscreteInputValue, error)

	// GenerateReadHoldingRegistersRequest generates a request PDU data to read holding registers.
	GenerateReadHoldingRegistersRequest(address Address, quantity Quantity) ([]byte, error)

	// ParseReadHoldingRegistersResponse parses a response PDU data from a read holding registers request.
	ParseReadHoldingRegistersResponse(data []byte, quantity Quantity) ([]RegisterValue, error)

	// GenerateReadInputRegistersRequest generates a request PDU data to read input registers.
	GenerateReadInputRegistersRequest(address Address, quantity Quantity) ([]byte, error)

	// ParseReadInputRegistersResponse parses a response PDU data from a read input registers request.
	ParseReadInputRegistersResponse(data []byte, quantity Quantity) ([]InputRegisterValue, error)

	// GenerateWriteSingleCoilRequest generates a request PDU data to write a single coil.
	GenerateWriteSingleCoilRequest(address Address, value CoilValue) ([]byte, error)

	// ParseWriteSingleCoilResponse parses a response PDU data from a write single coil request.
	ParseWriteSingleCoilResponse(data []byte) (Address, CoilValue, error)

	// GenerateWriteSingleRegisterRequest generates a request PDU data to write a single register.
	GenerateWriteSingleRegisterRequest(address Address, value RegisterValue) ([]byte, error)

	// ParseWriteSingleRegisterResponse parses a response PDU data from a write single register request.
	ParseWriteSingleRegisterResponse(data []byte) (Address, RegisterValue, error)

	// GenerateWriteMultipleCoilsRequest generates a request PDU data to write multiple coils.
	GenerateWriteMultipleCoilsRequest(address Address, values []CoilValue) ([]byte, error)

	// ParseWriteMultipleCoilsResponse parses a response PDU data from a write multiple coils request.
	ParseWriteMultipleCoilsResponse(data []byte) (Address, Quantity, error)

	// GenerateWriteMultipleRegistersRequest generates a request PDU data to write multiple registers.
	GenerateWriteMultipleRegistersRequest(address Address, values []RegisterValue) ([]byte, error)

	// ParseWriteMultipleRegistersResponse parses a response PDU data from a write multiple registers request.
	ParseWriteMultipleRegistersResponse(data []byte) (Address, Quantity, error)

	// WithLogger sets the logger for the protocol and returns a new Protocol instance.
	WithLogger(logger LoggerInterface) Protocol
}
