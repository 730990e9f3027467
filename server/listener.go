package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brightloop-io/modbus-toolkit/common"
	"github.com/brightloop-io/modbus-toolkit/logging"
	"github.com/brightloop-io/modbus-toolkit/store"
)

// defaultMaxConnections bounds concurrent client sockets when the caller
// does not override it with WithMaxConnections.
const defaultMaxConnections = 10

// TCPServer implements a Modbus TCP server.
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 4 (Modbus Protocol Description)
// Ref: Modbus_Messaging_Implementation_Guide_V1_0b.pdf, Section 3 (Modbus TCP/IP Protocol)
type TCPServer struct {
	address string
	port    int
	unitID  common.UnitID

	listener       net.Listener
	maxConnections int64
	connCount      atomic.Int64

	handlers     map[common.FunctionCode]common.HandlerFunc
	defaultStore common.DataStore
	dispatcher   *dispatcher

	running      bool
	connections  map[string]*connection
	connsMutex   sync.RWMutex
	mutex        sync.RWMutex
	logger       common.LoggerInterface
	stopChan     chan struct{}
}

// TCPServerOption is a function type for configuring a TCPServer.
type TCPServerOption func(*TCPServer)

// WithServerPort sets the TCP port for the server.
func WithServerPort(port int) TCPServerOption {
	return func(s *TCPServer) { s.port = port }
}

// WithServerLogger sets the logger for the TCP server.
func WithServerLogger(logger common.LoggerInterface) TCPServerOption {
	return func(s *TCPServer) { s.logger = logger }
}

// WithServerDataStore sets the data store for the TCP server.
func WithServerDataStore(store common.DataStore) TCPServerOption {
	return func(s *TCPServer) { s.defaultStore = store }
}

// WithServerUnitID sets the unit id this server answers for. Requests
// addressed to any other unit id, including 0, are silently dropped.
func WithServerUnitID(unitID common.UnitID) TCPServerOption {
	return func(s *TCPServer) { s.unitID = unitID }
}

// WithMaxConnections bounds how many concurrent client sockets the server
// accepts; connections beyond this limit are closed immediately.
func WithMaxConnections(max int64) TCPServerOption {
	return func(s *TCPServer) { s.maxConnections = max }
}

// NewTCPServer creates a new Modbus TCP server.
func NewTCPServer(address string, options ...TCPServerOption) *TCPServer {
	server := &TCPServer{
		address:        address,
		port:           common.DefaultTCPPort,
		unitID:         common.UnitID(1),
		maxConnections: defaultMaxConnections,
		handlers:       make(map[common.FunctionCode]common.HandlerFunc),
		defaultStore:   store.NewMemoryStore(),
		dispatcher:     newDispatcher(),
		logger:         logging.NewLogger(),
		connections:    make(map[string]*connection),
	}

	for _, option := range options {
		option(server)
	}

	server.setupDefaultHandlers()
	return server
}

// WithLogger sets the logger for the server.
func (s *TCPServer) WithLogger(logger common.LoggerInterface) common.Server {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.logger = logger
	return s
}

// WithDataStore sets the data store for the server.
func (s *TCPServer) WithDataStore(dataStore common.DataStore) common.Server {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.defaultStore = dataStore
	return s
}

// setupDefaultHandlers configures handlers for the eight in-scope Modbus
// function codes. Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 6.
func (s *TCPServer) setupDefaultHandlers() {
	s.handlers = map[common.FunctionCode]common.HandlerFunc{
		common.FuncReadCoils: func(ctx context.Context, req common.Request) (common.Response, error) {
			return s.dispatcher.HandleReadCoils(ctx, req, s.defaultStore)
		},
		common.FuncReadDiscreteInputs: func(ctx context.Context, req common.Request) (common.Response, error) {
			return s.dispatcher.HandleReadDiscreteInputs(ctx, req, s.defaultStore)
		},
		common.FuncReadHoldingRegisters: func(ctx context.Context, req common.Request) (common.Response, error) {
			return s.dispatcher.HandleReadHoldingRegisters(ctx, req, s.defaultStore)
		},
		common.FuncReadInputRegisters: func(ctx context.Context, req common.Request) (common.Response, error) {
			return s.dispatcher.HandleReadInputRegisters(ctx, req, s.defaultStore)
		},
		common.FuncWriteSingleCoil: func(ctx context.Context, req common.Request) (common.Response, error) {
			return s.dispatcher.HandleWriteSingleCoil(ctx, req, s.defaultStore)
		},
		common.FuncWriteSingleRegister: func(ctx context.Context, req common.Request) (common.Response, error) {
			return s.dispatcher.HandleWriteSingleRegister(ctx, req, s.defaultStore)
		},
		common.FuncWriteMultipleCoils: func(ctx context.Context, req common.Request) (common.Response, error) {
			return s.dispatcher.HandleWriteMultipleCoils(ctx, req, s.defaultStore)
		},
		common.FuncWriteMultipleRegisters: func(ctx context.Context, req common.Request) (common.Response, error) {
			return s.dispatcher.HandleWriteMultipleRegisters(ctx, req, s.defaultStore)
		},
	}
}

// SetHandler sets the handler for a specific Modbus function code.
func (s *TCPServer) SetHandler(functionCode common.FunctionCode, handler common.HandlerFunc) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.handlers[functionCode] = handler
}

// handlerTable returns a snapshot-safe copy of the current handler map.
func (s *TCPServer) handlerTable() map[common.FunctionCode]common.HandlerFunc {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	table := make(map[common.FunctionCode]common.HandlerFunc, len(s.handlers))
	for fc, h := range s.handlers {
		table[fc] = h
	}
	return table
}

// Start starts the server.
func (s *TCPServer) Start(ctx context.Context) error {
	s.mutex.Lock()
	if s.running {
		s.mutex.Unlock()
		return fmt.Errorf("server already running")
	}

	addr := fmt.Sprintf("%s:%d", s.address, s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.mutex.Unlock()
		return err
	}

	s.listener = listener
	s.running = true
	s.stopChan = make(chan struct{})
	s.mutex.Unlock()

	s.logger.Info(ctx, "modbus TCP server started on %s", addr)
	go s.acceptLoop(ctx)
	return nil
}

// Stop stops the server, closing the listener and every live connection.
func (s *TCPServer) Stop(ctx context.Context) error {
	s.mutex.Lock()
	if !s.running {
		s.mutex.Unlock()
		return nil
	}
	close(s.stopChan)
	if s.listener != nil {
		s.listener.Close()
	}
	s.running = false
	s.mutex.Unlock()

	s.connsMutex.Lock()
	for _, c := range s.connections {
		c.close()
	}
	s.connections = make(map[string]*connection)
	s.connsMutex.Unlock()

	s.logger.Info(ctx, "modbus TCP server stopped")
	return nil
}

// IsRunning returns true if the server is running.
func (s *TCPServer) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.running
}

// ConnectedClients returns a snapshot of every currently connected client.
func (s *TCPServer) ConnectedClients() []ConnectedClient {
	s.connsMutex.RLock()
	defer s.connsMutex.RUnlock()
	clients := make([]ConnectedClient, 0, len(s.connections))
	for _, c := range s.connections {
		clients = append(clients, c.snapshot())
	}
	return clients
}

// acceptLoop accepts incoming connections, rejecting any past
// maxConnections before a connection object is even constructed.
func (s *TCPServer) acceptLoop(ctx context.Context) {
	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		s.listener.(*net.TCPListener).SetDeadline(time.Now().Add(time.Second))
		conn, err := s.listener.Accept()
		if err != nil {
			if opErr, ok := err.(*net.OpError); ok && opErr.Timeout() {
				continue
			}
			select {
			case <-s.stopChan:
				return
			default:
				s.logger.Error(ctx, "error accepting connection: %v", err)
				continue
			}
		}

		if s.connCount.Load() >= s.maxConnections {
			s.logger.Warn(ctx, "rejecting connection from %s: max_connections (%d) reached", conn.RemoteAddr(), s.maxConnections)
			conn.Close()
			continue
		}

		s.connCount.Add(1)
		c := newConnection(conn, s)

		s.connsMutex.Lock()
		s.connections[c.id] = c
		s.connsMutex.Unlock()

		s.logger.Info(ctx, "new client connected: %s", conn.RemoteAddr())
		go c.serve(ctx)
	}
}

// removeConnection drops a closed connection from the live set and
// releases its slot against maxConnections.
func (s *TCPServer) removeConnection(c *connection) {
	s.connsMutex.Lock()
	delete(s.connections, c.id)
	s.connsMutex.Unlock()
	s.connCount.Add(-1)
}
