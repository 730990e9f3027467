package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/brightloop-io/modbus-toolkit/codec"
	"github.com/brightloop-io/modbus-toolkit/common"
	"github.com/brightloop-io/modbus-toolkit/transport"
)

// connState is a connection's lifecycle stage.
type connState int32

const (
	connOpen connState = iota
	connDraining
	connClosed
)

// writeQueueCapacity bounds the number of responses a connection will queue
// for a slow client before closing rather than letting memory grow without
// bound. Ref: spec Section 4.5 (FIFO write queue per connection).
const writeQueueCapacity = 64

// connReadTimeout bounds each blocking read; when it expires with no data the
// read loop re-checks the connection state and reads again, so an idle
// connection stays open. connWriteTimeout bounds how long a write may block
// before the connection is assumed dead.
const (
	connReadTimeout  = 30 * time.Second
	connWriteTimeout = 10 * time.Second
)

// connection owns one accepted net.Conn: a reader goroutine that frames and
// dispatches requests, and a writer goroutine that drains a FIFO response
// queue, joined by an errgroup so either side's failure tears down both.
type connection struct {
	id         string
	conn       net.Conn
	server     *TCPServer
	unitID     common.UnitID
	state      atomic.Int32
	writeQueue chan []byte

	client *clientConn
}

func newConnection(conn net.Conn, server *TCPServer) *connection {
	remoteAddr := conn.RemoteAddr().String()
	return &connection{
		id:         uuid.NewString(),
		conn:       conn,
		server:     server,
		unitID:     server.unitID,
		writeQueue: make(chan []byte, writeQueueCapacity),
		client: &clientConn{
			remoteAddr:  remoteAddr,
			connectedAt: time.Now(),
			conn:        conn,
		},
	}
}

// serve runs the connection until either goroutine exits, then closes the
// socket.
func (c *connection) serve(ctx context.Context) {
	logger := c.server.logger.WithFields(map[string]interface{}{
		"conn_id": c.id,
		"remote":  c.client.remoteAddr,
	})

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return c.readLoop(gctx, logger) })
	group.Go(func() error { return c.writeLoop(gctx, logger) })

	if err := group.Wait(); err != nil && !errors.Is(err, io.EOF) {
		logger.Debug(ctx, "connection closed: %v", err)
	}

	c.state.Store(int32(connClosed))
	c.conn.Close()
	c.server.removeConnection(c)
	logger.Info(ctx, "client disconnected")
}

// readLoop frames incoming bytes, dispatches each request, and enqueues the
// response for writeLoop. A frame-level fault (bad protocol id, truncated
// frame) closes the connection instead of skipping past it.
func (c *connection) readLoop(ctx context.Context, logger common.LoggerInterface) error {
	framer := codec.NewFramer()
	defer close(c.writeQueue)

	for {
		if connState(c.state.Load()) == connClosed {
			return nil
		}

		c.conn.SetReadDeadline(time.Now().Add(connReadTimeout))
		frame, err := codec.ReadFrame(c.conn, framer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			return err
		}

		if !matchesUnitID(c.unitID, frame.Header.UnitID) {
			logger.Debug(ctx, "dropping request for unserved unit id %d", frame.Header.UnitID)
			continue
		}

		c.client.rxCount.Add(1)
		if len(frame.PDU) > 0 {
			c.client.fcCount[frame.PDU[0]].Add(1)
		}

		responseData, err := c.handleFrame(ctx, frame)
		if err != nil {
			return fmt.Errorf("handle frame: %w", err)
		}

		select {
		case c.writeQueue <- responseData:
		default:
			return fmt.Errorf("write queue full for %s, closing slow connection", c.client.remoteAddr)
		}
	}
}

// handleFrame dispatches one decoded frame to the server's handler table and
// encodes either a normal or exception response.
func (c *connection) handleFrame(ctx context.Context, frame codec.Frame) ([]byte, error) {
	functionCode := common.FunctionCode(0)
	var pduData []byte
	if len(frame.PDU) > 0 {
		functionCode = common.FunctionCode(frame.PDU[0])
		pduData = frame.PDU[1:]
	}

	req := transport.NewRequest(frame.Header.UnitID, functionCode, pduData)
	req.SetTransactionID(frame.Header.TransactionID)

	response, err := c.server.dispatcher.Dispatch(ctx, req, c.server.defaultStore, c.server.handlerTable())
	if err != nil {
		var modbusErr *common.ModbusError
		if !errors.As(err, &modbusErr) {
			return nil, err
		}
		body := codec.EncodeExceptionPDU(modbusErr.FunctionCode, modbusErr.ExceptionCode)
		return c.encodeResponse(frame.Header.TransactionID, frame.Header.UnitID, body), nil
	}

	pdu := response.GetPDU()
	body := make([]byte, 1+len(pdu.Data))
	body[0] = byte(pdu.FunctionCode)
	copy(body[1:], pdu.Data)

	return c.encodeResponse(response.GetTransactionID(), response.GetUnitID(), body), nil
}

// encodeResponse assembles the full MBAP header + PDU wire image for one
// response and records it against this connection's tx counter.
func (c *connection) encodeResponse(txID common.TransactionID, unitID common.UnitID, pdu []byte) []byte {
	var buf bytes.Buffer
	codec.EncodeHeader(&buf, txID, unitID, len(pdu))
	buf.Write(pdu)
	c.client.txCount.Add(1)
	return buf.Bytes()
}

// writeLoop drains the FIFO write queue to the socket in order.
func (c *connection) writeLoop(ctx context.Context, logger common.LoggerInterface) error {
	for data := range c.writeQueue {
		c.conn.SetWriteDeadline(time.Now().Add(connWriteTimeout))
		if _, err := c.conn.Write(data); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	return nil
}

// snapshot returns a copy-safe view of this connection's live statistics.
func (c *connection) snapshot() ConnectedClient {
	return ConnectedClient{
		RemoteAddr:        c.client.remoteAddr,
		ConnectedAt:       c.client.connectedAt,
		RxTransactions:    c.client.rxCount.Load(),
		TxTransactions:    c.client.txCount.Load(),
		FunctionCodeStats: fcSnapshot(c.client),
	}
}

// close transitions the connection toward shutdown and unblocks its
// goroutines by closing the underlying socket.
func (c *connection) close() {
	c.state.Store(int32(connDraining))
	c.conn.Close()
}
