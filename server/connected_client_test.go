package server

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightloop-io/modbus-toolkit/common"
)

func TestConnectedClient_String(t *testing.T) {
	client := ConnectedClient{
		RemoteAddr:     "192.168.1.10:54321",
		ConnectedAt:    time.Now().Add(-2 * time.Hour),
		RxTransactions: 1523,
		TxTransactions: 1520,
	}

	s := client.String()
	assert.Contains(t, s, "192.168.1.10:54321")
	assert.Contains(t, s, "connected")
	assert.Contains(t, s, "rx: 1523")
	assert.Contains(t, s, "tx: 1520")
}

func TestConnectedClient_String_ZeroCounts(t *testing.T) {
	client := ConnectedClient{
		RemoteAddr:  "10.0.0.1:12345",
		ConnectedAt: time.Now(),
	}

	s := client.String()
	assert.Contains(t, s, "rx: 0")
	assert.Contains(t, s, "tx: 0")
}

func TestClientConn_AtomicCounters(t *testing.T) {
	client := &clientConn{remoteAddr: "127.0.0.1:9999", connectedAt: time.Now()}

	client.rxCount.Add(1)
	client.rxCount.Add(1)
	client.rxCount.Add(1)
	client.txCount.Add(1)
	client.txCount.Add(1)

	assert.Equal(t, uint64(3), client.rxCount.Load())
	assert.Equal(t, uint64(2), client.txCount.Load())
}

func TestClientConn_FcCountAtomics(t *testing.T) {
	client := &clientConn{remoteAddr: "127.0.0.1:9999", connectedAt: time.Now()}

	client.fcCount[common.FuncReadCoils].Add(5)
	client.fcCount[common.FuncReadHoldingRegisters].Add(10)
	client.fcCount[common.FuncWriteSingleRegister].Add(3)

	assert.Equal(t, uint64(5), client.fcCount[common.FuncReadCoils].Load())
	assert.Equal(t, uint64(10), client.fcCount[common.FuncReadHoldingRegisters].Load())
	assert.Equal(t, uint64(3), client.fcCount[common.FuncWriteSingleRegister].Load())
	assert.Equal(t, uint64(0), client.fcCount[common.FuncWriteMultipleCoils].Load())
}

func TestFcSnapshot(t *testing.T) {
	client := &clientConn{remoteAddr: "127.0.0.1:9999", connectedAt: time.Now()}
	client.fcCount[common.FuncReadCoils].Store(100)
	client.fcCount[common.FuncWriteMultipleRegisters].Store(50)

	stats := fcSnapshot(client)
	require.Len(t, stats, 2)
	assert.Equal(t, uint64(100), stats[common.FuncReadCoils])
	assert.Equal(t, uint64(50), stats[common.FuncWriteMultipleRegisters])
}

func TestFcSnapshot_Empty(t *testing.T) {
	client := &clientConn{remoteAddr: "127.0.0.1:9999", connectedAt: time.Now()}
	assert.Empty(t, fcSnapshot(client))
}

func TestConnectedClient_String_WithFCStats(t *testing.T) {
	client := ConnectedClient{
		RemoteAddr:     "192.168.1.10:54321",
		ConnectedAt:    time.Now().Add(-2 * time.Hour),
		RxTransactions: 1523,
		TxTransactions: 1520,
		FunctionCodeStats: map[common.FunctionCode]uint64{
			common.FuncReadHoldingRegisters: 1000,
			common.FuncReadCoils:            523,
		},
	}

	s := client.String()
	assert.True(t, strings.Contains(s, "fc:"))
	assert.Contains(t, s, "ReadCoils=523")
	assert.Contains(t, s, "ReadHoldingRegisters=1000")
}

func TestConnectedClient_String_NoFCStats(t *testing.T) {
	client := ConnectedClient{RemoteAddr: "10.0.0.1:12345", ConnectedAt: time.Now()}
	assert.NotContains(t, client.String(), "fc:")
}

func TestTCPServer_ConnectedClients_Empty(t *testing.T) {
	srv := NewTCPServer("127.0.0.1", WithServerPort(0))
	assert.Empty(t, srv.ConnectedClients())
}

func TestTCPServer_ConnectedClients_Snapshot(t *testing.T) {
	srv := NewTCPServer("127.0.0.1", WithServerPort(0))
	ctx := context.Background()
	require.NoError(t, srv.Start(ctx))
	defer srv.Stop(ctx)

	addr := srv.listener.Addr().String()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return len(srv.ConnectedClients()) == 1
	}, time.Second, 10*time.Millisecond)

	snap := srv.ConnectedClients()[0]
	assert.NotEmpty(t, snap.RemoteAddr)
	assert.False(t, snap.ConnectedAt.IsZero())
	assert.Equal(t, uint64(0), snap.RxTransactions)
	assert.Equal(t, uint64(0), snap.TxTransactions)
}

func TestTCPServer_ConnectedClients_RemovedOnDisconnect(t *testing.T) {
	srv := NewTCPServer("127.0.0.1", WithServerPort(0))
	ctx := context.Background()
	require.NoError(t, srv.Start(ctx))
	defer srv.Stop(ctx)

	addr := srv.listener.Addr().String()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(srv.ConnectedClients()) == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return len(srv.ConnectedClients()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTCPServer_MaxConnections(t *testing.T) {
	srv := NewTCPServer("127.0.0.1", WithServerPort(0), WithMaxConnections(1))
	ctx := context.Background()
	require.NoError(t, srv.Start(ctx))
	defer srv.Stop(ctx)

	addr := srv.listener.Addr().String()

	first, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer first.Close()

	require.Eventually(t, func() bool {
		return len(srv.ConnectedClients()) == 1
	}, time.Second, 10*time.Millisecond)

	second, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer second.Close()

	buf := make([]byte, 1)
	second.SetReadDeadline(time.Now().Add(time.Second))
	_, err = second.Read(buf)
	assert.Error(t, err, "second connection past max_connections should be closed by the server")
}
