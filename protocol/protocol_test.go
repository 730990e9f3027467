package protocol

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightloop-io/modbus-toolkit/common"
	"github.com/brightloop-io/modbus-toolkit/logging"
)

func TestGenerateReadCoilsRequest(t *testing.T) {
	handler := NewProtocolHandler()

	address := common.Address(100)
	quantity := common.Quantity(10)

	data, err := handler.GenerateReadCoilsRequest(address, quantity)
	require.NoError(t, err)
	require.Len(t, data, 4)
	assert.Equal(t, uint16(address), binary.BigEndian.Uint16(data[0:2]))
	assert.Equal(t, uint16(quantity), binary.BigEndian.Uint16(data[2:4]))

	_, err = handler.GenerateReadCoilsRequest(address, 0)
	assert.ErrorIs(t, err, common.ErrQuantityOutOfRange)

	_, err = handler.GenerateReadCoilsRequest(address, common.MaxReadBitCount+1)
	assert.ErrorIs(t, err, common.ErrQuantityOutOfRange)
}

func TestGenerateReadDiscreteInputsRequest(t *testing.T) {
	handler := NewProtocolHandler()

	address := common.Address(100)
	quantity := common.Quantity(10)

	data, err := handler.GenerateReadDiscreteInputsRequest(address, quantity)
	require.NoError(t, err)
	require.Len(t, data, 4)
	assert.Equal(t, uint16(address), binary.BigEndian.Uint16(data[0:2]))
	assert.Equal(t, uint16(quantity), binary.BigEndian.Uint16(data[2:4]))
}

func TestGenerateReadHoldingRegistersRequest(t *testing.T) {
	handler := NewProtocolHandler()

	address := common.Address(100)
	quantity := common.Quantity(10)

	data, err := handler.GenerateReadHoldingRegistersRequest(address, quantity)
	require.NoError(t, err)
	require.Len(t, data, 4)
	assert.Equal(t, uint16(address), binary.BigEndian.Uint16(data[0:2]))
	assert.Equal(t, uint16(quantity), binary.BigEndian.Uint16(data[2:4]))

	_, err = handler.GenerateReadHoldingRegistersRequest(address, 0)
	assert.ErrorIs(t, err, common.ErrQuantityOutOfRange)

	_, err = handler.GenerateReadHoldingRegistersRequest(address, common.MaxReadRegisterCount+1)
	assert.ErrorIs(t, err, common.ErrQuantityOutOfRange)
}

func TestParseReadCoilsResponse(t *testing.T) {
	handler := NewProtocolHandler()

	quantity := common.Quantity(10)
	byteCount := 2

	responseData := []byte{byte(byteCount), 0b10101010, 0b00000011}

	values, err := handler.ParseReadCoilsResponse(responseData, quantity)
	require.NoError(t, err)
	require.Len(t, values, int(quantity))

	expectedValues := []common.CoilValue{false, true, false, true, false, true, false, true, true, true}
	assert.Equal(t, expectedValues, values)

	_, err = handler.ParseReadCoilsResponse([]byte{}, quantity)
	assert.Error(t, err)

	_, err = handler.ParseReadCoilsResponse([]byte{3, 0, 0, 0}, quantity)
	assert.Error(t, err)

	_, err = handler.ParseReadCoilsResponse([]byte{2, 0}, quantity)
	assert.Error(t, err)
}

func TestGenerateWriteSingleCoilRequest(t *testing.T) {
	handler := NewProtocolHandler()

	address := common.Address(100)

	data, err := handler.GenerateWriteSingleCoilRequest(address, true)
	require.NoError(t, err)
	require.Len(t, data, 4)
	assert.Equal(t, uint16(address), binary.BigEndian.Uint16(data[0:2]))
	assert.Equal(t, uint16(common.CoilOnU16), binary.BigEndian.Uint16(data[2:4]))

	data, err = handler.GenerateWriteSingleCoilRequest(address, false)
	require.NoError(t, err)
	assert.Equal(t, uint16(common.CoilOffU16), binary.BigEndian.Uint16(data[2:4]))
}

func TestParseWriteSingleCoilResponse(t *testing.T) {
	handler := NewProtocolHandler()

	address := common.Address(100)

	responseData := make([]byte, 4)
	binary.BigEndian.PutUint16(responseData[0:2], uint16(address))
	binary.BigEndian.PutUint16(responseData[2:4], common.CoilOnU16)

	respAddress, respValue, err := handler.ParseWriteSingleCoilResponse(responseData)
	require.NoError(t, err)
	assert.Equal(t, address, respAddress)
	assert.True(t, bool(respValue))

	binary.BigEndian.PutUint16(responseData[2:4], common.CoilOffU16)
	respAddress, respValue, err = handler.ParseWriteSingleCoilResponse(responseData)
	require.NoError(t, err)
	assert.False(t, bool(respValue))

	_, _, err = handler.ParseWriteSingleCoilResponse([]byte{0, 0})
	assert.Error(t, err)

	binary.BigEndian.PutUint16(responseData[2:4], 0x1234)
	_, _, err = handler.ParseWriteSingleCoilResponse(responseData)
	assert.ErrorIs(t, err, common.ErrInvalidCoilValue)
}

func TestGenerateWriteSingleRegisterRequest(t *testing.T) {
	handler := NewProtocolHandler()

	address := common.Address(100)
	value := common.RegisterValue(12345)

	data, err := handler.GenerateWriteSingleRegisterRequest(address, value)
	require.NoError(t, err)
	require.Len(t, data, 4)
	assert.Equal(t, uint16(address), binary.BigEndian.Uint16(data[0:2]))
	assert.Equal(t, uint16(value), binary.BigEndian.Uint16(data[2:4]))
}

func TestProtocolHandler_WithLogger(t *testing.T) {
	logger := logging.NewLogger()
	handler := NewProtocolHandler(WithLogger(logger))

	newLogger := logging.NewLogger()
	newHandler := handler.WithLogger(newLogger)
	assert.NotSame(t, handler, newHandler)

	address := common.Address(100)
	quantity := common.Quantity(10)

	data, err := newHandler.GenerateReadCoilsRequest(address, quantity)
	require.NoError(t, err)
	assert.Equal(t, uint16(address), binary.BigEndian.Uint16(data[0:2]))
}
