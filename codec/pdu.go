package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/brightloop-io/modbus-toolkit/common"
)

// EncodeReadRequest encodes the "addr u16, qty u16" body shared by Read
// Coils, Read Discrete Inputs, Read Holding Registers and Read Input
// Registers requests. Ref: spec Section 3, PDU variants table.
func EncodeReadRequest(address common.Address, quantity common.Quantity) []byte {
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body[0:2], uint16(address))
	binary.BigEndian.PutUint16(body[2:4], uint16(quantity))
	return body
}

// DecodeReadRequest decodes the body of a read request.
func DecodeReadRequest(body []byte) (common.Address, common.Quantity, error) {
	if len(body) != 4 {
		return 0, 0, fmt.Errorf("%w: read request body must be 4 bytes, got %d", common.ErrTruncated, len(body))
	}
	address := common.Address(binary.BigEndian.Uint16(body[0:2]))
	quantity := common.Quantity(binary.BigEndian.Uint16(body[2:4]))
	return address, quantity, nil
}

// EncodeBitsResponse encodes a byte_count-prefixed, LSB-first bit sequence —
// the response body for Read Coils and Read Discrete Inputs.
func EncodeBitsResponse(values []bool) []byte {
	packed := PackBits(values)
	body := make([]byte, 1+len(packed))
	body[0] = byte(len(packed))
	copy(body[1:], packed)
	return body
}

// DecodeBitsResponse decodes a byte_count-prefixed bit sequence into exactly
// quantity booleans, verifying byte_count matches the derived value.
func DecodeBitsResponse(body []byte, quantity int) ([]bool, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty bits response", common.ErrTruncated)
	}
	byteCount := int(body[0])
	if len(body) != 1+byteCount {
		return nil, fmt.Errorf("%w: byte_count %d does not match body length %d", common.ErrByteCountMismatch, byteCount, len(body)-1)
	}
	if byteCount != ByteCountForBits(quantity) {
		return nil, fmt.Errorf("%w: byte_count %d, expected %d for quantity %d", common.ErrByteCountMismatch, byteCount, ByteCountForBits(quantity), quantity)
	}
	return UnpackBits(body[1:], quantity), nil
}

// EncodeRegistersResponse encodes a byte_count-prefixed sequence of
// big-endian u16 registers — the response body for Read Holding Registers
// and Read Input Registers.
func EncodeRegistersResponse(values []uint16) []byte {
	body := make([]byte, 1+len(values)*2)
	body[0] = byte(len(values) * 2)
	for i, v := range values {
		binary.BigEndian.PutUint16(body[1+i*2:3+i*2], v)
	}
	return body
}

// DecodeRegistersResponse decodes a byte_count-prefixed register sequence
// into exactly quantity u16 values.
func DecodeRegistersResponse(body []byte, quantity int) ([]uint16, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty registers response", common.ErrTruncated)
	}
	byteCount := int(body[0])
	if len(body) != 1+byteCount {
		return nil, fmt.Errorf("%w: byte_count %d does not match body length %d", common.ErrByteCountMismatch, byteCount, len(body)-1)
	}
	if byteCount != quantity*common.BytesPerRegister {
		return nil, fmt.Errorf("%w: byte_count %d, expected %d for quantity %d", common.ErrByteCountMismatch, byteCount, quantity*common.BytesPerRegister, quantity)
	}
	values := make([]uint16, quantity)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(body[1+i*2 : 3+i*2])
	}
	return values, nil
}

// EncodeWriteSingleCoil encodes "addr u16, value u16 ∈ {0x0000,0xFF00}",
// used identically for the Write Single Coil request and its echoed response.
func EncodeWriteSingleCoil(address common.Address, value common.CoilValue) []byte {
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body[0:2], uint16(address))
	if value {
		binary.BigEndian.PutUint16(body[2:4], common.CoilOnU16)
	} else {
		binary.BigEndian.PutUint16(body[2:4], common.CoilOffU16)
	}
	return body
}

// DecodeWriteSingleCoil decodes a Write Single Coil body, rejecting any
// value other than the two legal constants.
func DecodeWriteSingleCoil(body []byte) (common.Address, common.CoilValue, error) {
	if len(body) != 4 {
		return 0, false, fmt.Errorf("%w: write single coil body must be 4 bytes, got %d", common.ErrTruncated, len(body))
	}
	address := common.Address(binary.BigEndian.Uint16(body[0:2]))
	raw := binary.BigEndian.Uint16(body[2:4])
	switch raw {
	case common.CoilOnU16:
		return address, true, nil
	case common.CoilOffU16:
		return address, false, nil
	default:
		return address, false, fmt.Errorf("%w: 0x%04X", common.ErrInvalidCoilValue, raw)
	}
}

// EncodeWriteSingleRegister encodes "addr u16, value u16", used identically
// for the Write Single Register request and its echoed response.
func EncodeWriteSingleRegister(address common.Address, value common.RegisterValue) []byte {
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body[0:2], uint16(address))
	binary.BigEndian.PutUint16(body[2:4], value)
	return body
}

// DecodeWriteSingleRegister decodes a Write Single Register body.
func DecodeWriteSingleRegister(body []byte) (common.Address, common.RegisterValue, error) {
	if len(body) != 4 {
		return 0, 0, fmt.Errorf("%w: write single register body must be 4 bytes, got %d", common.ErrTruncated, len(body))
	}
	address := common.Address(binary.BigEndian.Uint16(body[0:2]))
	value := common.RegisterValue(binary.BigEndian.Uint16(body[2:4]))
	return address, value, nil
}

// EncodeWriteMultipleCoilsRequest encodes "addr u16, qty u16, byte_count u8, bits".
func EncodeWriteMultipleCoilsRequest(address common.Address, values []common.CoilValue) []byte {
	packed := PackBits(values)
	body := make([]byte, 5+len(packed))
	binary.BigEndian.PutUint16(body[0:2], uint16(address))
	binary.BigEndian.PutUint16(body[2:4], uint16(len(values)))
	body[4] = byte(len(packed))
	copy(body[5:], packed)
	return body
}

// DecodeWriteMultipleCoilsRequest decodes a Write Multiple Coils request
// body, verifying the byte_count matches the quantity.
func DecodeWriteMultipleCoilsRequest(body []byte) (common.Address, []common.CoilValue, error) {
	if len(body) < 5 {
		return 0, nil, fmt.Errorf("%w: write multiple coils body too short: %d bytes", common.ErrTruncated, len(body))
	}
	address := common.Address(binary.BigEndian.Uint16(body[0:2]))
	quantity := int(binary.BigEndian.Uint16(body[2:4]))
	byteCount := int(body[4])
	if len(body) != 5+byteCount {
		return address, nil, fmt.Errorf("%w: byte_count %d does not match body length %d", common.ErrByteCountMismatch, byteCount, len(body)-5)
	}
	if byteCount != ByteCountForBits(quantity) {
		return address, nil, fmt.Errorf("%w: byte_count %d, expected %d for quantity %d", common.ErrByteCountMismatch, byteCount, ByteCountForBits(quantity), quantity)
	}
	return address, UnpackBits(body[5:], quantity), nil
}

// EncodeWriteMultipleRegistersRequest encodes "addr u16, qty u16, byte_count u8, qty x u16".
func EncodeWriteMultipleRegistersRequest(address common.Address, values []common.RegisterValue) []byte {
	body := make([]byte, 5+len(values)*2)
	binary.BigEndian.PutUint16(body[0:2], uint16(address))
	binary.BigEndian.PutUint16(body[2:4], uint16(len(values)))
	body[4] = byte(len(values) * 2)
	for i, v := range values {
		binary.BigEndian.PutUint16(body[5+i*2:7+i*2], v)
	}
	return body
}

// DecodeWriteMultipleRegistersRequest decodes a Write Multiple Registers
// request body, verifying the byte_count matches the quantity.
func DecodeWriteMultipleRegistersRequest(body []byte) (common.Address, []common.RegisterValue, error) {
	if len(body) < 5 {
		return 0, nil, fmt.Errorf("%w: write multiple registers body too short: %d bytes", common.ErrTruncated, len(body))
	}
	address := common.Address(binary.BigEndian.Uint16(body[0:2]))
	quantity := int(binary.BigEndian.Uint16(body[2:4]))
	byteCount := int(body[4])
	if len(body) != 5+byteCount {
		return address, nil, fmt.Errorf("%w: byte_count %d does not match body length %d", common.ErrByteCountMismatch, byteCount, len(body)-5)
	}
	if byteCount != quantity*common.BytesPerRegister {
		return address, nil, fmt.Errorf("%w: byte_count %d, expected %d for quantity %d", common.ErrByteCountMismatch, byteCount, quantity*common.BytesPerRegister, quantity)
	}
	values := make([]common.RegisterValue, quantity)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(body[5+i*2 : 7+i*2])
	}
	return address, values, nil
}

// EncodeWriteMultipleResponse encodes "addr u16, qty u16", the shared
// response body for both Write Multiple Coils and Write Multiple Registers.
func EncodeWriteMultipleResponse(address common.Address, quantity common.Quantity) []byte {
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body[0:2], uint16(address))
	binary.BigEndian.PutUint16(body[2:4], uint16(quantity))
	return body
}

// DecodeWriteMultipleResponse decodes the shared write-multiple response body.
func DecodeWriteMultipleResponse(body []byte) (common.Address, common.Quantity, error) {
	if len(body) != 4 {
		return 0, 0, fmt.Errorf("%w: write-multiple response body must be 4 bytes, got %d", common.ErrTruncated, len(body))
	}
	address := common.Address(binary.BigEndian.Uint16(body[0:2]))
	quantity := common.Quantity(binary.BigEndian.Uint16(body[2:4]))
	return address, quantity, nil
}

// EncodeExceptionPDU encodes a complete exception PDU: the original function
// code with the exception bit set, followed by the one-octet exception code.
func EncodeExceptionPDU(functionCode common.FunctionCode, exceptionCode common.ExceptionCode) []byte {
	return []byte{byte(functionCode) | common.ExceptionBit, byte(exceptionCode)}
}

// DecodeExceptionBody decodes the one-octet body of an exception response.
func DecodeExceptionBody(body []byte) (common.ExceptionCode, error) {
	if len(body) != 1 {
		return 0, fmt.Errorf("%w: exception body must be 1 byte, got %d", common.ErrTruncated, len(body))
	}
	return common.ExceptionCode(body[0]), nil
}
