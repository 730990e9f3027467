package codec

import (
	"errors"
	"testing"

	"github.com/brightloop-io/modbus-toolkit/common"
)

func TestEncodeDecodeReadRequestRoundTrip(t *testing.T) {
	body := EncodeReadRequest(common.Address(0x006B), common.Quantity(3))
	want := []byte{0x00, 0x6B, 0x00, 0x03}
	if !bytesEqual(body, want) {
		t.Fatalf("EncodeReadRequest = % X, want % X", body, want)
	}

	address, quantity, err := DecodeReadRequest(body)
	if err != nil {
		t.Fatalf("DecodeReadRequest: %v", err)
	}
	if address != 0x006B || quantity != 3 {
		t.Fatalf("DecodeReadRequest = (%d, %d), want (0x6B, 3)", address, quantity)
	}
}

func TestDecodeReadRequestRejectsWrongLength(t *testing.T) {
	_, _, err := DecodeReadRequest([]byte{0x00, 0x01})
	if !errors.Is(err, common.ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestEncodeDecodeBitsResponseRoundTrip(t *testing.T) {
	values := []bool{true, false, true, true, false, false, true, true, true, false}
	body := EncodeBitsResponse(values)
	if body[0] != byte(ByteCountForBits(len(values))) {
		t.Fatalf("byte_count = %d, want %d", body[0], ByteCountForBits(len(values)))
	}

	decoded, err := DecodeBitsResponse(body, len(values))
	if err != nil {
		t.Fatalf("DecodeBitsResponse: %v", err)
	}
	for i := range values {
		if decoded[i] != values[i] {
			t.Fatalf("bit %d = %v, want %v", i, decoded[i], values[i])
		}
	}
}

func TestDecodeBitsResponseRejectsByteCountMismatch(t *testing.T) {
	body := []byte{0x02, 0xFF} // claims 2 bytes, only 1 present
	_, err := DecodeBitsResponse(body, 8)
	if !errors.Is(err, common.ErrByteCountMismatch) {
		t.Fatalf("err = %v, want ErrByteCountMismatch", err)
	}
}

func TestDecodeBitsResponseRejectsQuantityMismatch(t *testing.T) {
	body := []byte{0x01, 0xFF} // one byte covers up to 8 bits, but quantity claims 9
	_, err := DecodeBitsResponse(body, 9)
	if !errors.Is(err, common.ErrByteCountMismatch) {
		t.Fatalf("err = %v, want ErrByteCountMismatch", err)
	}
}

func TestEncodeDecodeRegistersResponseRoundTrip(t *testing.T) {
	values := []uint16{0x1234, 0x5678, 0x0000}
	body := EncodeRegistersResponse(values)
	want := []byte{0x06, 0x12, 0x34, 0x56, 0x78, 0x00, 0x00}
	if !bytesEqual(body, want) {
		t.Fatalf("EncodeRegistersResponse = % X, want % X", body, want)
	}

	decoded, err := DecodeRegistersResponse(body, len(values))
	if err != nil {
		t.Fatalf("DecodeRegistersResponse: %v", err)
	}
	for i := range values {
		if decoded[i] != values[i] {
			t.Fatalf("register %d = 0x%04X, want 0x%04X", i, decoded[i], values[i])
		}
	}
}

func TestDecodeRegistersResponseRejectsByteCountMismatch(t *testing.T) {
	body := []byte{0x04, 0x00, 0x01} // claims 4 bytes, only 2 present
	_, err := DecodeRegistersResponse(body, 2)
	if !errors.Is(err, common.ErrByteCountMismatch) {
		t.Fatalf("err = %v, want ErrByteCountMismatch", err)
	}
}

func TestEncodeDecodeWriteSingleCoilRoundTrip(t *testing.T) {
	on := EncodeWriteSingleCoil(common.Address(0x00AC), common.CoilValue(true))
	if !bytesEqual(on, []byte{0x00, 0xAC, 0xFF, 0x00}) {
		t.Fatalf("EncodeWriteSingleCoil(true) = % X", on)
	}
	address, value, err := DecodeWriteSingleCoil(on)
	if err != nil || address != 0x00AC || value != true {
		t.Fatalf("DecodeWriteSingleCoil(on) = (%d, %v, %v)", address, value, err)
	}

	off := EncodeWriteSingleCoil(common.Address(0x00AC), common.CoilValue(false))
	if !bytesEqual(off, []byte{0x00, 0xAC, 0x00, 0x00}) {
		t.Fatalf("EncodeWriteSingleCoil(false) = % X", off)
	}
	address, value, err = DecodeWriteSingleCoil(off)
	if err != nil || address != 0x00AC || value != false {
		t.Fatalf("DecodeWriteSingleCoil(off) = (%d, %v, %v)", address, value, err)
	}
}

func TestDecodeWriteSingleCoilRejectsIllegalValue(t *testing.T) {
	body := []byte{0x00, 0x01, 0x12, 0x34}
	_, _, err := DecodeWriteSingleCoil(body)
	if !errors.Is(err, common.ErrInvalidCoilValue) {
		t.Fatalf("err = %v, want ErrInvalidCoilValue", err)
	}
}

func TestEncodeDecodeWriteSingleRegisterRoundTrip(t *testing.T) {
	body := EncodeWriteSingleRegister(common.Address(0x0001), common.RegisterValue(0x0003))
	want := []byte{0x00, 0x01, 0x00, 0x03}
	if !bytesEqual(body, want) {
		t.Fatalf("EncodeWriteSingleRegister = % X, want % X", body, want)
	}
	address, value, err := DecodeWriteSingleRegister(body)
	if err != nil || address != 1 || value != 3 {
		t.Fatalf("DecodeWriteSingleRegister = (%d, %d, %v)", address, value, err)
	}
}

func TestEncodeDecodeWriteMultipleCoilsRequestRoundTrip(t *testing.T) {
	values := []common.CoilValue{true, false, true, true, false, false, true, true, true, false}
	body := EncodeWriteMultipleCoilsRequest(common.Address(0x0013), values)

	address, decoded, err := DecodeWriteMultipleCoilsRequest(body)
	if err != nil {
		t.Fatalf("DecodeWriteMultipleCoilsRequest: %v", err)
	}
	if address != 0x0013 {
		t.Fatalf("address = %d, want 0x13", address)
	}
	for i := range values {
		if decoded[i] != values[i] {
			t.Fatalf("coil %d = %v, want %v", i, decoded[i], values[i])
		}
	}
}

func TestDecodeWriteMultipleCoilsRequestRejectsTruncatedBody(t *testing.T) {
	_, _, err := DecodeWriteMultipleCoilsRequest([]byte{0x00, 0x01})
	if !errors.Is(err, common.ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestEncodeDecodeWriteMultipleRegistersRequestRoundTrip(t *testing.T) {
	values := []common.RegisterValue{0x000A, 0x0102}
	body := EncodeWriteMultipleRegistersRequest(common.Address(0x0001), values)

	address, decoded, err := DecodeWriteMultipleRegistersRequest(body)
	if err != nil {
		t.Fatalf("DecodeWriteMultipleRegistersRequest: %v", err)
	}
	if address != 1 {
		t.Fatalf("address = %d, want 1", address)
	}
	for i := range values {
		if decoded[i] != values[i] {
			t.Fatalf("register %d = 0x%04X, want 0x%04X", i, decoded[i], values[i])
		}
	}
}

func TestEncodeDecodeWriteMultipleResponseRoundTrip(t *testing.T) {
	body := EncodeWriteMultipleResponse(common.Address(0x0013), common.Quantity(10))
	want := []byte{0x00, 0x13, 0x00, 0x0A}
	if !bytesEqual(body, want) {
		t.Fatalf("EncodeWriteMultipleResponse = % X, want % X", body, want)
	}
	address, quantity, err := DecodeWriteMultipleResponse(body)
	if err != nil || address != 0x13 || quantity != 10 {
		t.Fatalf("DecodeWriteMultipleResponse = (%d, %d, %v)", address, quantity, err)
	}
}

func TestEncodeDecodeExceptionPDU(t *testing.T) {
	pdu := EncodeExceptionPDU(common.FuncReadCoils, common.ExceptionDataAddressNotAvailable)
	if pdu[0] != byte(common.FuncReadCoils)|common.ExceptionBit {
		t.Fatalf("exception function byte = 0x%02X", pdu[0])
	}
	code, err := DecodeExceptionBody(pdu[1:])
	if err != nil {
		t.Fatalf("DecodeExceptionBody: %v", err)
	}
	if code != common.ExceptionDataAddressNotAvailable {
		t.Fatalf("code = %d, want %d", code, common.ExceptionDataAddressNotAvailable)
	}
}

func TestDecodeExceptionBodyRejectsWrongLength(t *testing.T) {
	_, err := DecodeExceptionBody([]byte{0x01, 0x02})
	if !errors.Is(err, common.ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
