package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/brightloop-io/modbus-toolkit/common"
)

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeHeader(&buf, common.TransactionID(0x1234), common.UnitID(7), 5); err != nil {
		t.Fatalf("EncodeHeader: %v", err)
	}

	if got, want := buf.Len(), common.TCPHeaderLength; got != want {
		t.Fatalf("encoded header length = %d, want %d", got, want)
	}

	header, err := DecodeHeader(&buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if header.TransactionID != 0x1234 {
		t.Errorf("TransactionID = 0x%04X, want 0x1234", header.TransactionID)
	}
	if header.ProtocolID != common.TCPProtocolIdentifier {
		t.Errorf("ProtocolID = %d, want 0", header.ProtocolID)
	}
	if header.Length != 6 { // unit id (1) + pdu (5)
		t.Errorf("Length = %d, want 6", header.Length)
	}
	if header.UnitID != 7 {
		t.Errorf("UnitID = %d, want 7", header.UnitID)
	}
}

func TestDecodeHeaderRejectsBadProtocolID(t *testing.T) {
	raw := []byte{0x00, 0x01, 0x00, 0x02, 0x00, 0x06, 0x01}
	_, err := DecodeHeader(bytes.NewReader(raw))
	if !errors.Is(err, common.ErrBadProtocol) {
		t.Fatalf("err = %v, want ErrBadProtocol", err)
	}
}

func TestDecodeHeaderRejectsLengthTooSmall(t *testing.T) {
	raw := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x01}
	_, err := DecodeHeader(bytes.NewReader(raw))
	if !errors.Is(err, common.ErrBadLength) {
		t.Fatalf("err = %v, want ErrBadLength", err)
	}
}

func TestDecodeHeaderRejectsLengthTooLarge(t *testing.T) {
	raw := []byte{0x00, 0x01, 0x00, 0x00, 0x01, 0x00, 0x01} // length = 256 > MaxPDULength+1
	_, err := DecodeHeader(bytes.NewReader(raw))
	if !errors.Is(err, common.ErrBadLength) {
		t.Fatalf("err = %v, want ErrBadLength", err)
	}
}

func TestDecodeHeaderRejectsTruncatedInput(t *testing.T) {
	raw := []byte{0x00, 0x01, 0x00}
	_, err := DecodeHeader(bytes.NewReader(raw))
	if !errors.Is(err, common.ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestDecodeHeaderAcceptsMaxLength(t *testing.T) {
	raw := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0xFE, 0x01} // length = 254 = MaxPDULength+1
	header, err := DecodeHeader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if header.Length != common.MaxPDULength+1 {
		t.Fatalf("Length = %d, want %d", header.Length, common.MaxPDULength+1)
	}
}
