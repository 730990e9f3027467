package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/brightloop-io/modbus-toolkit/common"
)

// Header is the 7-octet MBAP header preceding every PDU.
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 4.1, Table 3.
type Header struct {
	TransactionID common.TransactionID
	ProtocolID    common.ProtocolID
	Length        uint16 // unit id (1) + PDU length
	UnitID        common.UnitID
}

// EncodeHeader writes the 7-octet MBAP header for a PDU of pduLength octets.
func EncodeHeader(w io.Writer, txID common.TransactionID, unitID common.UnitID, pduLength int) error {
	length := uint16(1 + pduLength) // unit id + PDU
	if err := binary.Write(w, binary.BigEndian, txID); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, common.TCPProtocolIdentifier); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, length); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, unitID)
}

// DecodeHeader reads exactly common.TCPHeaderLength octets from r and
// validates the protocol id and length range.
// Ref: spec Section 4.1 - length must be in 2..254 (1 unit id + 1..253 PDU).
func DecodeHeader(r io.Reader) (Header, error) {
	buf := make([]byte, common.TCPHeaderLength)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, fmt.Errorf("%w: %w", common.ErrTruncated, err)
	}

	h := Header{
		TransactionID: common.TransactionID(binary.BigEndian.Uint16(buf[0:2])),
		ProtocolID:    common.ProtocolID(binary.BigEndian.Uint16(buf[2:4])),
		Length:        binary.BigEndian.Uint16(buf[4:6]),
		UnitID:        common.UnitID(buf[6]),
	}

	if h.ProtocolID != common.TCPProtocolIdentifier {
		return h, common.ErrBadProtocol
	}
	if h.Length < 2 || h.Length > common.MaxPDULength+1 {
		return h, common.ErrBadLength
	}
	return h, nil
}

// NewReader wraps a byte slice for decode calls that expect an io.Reader.
func NewReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
