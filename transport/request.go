package transport

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/brightloop-io/modbus-toolkit/codec"
	"github.com/brightloop-io/modbus-toolkit/common"
)

// Request implements the common.Request interface
type Request struct {
	TransactionID common.TransactionID
	ProtocolID    common.ProtocolID
	UnitID        common.UnitID
	PDU           *common.PDU
	Create        time.Time
}

// NewRequest creates a new Request
func NewRequest(unitID common.UnitID, functionCode common.FunctionCode, data []byte) *Request {
	return &Request{
		ProtocolID: common.TCPProtocolIdentifier,
		UnitID:     unitID,
		PDU: &common.PDU{
			FunctionCode: functionCode,
			Data:         data,
		},
		Create: time.Now(),
	}
}

// GetTransactionID returns the transaction ID
func (r *Request) GetTransactionID() common.TransactionID {
	return r.TransactionID
}

// SetTransactionID sets the transaction ID
func (r *Request) SetTransactionID(id common.TransactionID) {
	r.TransactionID = id
}

// GetUnitID returns the unit ID
func (r *Request) GetUnitID() common.UnitID {
	return r.UnitID
}

// GetPDU returns the PDU
func (r *Request) GetPDU() *common.PDU {
	return r.PDU
}

// Encode encodes a Request into bytes: MBAP header followed by PDU.
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 4.1 (MBAP Header format)
func (r *Request) Encode() ([]byte, error) {
	pduLength := 1 + len(r.PDU.Data) // function code + data

	var buffer bytes.Buffer
	if err := codec.EncodeHeader(&buffer, r.TransactionID, r.UnitID, pduLength); err != nil {
		return nil, err
	}
	buffer.WriteByte(byte(r.PDU.FunctionCode))
	buffer.Write(r.PDU.Data)

	return buffer.Bytes(), nil
}

// Decode decodes a Request from bytes: MBAP header followed by PDU.
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 4.1 (MBAP Header) and Section 6 (PDU format)
func (r *Request) Decode(data []byte) error {
	reader := codec.NewReader(data)

	header, err := codec.DecodeHeader(reader)
	if err != nil {
		return err
	}
	r.TransactionID = header.TransactionID
	r.ProtocolID = header.ProtocolID
	r.UnitID = header.UnitID

	pdu := make([]byte, int(header.Length)-1) // -1 for UnitID, already consumed by the header
	if _, err := io.ReadFull(reader, pdu); err != nil {
		return fmt.Errorf("%w: %v", common.ErrTruncated, err)
	}
	if len(pdu) == 0 {
		return fmt.Errorf("%w: request has no function code", common.ErrTruncated)
	}

	r.PDU = &common.PDU{
		FunctionCode: common.FunctionCode(pdu[0]),
		Data:         pdu[1:],
	}

	return nil
}

// GetLifetime returns the lifetime of the request
func (r *Request) GetLifetime() time.Duration {
	return time.Since(r.Create)
}

// Cancel is called when a transaction is cancelled
func (r *Request) Cancel(err error) {
	// Our transaction has timed out or some other error occurred
	// This method can be used for cleanup if needed
}