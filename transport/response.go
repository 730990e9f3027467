package transport

import (
	"bytes"
	"fmt"
	"io"

	"github.com/brightloop-io/modbus-toolkit/codec"
	"github.com/brightloop-io/modbus-toolkit/common"
)

// Response implements the common.Response interface
type Response struct {
	TransactionID common.TransactionID
	ProtocolID    common.ProtocolID
	UnitID        common.UnitID
	PDU           *common.PDU
}

// NewResponse creates a new Response
func NewResponse(transactionID common.TransactionID, unitID common.UnitID, functionCode common.FunctionCode, data []byte) *Response {
	return &Response{
		TransactionID: transactionID,
		ProtocolID:    common.TCPProtocolIdentifier,
		UnitID:        unitID,
		PDU: &common.PDU{
			FunctionCode: functionCode,
			Data:         data,
		},
	}
}

// GetTransactionID returns the transaction ID
func (r *Response) GetTransactionID() common.TransactionID {
	return r.TransactionID
}

// GetUnitID returns the unit ID
func (r *Response) GetUnitID() common.UnitID {
	return r.UnitID
}

// GetPDU returns the PDU
func (r *Response) GetPDU() *common.PDU {
	return r.PDU
}

// Encode encodes a Response into bytes: MBAP header followed by PDU.
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 4.1 (MBAP Header format)
func (r *Response) Encode() ([]byte, error) {
	pduLength := 1 + len(r.PDU.Data) // function code + data

	var buffer bytes.Buffer
	if err := codec.EncodeHeader(&buffer, r.TransactionID, r.UnitID, pduLength); err != nil {
		return nil, err
	}
	buffer.WriteByte(byte(r.PDU.FunctionCode))
	buffer.Write(r.PDU.Data)

	return buffer.Bytes(), nil
}

// Decode decodes a Response from bytes: MBAP header followed by PDU.
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 4.1 (MBAP Header) and Section 6 (PDU format)
func (r *Response) Decode(data []byte) error {
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
		return fmt.Errorf("%w: response has no function code", common.ErrTruncated)
	}

	r.PDU = &common.PDU{
		FunctionCode: common.FunctionCode(pdu[0]),
		Data:         pdu[1:],
	}

	return nil
}

// IsException checks if the response is an exception
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 7 (Exception Responses)
func (r *Response) IsException() bool {
	return common.IsFunctionException(r.PDU.FunctionCode)
}

// GetException returns the exception code if the response is an exception
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 7 (Exception Responses)
func (r *Response) GetException() common.ExceptionCode {
	if r.IsException() && len(r.PDU.Data) > 0 {
		// For an exception response, the data field contains the exception code
		// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 7
		return common.ExceptionCode(r.PDU.Data[0])
	}
	return 0
}

// ToError converts an exception response to an error
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 7 (Exception Responses)
func (r *Response) ToError() error {
	if r.IsException() {
		return common.NewModbusError(r.PDU.FunctionCode, r.GetException())
	}
	return nil
}
