package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/brightloop-io/modbus-toolkit/common"
)

// Frame is one complete MBAP frame: header plus the raw PDU bytes
// (function code followed by function-specific data).
type Frame struct {
	Header Header
	PDU    []byte
}

// framerState is the Framer's internal state machine, matching spec Section
// 4.2: WantHeader accumulates until a full 7-byte header is available;
// WantPDU accumulates until the header's declared payload length is available.
type framerState int

const (
	stateWantHeader framerState = iota
	stateWantPDU
)

// Framer assembles complete MBAP frames from a byte stream without
// over-reading, so the codec is never handed a partial PDU. It is
// non-blocking and idempotent on partial data, and connection-agnostic: it
// is driven by repeated calls to Feed with whatever bytes a reader produced,
// not by owning the reader itself.
type Framer struct {
	buf       bytes.Buffer
	state     framerState
	header    Header
	pduLength int
}

// NewFramer creates an empty Framer ready to receive bytes via Feed.
func NewFramer() *Framer {
	return &Framer{state: stateWantHeader}
}

// Feed appends newly read bytes to the framer's internal buffer. It never
// blocks and never discards bytes; call Next afterward to drain any
// complete frames.
func (f *Framer) Feed(data []byte) {
	f.buf.Write(data)
}

// Next attempts to extract one complete frame from previously fed bytes.
// It returns ok=false (with a nil error) if not enough data has accumulated
// yet — this is not an error condition, just "call Feed again". A non-nil
// error is a frame-level fault (bad protocol id or length); the caller must
// close the connection, since the transaction id in a faulted frame cannot
// be trusted.
func (f *Framer) Next() (frame Frame, ok bool, err error) {
	if f.state == stateWantHeader {
		if f.buf.Len() < common.TCPHeaderLength {
			return Frame{}, false, nil
		}
		headerBytes := f.buf.Next(common.TCPHeaderLength)
		header, herr := DecodeHeader(bytes.NewReader(headerBytes))
		if herr != nil {
			return Frame{}, false, herr
		}
		f.header = header
		f.pduLength = int(header.Length) - 1
		f.state = stateWantPDU
	}

	if f.buf.Len() < f.pduLength {
		return Frame{}, false, nil
	}

	pdu := make([]byte, f.pduLength)
	if n, _ := f.buf.Read(pdu); n != f.pduLength {
		return Frame{}, false, fmt.Errorf("%w: short PDU read", common.ErrTruncated)
	}

	frame = Frame{Header: f.header, PDU: pdu}
	f.state = stateWantHeader
	f.header = Header{}
	f.pduLength = 0
	return frame, true, nil
}

// ReadFrame blocks on r until one complete frame has been read, feeding the
// framer incrementally. It is a convenience wrapper around Feed/Next for
// callers (such as a server connection) driven directly by a net.Conn rather
// than by independently-sourced byte chunks.
func ReadFrame(r io.Reader, f *Framer) (Frame, error) {
	for {
		if frame, ok, err := f.Next(); err != nil {
			return Frame{}, err
		} else if ok {
			return frame, nil
		}

		chunk := make([]byte, 4096)
		n, err := r.Read(chunk)
		if n > 0 {
			f.Feed(chunk[:n])
		}
		if err != nil {
			return Frame{}, err
		}
	}
}
