// Package pktline implements the length-prefixed framing used by the
// smart transfer protocol. Every frame starts with four hex digits:
// the total frame length for data frames, or one of the reserved
// control values.
package pktline

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/gritvcs/grit/pkg/errs"
)

// MaxPayloadLen is the largest payload a single data frame can carry:
// 65520 total frame bytes minus the four-digit prefix.
const MaxPayloadLen = 65516

// Kind distinguishes data frames from the reserved control frames.
type Kind int

const (
	KindData Kind = iota
	// KindFlush is the 0000 section terminator.
	KindFlush
	// KindDelim is the 0001 section delimiter.
	KindDelim
	// KindResponseEnd is the 0002 response terminator.
	KindResponseEnd
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindFlush:
		return "flush"
	case KindDelim:
		return "delim"
	case KindResponseEnd:
		return "response-end"
	default:
		return "invalid"
	}
}

// Frame is one decoded pkt-line. Payload is nil for control frames.
type Frame struct {
	Kind    Kind
	Payload []byte
}

// Reader decodes frames from a byte stream.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Raw exposes the underlying buffered stream for protocols that switch
// from frames to raw bytes mid-response.
func (r *Reader) Raw() io.Reader { return r.r }

// ReadFrame returns the next frame. io.EOF is returned unwrapped at a
// clean stream end; a stream that ends inside a frame is a protocol
// error.
func (r *Reader) ReadFrame() (Frame, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r.r, prefix[:]); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		return Frame{}, errs.Wrap(errs.KindProtocol, err, "reading frame length")
	}
	var raw [2]byte
	if _, err := hex.Decode(raw[:], prefix[:]); err != nil {
		return Frame{}, errs.New(errs.KindProtocol, "non-hex frame length %q", prefix)
	}
	length := int(raw[0])<<8 | int(raw[1])
	switch length {
	case 0:
		return Frame{Kind: KindFlush}, nil
	case 1:
		return Frame{Kind: KindDelim}, nil
	case 2:
		return Frame{Kind: KindResponseEnd}, nil
	case 3:
		return Frame{}, errs.New(errs.KindProtocol, "frame length 3 is reserved")
	}
	payload := make([]byte, length-4)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return Frame{}, errs.Wrap(errs.KindProtocol, err, "frame truncated (declared %d bytes)", length)
	}
	return Frame{Kind: KindData, Payload: payload}, nil
}

// ReadDataFrame returns the payload of the next frame and requires it
// to be a data frame.
func (r *Reader) ReadDataFrame() ([]byte, error) {
	f, err := r.ReadFrame()
	if err != nil {
		return nil, err
	}
	if f.Kind != KindData {
		return nil, errs.New(errs.KindProtocol, "expected data frame, got %s", f.Kind)
	}
	return f.Payload, nil
}

// Writer encodes frames onto a byte stream.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteData emits one data frame. Payloads above MaxPayloadLen are the
// caller's bug, not a split point; use WriteChunked for bulk data.
func (w *Writer) WriteData(payload []byte) error {
	if len(payload) > MaxPayloadLen {
		return errs.New(errs.KindProtocol, "payload of %d bytes exceeds frame limit", len(payload))
	}
	if _, err := fmt.Fprintf(w.w, "%04x", len(payload)+4); err != nil {
		return errs.Wrap(errs.KindNetwork, err, "writing frame length")
	}
	_, err := w.w.Write(payload)
	return errs.Wrap(errs.KindNetwork, err, "writing frame payload")
}

// WriteString emits s as a data frame.
func (w *Writer) WriteString(s string) error {
	return w.WriteData([]byte(s))
}

// WriteChunked splits data across as many maximal frames as needed.
func (w *Writer) WriteChunked(data []byte) error {
	for len(data) > 0 {
		n := len(data)
		if n > MaxPayloadLen {
			n = MaxPayloadLen
		}
		if err := w.WriteData(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func (w *Writer) control(v string) error {
	_, err := io.WriteString(w.w, v)
	return errs.Wrap(errs.KindNetwork, err, "writing control frame")
}

// Flush emits the 0000 section terminator.
func (w *Writer) Flush() error { return w.control("0000") }

// Delim emits the 0001 section delimiter.
func (w *Writer) Delim() error { return w.control("0001") }

// ResponseEnd emits the 0002 response terminator.
func (w *Writer) ResponseEnd() error { return w.control("0002") }
