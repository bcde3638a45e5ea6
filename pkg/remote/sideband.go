package remote

import (
	"io"

	"github.com/gritvcs/grit/pkg/errs"
	"github.com/gritvcs/grit/pkg/pktline"
)

// Sideband channel bytes. Every data frame in a multiplexed stream
// opens with one.
const (
	bandData     = 1
	bandProgress = 2
	bandError    = 3
)

// DemuxSideband reads multiplexed frames until the flush, returning the
// concatenated band-1 payload. Band-2 progress is copied to progress
// (which may be nil); a band-3 message aborts with the server's text.
func DemuxSideband(pr *pktline.Reader, progress io.Writer) ([]byte, error) {
	var data []byte
	for {
		f, err := pr.ReadFrame()
		if err == io.EOF {
			// Servers commonly end the response at the flush; a bare
			// EOF after data frames is tolerated the same way.
			return data, nil
		}
		if err != nil {
			return nil, err
		}
		if f.Kind == pktline.KindFlush {
			return data, nil
		}
		if f.Kind != pktline.KindData {
			return nil, errs.New(errs.KindProtocol, "unexpected %s frame in sideband stream", f.Kind)
		}
		if len(f.Payload) == 0 {
			return nil, errs.New(errs.KindProtocol, "sideband frame without channel byte")
		}
		band, payload := f.Payload[0], f.Payload[1:]
		switch band {
		case bandData:
			data = append(data, payload...)
		case bandProgress:
			if progress != nil {
				progress.Write(payload)
			}
		case bandError:
			return nil, errs.New(errs.KindProtocol, "remote error: %s", payload)
		default:
			return nil, errs.New(errs.KindProtocol, "unknown sideband channel %d", band)
		}
	}
}

// MuxSideband writes data as band-1 frames, used by test fixtures.
func MuxSideband(pw *pktline.Writer, data []byte) error {
	const chunk = pktline.MaxPayloadLen - 1
	for len(data) > 0 {
		n := len(data)
		if n > chunk {
			n = chunk
		}
		frame := append([]byte{bandData}, data[:n]...)
		if err := pw.WriteData(frame); err != nil {
			return err
		}
		data = data[n:]
	}
	return pw.Flush()
}
