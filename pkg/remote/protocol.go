package remote

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gritvcs/grit/pkg/errs"
	"github.com/gritvcs/grit/pkg/object"
	"github.com/gritvcs/grit/pkg/pktline"
)

// UploadPackRequest renders a want/have negotiation body. The first
// want line carries our capability choices; the exchange ends with
// done, so the server answers with a single NAK and the pack.
func UploadPackRequest(wants, haves []object.Hash, caps []string) ([]byte, error) {
	if len(wants) == 0 {
		return nil, errs.New(errs.KindIntegrity, "upload-pack request without wants")
	}
	var buf bytes.Buffer
	pw := pktline.NewWriter(&buf)
	for i, w := range wants {
		line := fmt.Sprintf("want %s", w)
		if i == 0 && len(caps) > 0 {
			line += " " + strings.Join(caps, " ")
		}
		if err := pw.WriteString(line + "\n"); err != nil {
			return nil, err
		}
	}
	if err := pw.Flush(); err != nil {
		return nil, err
	}
	for _, h := range haves {
		if err := pw.WriteString(fmt.Sprintf("have %s\n", h)); err != nil {
			return nil, err
		}
	}
	if err := pw.WriteString("done\n"); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadUploadPackResponse consumes ACK/NAK frames and returns the pack
// bytes that follow. With sideband set, pack data arrives multiplexed
// and progress is copied to the progress writer.
func ReadUploadPackResponse(r io.Reader, sideband bool, progress io.Writer) ([]byte, error) {
	pr := pktline.NewReader(r)
	// Acknowledgement section: with done-negotiation this is NAK or a
	// final ACK line.
	for {
		payload, err := pr.ReadDataFrame()
		if err != nil {
			return nil, errs.Wrap(errs.KindProtocol, err, "reading negotiation result")
		}
		line := strings.TrimSuffix(string(payload), "\n")
		if line == "NAK" || strings.HasPrefix(line, "ACK ") {
			if line == "NAK" || !strings.HasSuffix(line, "continue") {
				break
			}
			continue
		}
		return nil, errs.New(errs.KindProtocol, "unexpected negotiation line %q", line)
	}
	if sideband {
		return DemuxSideband(pr, progress)
	}
	// Bare mode: the pack follows the framing directly.
	data, err := io.ReadAll(pr.Raw())
	if err != nil {
		return nil, errs.Wrap(errs.KindNetwork, err, "reading pack stream")
	}
	return data, nil
}

// RefCommand is one push ref update: create when Old is zero, delete
// when New is zero, update otherwise.
type RefCommand struct {
	Name string
	Old  object.Hash
	New  object.Hash
}

// ReceivePackRequest renders the push body: one command frame per ref
// with capabilities after a NUL on the first, a flush, then the raw
// pack stream.
func ReceivePackRequest(commands []RefCommand, caps []string, pack []byte) ([]byte, error) {
	if len(commands) == 0 {
		return nil, errs.New(errs.KindIntegrity, "receive-pack request without commands")
	}
	var buf bytes.Buffer
	pw := pktline.NewWriter(&buf)
	for i, cmd := range commands {
		line := fmt.Sprintf("%s %s %s", cmd.Old, cmd.New, cmd.Name)
		if i == 0 && len(caps) > 0 {
			line += "\x00" + strings.Join(caps, " ")
		}
		if err := pw.WriteString(line + "\n"); err != nil {
			return nil, err
		}
	}
	if err := pw.Flush(); err != nil {
		return nil, err
	}
	buf.Write(pack)
	return buf.Bytes(), nil
}

// ParseReceivePackRequest is the server-side inverse, used by test
// fixtures and local serving.
func ParseReceivePackRequest(r io.Reader) ([]RefCommand, []byte, error) {
	pr := pktline.NewReader(r)
	var commands []RefCommand
	for {
		f, err := pr.ReadFrame()
		if err != nil {
			return nil, nil, errs.Wrap(errs.KindProtocol, err, "reading update command")
		}
		if f.Kind == pktline.KindFlush {
			break
		}
		line := strings.TrimSuffix(string(f.Payload), "\n")
		line, _, _ = strings.Cut(line, "\x00")
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, nil, errs.New(errs.KindProtocol, "malformed update command %q", line)
		}
		old, err := object.ParseHash(fields[0])
		if err != nil {
			return nil, nil, err
		}
		newID, err := object.ParseHash(fields[1])
		if err != nil {
			return nil, nil, err
		}
		commands = append(commands, RefCommand{Name: fields[2], Old: old, New: newID})
	}
	pack, err := io.ReadAll(pr.Raw())
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindProtocol, err, "reading pack stream")
	}
	return commands, pack, nil
}
