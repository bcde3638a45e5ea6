package remote

import (
	"io"
	"strings"

	"github.com/gritvcs/grit/pkg/errs"
	"github.com/gritvcs/grit/pkg/object"
	"github.com/gritvcs/grit/pkg/pktline"
)

// Advertisement is a parsed ref discovery response.
type Advertisement struct {
	Service string
	// Refs maps ref names to tips, in advertised order via Order.
	Refs  map[string]object.Hash
	Order []string
	// Peeled maps annotated tag refs to their peeled targets
	// (advertised as "<ref>^{}" lines).
	Peeled map[string]object.Hash
	Caps   CapList
}

// Empty reports whether the remote advertised no refs, which a fresh
// repository does with a single zero-id capabilities^{} line.
func (a *Advertisement) Empty() bool { return len(a.Refs) == 0 }

// HeadTarget returns the branch HEAD points at, from the symref
// capability, or "" when not advertised.
func (a *Advertisement) HeadTarget() string {
	return a.Caps.SymrefTarget("HEAD")
}

// ParseAdvertisement decodes a smart discovery body for the given
// service. The body opens with a "# service=<name>" announcement frame
// and a flush, then one frame per ref with the capability list attached
// after a NUL on the first.
func ParseAdvertisement(r io.Reader, service string) (*Advertisement, error) {
	pr := pktline.NewReader(r)

	announce, err := pr.ReadDataFrame()
	if err != nil {
		return nil, errs.Wrap(errs.KindProtocol, err, "reading service announcement")
	}
	want := "# service=" + service
	if got := strings.TrimSuffix(string(announce), "\n"); got != want {
		return nil, errs.New(errs.KindProtocol, "service announcement %q, want %q", got, want)
	}
	f, err := pr.ReadFrame()
	if err != nil {
		return nil, errs.Wrap(errs.KindProtocol, err, "after service announcement")
	}
	if f.Kind != pktline.KindFlush {
		return nil, errs.New(errs.KindProtocol, "expected flush after announcement, got %s", f.Kind)
	}

	adv := &Advertisement{
		Service: service,
		Refs:    map[string]object.Hash{},
		Peeled:  map[string]object.Hash{},
		Caps:    CapList{},
	}
	first := true
	for {
		f, err := pr.ReadFrame()
		if err != nil {
			return nil, errs.Wrap(errs.KindProtocol, err, "reading ref advertisement")
		}
		if f.Kind == pktline.KindFlush {
			break
		}
		if f.Kind != pktline.KindData {
			return nil, errs.New(errs.KindProtocol, "unexpected %s frame in ref advertisement", f.Kind)
		}
		line := strings.TrimSuffix(string(f.Payload), "\n")
		if first {
			first = false
			var capStr string
			line, capStr, _ = strings.Cut(line, "\x00")
			adv.Caps = ParseCaps(capStr)
		}
		idStr, name, found := strings.Cut(line, " ")
		if !found {
			return nil, errs.New(errs.KindProtocol, "malformed ref line %q", line)
		}
		id, err := object.ParseHash(idStr)
		if err != nil {
			return nil, err
		}
		switch {
		case name == "capabilities^{}" && id.IsZero():
			// Empty repository placeholder; carries caps only.
		case strings.HasSuffix(name, "^{}"):
			adv.Peeled[strings.TrimSuffix(name, "^{}")] = id
		default:
			adv.Refs[name] = id
			adv.Order = append(adv.Order, name)
		}
	}
	return adv, nil
}

// WriteAdvertisement renders an advertisement body. The client never
// sends one; test fixtures and local serving do.
func WriteAdvertisement(w io.Writer, adv *Advertisement) error {
	pw := pktline.NewWriter(w)
	if err := pw.WriteString("# service=" + adv.Service + "\n"); err != nil {
		return err
	}
	if err := pw.Flush(); err != nil {
		return err
	}
	caps := adv.Caps.String()
	if len(adv.Order) == 0 {
		if err := pw.WriteString(string(object.ZeroHash) + " capabilities^{}\x00" + caps + "\n"); err != nil {
			return err
		}
		return pw.Flush()
	}
	for i, name := range adv.Order {
		line := string(adv.Refs[name]) + " " + name
		if i == 0 {
			line += "\x00" + caps
		}
		if err := pw.WriteString(line + "\n"); err != nil {
			return err
		}
		if peeled, ok := adv.Peeled[name]; ok {
			if err := pw.WriteString(string(peeled) + " " + name + "^{}\n"); err != nil {
				return err
			}
		}
	}
	return pw.Flush()
}
