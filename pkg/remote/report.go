package remote

import (
	"io"
	"strings"

	"github.com/gritvcs/grit/pkg/errs"
	"github.com/gritvcs/grit/pkg/pktline"
)

// RefResult is the per-ref outcome of a push.
type RefResult struct {
	Name string
	OK   bool
	// Reason carries the server's ng message for rejected refs.
	Reason string
}

// PushReport is a parsed report-status response.
type PushReport struct {
	UnpackOK     bool
	UnpackReason string
	Results      []RefResult
}

// Rejected returns the refs the server refused. A rejection of one ref
// says nothing about the others; each entry stands alone.
func (r *PushReport) Rejected() []RefResult {
	var out []RefResult
	for _, res := range r.Results {
		if !res.OK {
			out = append(out, res)
		}
	}
	return out
}

// ParseReportStatus decodes "unpack ..." followed by per-ref ok/ng
// lines, terminated by a flush.
func ParseReportStatus(r io.Reader) (*PushReport, error) {
	pr := pktline.NewReader(r)
	first, err := pr.ReadDataFrame()
	if err != nil {
		return nil, errs.Wrap(errs.KindProtocol, err, "reading unpack status")
	}
	line := strings.TrimSuffix(string(first), "\n")
	status, ok := strings.CutPrefix(line, "unpack ")
	if !ok {
		return nil, errs.New(errs.KindProtocol, "expected unpack status, got %q", line)
	}
	report := &PushReport{UnpackOK: status == "ok"}
	if !report.UnpackOK {
		report.UnpackReason = status
	}
	for {
		f, err := pr.ReadFrame()
		if err == io.EOF || (err == nil && f.Kind == pktline.KindFlush) {
			return report, nil
		}
		if err != nil {
			return nil, errs.Wrap(errs.KindProtocol, err, "reading ref status")
		}
		line := strings.TrimSuffix(string(f.Payload), "\n")
		switch {
		case strings.HasPrefix(line, "ok "):
			report.Results = append(report.Results, RefResult{Name: line[3:], OK: true})
		case strings.HasPrefix(line, "ng "):
			rest := line[3:]
			name, reason, _ := strings.Cut(rest, " ")
			report.Results = append(report.Results, RefResult{Name: name, Reason: reason})
		default:
			return nil, errs.New(errs.KindProtocol, "malformed ref status %q", line)
		}
	}
}

// WriteReportStatus renders a report, for test fixtures and local
// serving.
func WriteReportStatus(w io.Writer, report *PushReport) error {
	pw := pktline.NewWriter(w)
	unpack := "unpack ok\n"
	if !report.UnpackOK {
		unpack = "unpack " + report.UnpackReason + "\n"
	}
	if err := pw.WriteString(unpack); err != nil {
		return err
	}
	for _, res := range report.Results {
		var line string
		if res.OK {
			line = "ok " + res.Name + "\n"
		} else {
			line = "ng " + res.Name + " " + res.Reason + "\n"
		}
		if err := pw.WriteString(line); err != nil {
			return err
		}
	}
	return pw.Flush()
}
