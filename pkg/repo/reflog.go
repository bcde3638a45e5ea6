package repo

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gritvcs/grit/pkg/errs"
	"github.com/gritvcs/grit/pkg/object"
)

// ReflogEntry is one recorded ref movement.
type ReflogEntry struct {
	Old    object.Hash
	New    object.Hash
	When   time.Time
	Reason string
}

func (r *Repo) reflogPath(ref string) string {
	return r.path("logs", filepath.FromSlash(ref))
}

// appendReflog records a ref movement. Lines are
// "<old> <new> <unix> <reason>": append-only, never rewritten.
func (r *Repo) appendReflog(ref string, old, newID object.Hash, reason string) error {
	path := r.reflogPath(ref)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Wrap(errs.KindUnknown, err, "creating reflog dir")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.Wrap(errs.KindUnknown, err, "opening reflog for %s", ref)
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%s %s %d %s\n", old, newID, time.Now().Unix(), reason)
	return errs.Wrap(errs.KindUnknown, err, "appending reflog for %s", ref)
}

// Reflog returns the recorded movements of a ref, oldest first.
func (r *Repo) Reflog(ref string) ([]ReflogEntry, error) {
	f, err := os.Open(r.reflogPath(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.KindUnknown, err, "opening reflog for %s", ref)
	}
	defer f.Close()

	var out []ReflogEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.SplitN(sc.Text(), " ", 4)
		if len(fields) < 3 {
			return nil, errs.New(errs.KindCorrupt, "reflog line %q", sc.Text())
		}
		old, err := object.ParseHash(fields[0])
		if err != nil {
			return nil, errs.Wrap(errs.KindCorrupt, err, "reflog for %s", ref)
		}
		newID, err := object.ParseHash(fields[1])
		if err != nil {
			return nil, errs.Wrap(errs.KindCorrupt, err, "reflog for %s", ref)
		}
		var unix int64
		if _, err := fmt.Sscanf(fields[2], "%d", &unix); err != nil {
			return nil, errs.Wrap(errs.KindCorrupt, err, "reflog timestamp")
		}
		e := ReflogEntry{Old: old, New: newID, When: time.Unix(unix, 0)}
		if len(fields) == 4 {
			e.Reason = fields[3]
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, errs.Wrap(errs.KindUnknown, err, "reading reflog for %s", ref)
	}
	return out, nil
}
