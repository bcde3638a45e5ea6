package repo

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/gritvcs/grit/pkg/errs"
	"github.com/gritvcs/grit/pkg/object"
)

// Head returns the ref HEAD points at and its tip. An unborn branch
// (HEAD names a ref with no file yet) yields the zero id. A detached
// HEAD yields an empty ref name.
func (r *Repo) Head() (ref string, tip object.Hash, err error) {
	data, err := os.ReadFile(r.path("HEAD"))
	if err != nil {
		return "", "", errs.Wrap(errs.KindCorrupt, err, "reading HEAD")
	}
	line := strings.TrimSpace(string(data))
	if target, ok := strings.CutPrefix(line, "ref: "); ok {
		tip, err = r.ReadRef(target)
		if errs.Is(err, errs.KindNotFound) {
			return target, object.ZeroHash, nil
		}
		return target, tip, err
	}
	tip, err = object.ParseHash(line)
	if err != nil {
		return "", "", errs.Wrap(errs.KindCorrupt, err, "HEAD contents")
	}
	return "", tip, nil
}

// SetHead points HEAD at a ref (attached) without touching the ref
// itself.
func (r *Repo) SetHead(ref string) error {
	return writeFileAtomic(r.path("HEAD"), []byte("ref: "+ref+"\n"))
}

// SetHeadDetached points HEAD directly at a commit.
func (r *Repo) SetHeadDetached(h object.Hash) error {
	return writeFileAtomic(r.path("HEAD"), []byte(string(h)+"\n"))
}

func (r *Repo) refPath(name string) string {
	return r.path(filepath.FromSlash(name))
}

// ReadRef returns the tip a full ref name points at.
func (r *Repo) ReadRef(name string) (object.Hash, error) {
	data, err := os.ReadFile(r.refPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errs.New(errs.KindNotFound, "ref %s", name)
		}
		return "", errs.Wrap(errs.KindUnknown, err, "reading ref %s", name)
	}
	h, err := object.ParseHash(strings.TrimSpace(string(data)))
	if err != nil {
		return "", errs.Wrap(errs.KindCorrupt, err, "ref %s", name)
	}
	return h, nil
}

// UpdateRefCAS moves a ref from old to new under a per-ref lock. A
// zero old requires the ref not to exist; a zero new deletes it. A tip
// that moved underneath the caller is a conflict, never silently
// overwritten.
func (r *Repo) UpdateRefCAS(name string, old, newID object.Hash, reason string) error {
	path := r.refPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Wrap(errs.KindUnknown, err, "creating ref dir for %s", name)
	}
	release, err := acquireLock(path + ".lock")
	if err != nil {
		return err
	}
	defer release()

	cur, err := r.ReadRef(name)
	switch {
	case errs.Is(err, errs.KindNotFound):
		cur = object.ZeroHash
	case err != nil:
		return err
	}
	if cur != old {
		return errs.New(errs.KindConflict, "ref %s moved: expected %s, found %s", name, old.Short(), cur.Short())
	}
	if newID.IsZero() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errs.Wrap(errs.KindUnknown, err, "deleting ref %s", name)
		}
	} else {
		if err := writeFileAtomic(path, []byte(string(newID)+"\n")); err != nil {
			return err
		}
	}
	if err := r.appendReflog(name, old, newID, reason); err != nil {
		r.log.Warn("reflog append failed", zap.String("ref", name), zap.Error(err))
	}
	return nil
}

// SetRef force-writes a ref, bypassing the compare step but not the
// lock. Fetch uses it for remote-tracking refs, which mirror the
// remote rather than guard local work.
func (r *Repo) SetRef(name string, newID object.Hash, reason string) error {
	old, err := r.ReadRef(name)
	if errs.Is(err, errs.KindNotFound) {
		old = object.ZeroHash
	} else if err != nil {
		return err
	}
	if old == newID {
		return nil
	}
	return r.UpdateRefCAS(name, old, newID, reason)
}

// ListRefs returns every ref under the given prefix (e.g. "refs/heads")
// sorted by name.
func (r *Repo) ListRefs(prefix string) (map[string]object.Hash, error) {
	root := r.refPath(prefix)
	out := map[string]object.Hash{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".lock") {
			return nil
		}
		rel, err := filepath.Rel(r.Dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		h, err := r.ReadRef(name)
		if err != nil {
			return err
		}
		out[name] = h
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindUnknown, err, "listing refs under %s", prefix)
	}
	return out, nil
}

// SortedRefNames returns the keys of a ref map in order.
func SortedRefNames(refs map[string]object.Hash) []string {
	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveRevision turns user input into a commit id: a 40-hex id, a
// full ref, a branch name, or HEAD.
func (r *Repo) ResolveRevision(rev string) (object.Hash, error) {
	if rev == "HEAD" {
		_, tip, err := r.Head()
		if err != nil {
			return "", err
		}
		if tip.IsZero() {
			return "", errs.New(errs.KindNotFound, "HEAD is unborn")
		}
		return tip, nil
	}
	if h, err := object.ParseHash(rev); err == nil {
		return h, nil
	}
	for _, name := range []string{rev, "refs/heads/" + rev, "refs/remotes/" + rev, "refs/tags/" + rev} {
		if h, err := r.ReadRef(name); err == nil {
			return h, nil
		}
	}
	return "", errs.New(errs.KindNotFound, "revision %q", rev)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return errs.Wrap(errs.KindUnknown, err, "creating temp file for %s", path)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errs.Wrap(errs.KindUnknown, err, "writing %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errs.Wrap(errs.KindUnknown, err, "closing %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errs.Wrap(errs.KindUnknown, err, "installing %s", path)
	}
	return nil
}
