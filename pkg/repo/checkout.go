package repo

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gritvcs/grit/pkg/errs"
	"github.com/gritvcs/grit/pkg/object"
)

// CheckoutTree replaces the tracked portion of the working tree with
// the given tree's contents and realigns the staging area. Files never
// tracked by either side are left alone.
func (r *Repo) CheckoutTree(oldTree, newTree object.Hash) error {
	var oldFlat map[string]FlatEntry
	if oldTree != "" {
		var err error
		oldFlat, err = r.FlattenTree(oldTree)
		if err != nil {
			return err
		}
	}
	newFlat, err := r.FlattenTree(newTree)
	if err != nil {
		return err
	}

	for path := range oldFlat {
		if _, kept := newFlat[path]; kept {
			continue
		}
		if err := os.Remove(r.workPath(path)); err != nil && !os.IsNotExist(err) {
			return errs.Wrap(errs.KindUnknown, err, "removing %s", path)
		}
		r.removeEmptyParents(path)
	}
	for path, e := range newFlat {
		content, err := r.Store.ReadTyped(e.Hash, object.TypeBlob)
		if err != nil {
			return err
		}
		dst := r.workPath(path)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return errs.Wrap(errs.KindUnknown, err, "creating dir for %s", path)
		}
		if err := os.WriteFile(dst, content, permFor(e.Mode)); err != nil {
			return errs.Wrap(errs.KindUnknown, err, "writing %s", path)
		}
	}
	return r.StageTree(newTree)
}

// removeEmptyParents prunes directories emptied by file removal, up to
// but never including the repository root.
func (r *Repo) removeEmptyParents(rel string) {
	dir := filepath.Dir(rel)
	for dir != "." && dir != "/" {
		full := r.workPath(dir)
		entries, err := os.ReadDir(full)
		if err != nil || len(entries) > 0 {
			return
		}
		if os.Remove(full) != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// WorktreeClean reports whether every staged file matches the working
// tree byte for byte. Mutating operations require a clean tree before
// replacing it.
func (r *Repo) WorktreeClean() (bool, []string, error) {
	s, err := r.LoadStaging()
	if err != nil {
		return false, nil, err
	}
	var dirty []string
	for _, path := range s.Paths() {
		f := s.Files[path]
		content, err := os.ReadFile(r.workPath(path))
		if err != nil {
			if os.IsNotExist(err) {
				dirty = append(dirty, path)
				continue
			}
			return false, nil, errs.Wrap(errs.KindUnknown, err, "reading %s", path)
		}
		if object.ComputeHash(object.TypeBlob, content) != f.Blob {
			dirty = append(dirty, path)
		}
	}
	return len(dirty) == 0, dirty, nil
}

// CheckoutBranch switches HEAD to a branch and replaces the working
// tree with its tip. A dirty working tree aborts before anything is
// touched.
func (r *Repo) CheckoutBranch(name string) error {
	ref := name
	if !strings.HasPrefix(ref, "refs/") {
		ref = "refs/heads/" + name
	}
	tip, err := r.ReadRef(ref)
	if err != nil {
		return err
	}
	clean, dirty, err := r.WorktreeClean()
	if err != nil {
		return err
	}
	if !clean {
		return errs.New(errs.KindConflict, "uncommitted changes in %s", strings.Join(dirty, ", "))
	}

	release, err := r.LockExclusive()
	if err != nil {
		return err
	}
	defer release()

	var oldTree object.Hash
	if _, headTip, err := r.Head(); err == nil && !headTip.IsZero() {
		if oldTree, err = r.CommitTree(headTip); err != nil {
			return err
		}
	}
	newTree, err := r.CommitTree(tip)
	if err != nil {
		return err
	}
	if err := r.CheckoutTree(oldTree, newTree); err != nil {
		return err
	}
	return r.SetHead(ref)
}

// ReadBlobAt returns a file's content within a commit, or NotFound if
// the path is absent there.
func (r *Repo) ReadBlobAt(commit object.Hash, path string) ([]byte, error) {
	tree, err := r.CommitTree(commit)
	if err != nil {
		return nil, err
	}
	flat, err := r.FlattenTree(tree)
	if err != nil {
		return nil, err
	}
	e, ok := flat[path]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "%s not present in %s", path, commit.Short())
	}
	return r.Store.ReadTyped(e.Hash, object.TypeBlob)
}
