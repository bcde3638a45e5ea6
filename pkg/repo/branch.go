package repo

import (
	"strings"

	"github.com/gritvcs/grit/pkg/errs"
	"github.com/gritvcs/grit/pkg/object"
)

// ValidBranchName rejects names that would collide with the ref
// namespace layout or the lock suffix.
func ValidBranchName(name string) bool {
	if name == "" || name == "HEAD" {
		return false
	}
	if strings.HasPrefix(name, "-") || strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return false
	}
	if strings.HasSuffix(name, ".lock") || strings.Contains(name, "..") {
		return false
	}
	return !strings.ContainsAny(name, " ~^:?*[\\\x00")
}

// CreateBranch points a new branch at the given commit.
func (r *Repo) CreateBranch(name string, at object.Hash) error {
	if !ValidBranchName(name) {
		return errs.New(errs.KindIntegrity, "invalid branch name %q", name)
	}
	if _, err := r.Store.ReadCommit(at); err != nil {
		return err
	}
	release, err := r.LockExclusive()
	if err != nil {
		return err
	}
	defer release()
	return r.UpdateRefCAS("refs/heads/"+name, object.ZeroHash, at, "branch: created from "+at.Short())
}

// DeleteBranch removes a branch. The current branch cannot be deleted
// out from under HEAD.
func (r *Repo) DeleteBranch(name string) error {
	ref := "refs/heads/" + name
	headRef, _, err := r.Head()
	if err != nil {
		return err
	}
	if headRef == ref {
		return errs.New(errs.KindConflict, "cannot delete the current branch %q", name)
	}
	release, err := r.LockExclusive()
	if err != nil {
		return err
	}
	defer release()
	tip, err := r.ReadRef(ref)
	if err != nil {
		return err
	}
	return r.UpdateRefCAS(ref, tip, object.ZeroHash, "branch: deleted")
}

// Branches lists local branch names with their tips.
func (r *Repo) Branches() (map[string]object.Hash, error) {
	refs, err := r.ListRefs("refs/heads")
	if err != nil {
		return nil, err
	}
	out := make(map[string]object.Hash, len(refs))
	for name, h := range refs {
		out[strings.TrimPrefix(name, "refs/heads/")] = h
	}
	return out, nil
}
