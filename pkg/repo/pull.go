package repo

import (
	"context"

	"github.com/gritvcs/grit/pkg/errs"
)

// PullResult couples what the fetch brought with what the merge did.
type PullResult struct {
	Fetch *FetchResult
	Merge *MergeResult
}

// Pull fetches from the remote, then merges the tracking ref for the
// current branch into it.
func (r *Repo) Pull(ctx context.Context, opts FetchOptions) (*PullResult, error) {
	headRef, _, err := r.Head()
	if err != nil {
		return nil, err
	}
	if headRef == "" {
		return nil, errs.New(errs.KindUnsupported, "pulling onto a detached HEAD")
	}
	fres, err := r.Fetch(ctx, opts)
	if err != nil {
		return nil, err
	}
	remoteName := opts.Remote
	if remoteName == "" {
		remoteName = "origin"
	}
	tracking := "refs/remotes/" + remoteName + "/" + refShortName(headRef)
	if _, err := r.ReadRef(tracking); err != nil {
		return nil, errs.New(errs.KindNotFound,
			"remote %s has no branch %s to merge", remoteName, refShortName(headRef))
	}
	mres, err := r.Merge(tracking)
	if err != nil {
		return nil, err
	}
	return &PullResult{Fetch: fres, Merge: mres}, nil
}
