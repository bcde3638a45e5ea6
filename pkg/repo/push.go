package repo

import (
	"bytes"
	"context"

	"go.uber.org/zap"

	"github.com/gritvcs/grit/pkg/errs"
	"github.com/gritvcs/grit/pkg/object"
	"github.com/gritvcs/grit/pkg/remote"
)

// PushOptions tunes a push.
type PushOptions struct {
	// Remote names the configured remote, "origin" by default.
	Remote string
	// Branch is the local branch to push; empty means the current one.
	Branch string
	// Force skips the fast-forward safety check.
	Force    bool
	Client   *remote.Client
	Settings *Settings
}

// PushResult summarizes a push.
type PushResult struct {
	UpToDate bool
	Ref      string
	Old      object.Hash
	New      object.Hash
	Report   *remote.PushReport
}

// Push uploads the branch's missing history and asks the remote to
// advance the matching ref.
func (r *Repo) Push(ctx context.Context, opts PushOptions) (*PushResult, error) {
	if opts.Remote == "" {
		opts.Remote = "origin"
	}
	branch := opts.Branch
	if branch == "" {
		headRef, _, err := r.Head()
		if err != nil {
			return nil, err
		}
		if headRef == "" {
			return nil, errs.New(errs.KindUnsupported, "pushing from a detached HEAD")
		}
		branch = refShortName(headRef)
	}
	ref := "refs/heads/" + branch
	tip, err := r.ReadRef(ref)
	if err != nil {
		return nil, err
	}

	cfg, err := r.LoadConfig()
	if err != nil {
		return nil, err
	}
	rc, err := cfg.Remote(opts.Remote)
	if err != nil {
		return nil, err
	}
	client := opts.Client
	if client == nil {
		client, err = r.newRemoteClient(rc.URL, opts.Settings)
		if err != nil {
			return nil, err
		}
	}

	adv, err := client.Discover(ctx, remote.ServiceReceivePack)
	if err != nil {
		return nil, err
	}
	old, advertised := adv.Refs[ref]
	if !advertised {
		old = object.ZeroHash
	}
	if old == tip {
		return &PushResult{UpToDate: true, Ref: ref, Old: old, New: tip}, nil
	}

	// Fast-forward safety: the remote tip must be contained in what we
	// are pushing, or the push would discard remote history.
	if !old.IsZero() && !opts.Force {
		if !r.Store.Has(old) {
			return nil, errs.New(errs.KindConflict,
				"remote %s is at %s which is not known locally; fetch first", ref, old.Short())
		}
		ok, err := r.IsAncestor(old, tip)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.New(errs.KindConflict,
				"push to %s is not a fast-forward; fetch and merge first", ref)
		}
	}

	// Exclude everything below any tip the remote advertised; the
	// remote already has those objects.
	var stopRoots []object.Hash
	for _, h := range adv.Refs {
		stopRoots = append(stopRoots, h)
	}
	objs, err := object.MissingFor(r.Store, []object.Hash{tip}, stopRoots)
	if err != nil {
		return nil, err
	}
	var pack bytes.Buffer
	if err := object.EncodePack(&pack, objs); err != nil {
		return nil, err
	}

	caps := []string{remote.CapReportStatus}
	body, err := remote.ReceivePackRequest(
		[]remote.RefCommand{{Name: ref, Old: old, New: tip}},
		caps, pack.Bytes())
	if err != nil {
		return nil, err
	}
	resp, err := client.ReceivePack(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Close()
	report, err := remote.ParseReportStatus(resp)
	if err != nil {
		return nil, err
	}
	if !report.UnpackOK {
		return nil, errs.New(errs.KindProtocol, "remote failed to unpack: %s", report.UnpackReason)
	}
	for _, rej := range report.Rejected() {
		if rej.Name == ref {
			return nil, errs.New(errs.KindConflict, "remote rejected %s: %s", rej.Name, rej.Reason)
		}
	}

	// Mirror the accepted update into the tracking ref.
	release, err := r.LockExclusive()
	if err != nil {
		return nil, err
	}
	if err := r.SetRef("refs/remotes/"+opts.Remote+"/"+branch, tip, "push"); err != nil {
		release()
		return nil, err
	}
	release()
	r.log.Info("pushed",
		zap.String("ref", ref),
		zap.String("remote", opts.Remote),
		zap.Int("objects", len(objs)))
	return &PushResult{Ref: ref, Old: old, New: tip, Report: report}, nil
}

func refShortName(ref string) string {
	const prefix = "refs/heads/"
	if len(ref) > len(prefix) && ref[:len(prefix)] == prefix {
		return ref[len(prefix):]
	}
	return ref
}
