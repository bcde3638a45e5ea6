package repo

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/gritvcs/grit/pkg/errs"
	"github.com/gritvcs/grit/pkg/object"
	"github.com/gritvcs/grit/pkg/remote"
)

// EnvFetchSimulate names a local directory to fetch from instead of
// the remote's URL. Objects and refs are read straight out of that
// repository, bypassing the transport.
const EnvFetchSimulate = "GRIT_FETCH_SIMULATE"

// RefUpdate records one tracking ref movement.
type RefUpdate struct {
	Name string
	Old  object.Hash
	New  object.Hash
}

// FetchOptions tunes a fetch.
type FetchOptions struct {
	// Remote names the configured remote, "origin" by default.
	Remote string
	// Client overrides the HTTP client, used by tests. When nil one is
	// built from the remote URL and settings.
	Client   *remote.Client
	Settings *Settings
	// Progress receives server-side progress text.
	Progress io.Writer
}

// FetchResult summarizes a fetch.
type FetchResult struct {
	UpToDate   bool
	NewObjects int
	Updated    []RefUpdate
}

// Fetch downloads missing history from a remote and advances the
// remote-tracking refs.
func (r *Repo) Fetch(ctx context.Context, opts FetchOptions) (*FetchResult, error) {
	if opts.Remote == "" {
		opts.Remote = "origin"
	}
	cfg, err := r.LoadConfig()
	if err != nil {
		return nil, err
	}
	rc, err := cfg.Remote(opts.Remote)
	if err != nil {
		return nil, err
	}
	specs, err := ParseRefspecs(rc.Fetch)
	if err != nil {
		return nil, err
	}

	if dir := os.Getenv(EnvFetchSimulate); dir != "" {
		return r.fetchLocal(dir, rc, specs)
	}

	client := opts.Client
	if client == nil {
		client, err = r.newRemoteClient(rc.URL, opts.Settings)
		if err != nil {
			return nil, err
		}
	}

	adv, err := client.Discover(ctx, remote.ServiceUploadPack)
	if err != nil {
		return nil, err
	}
	if adv.Empty() {
		return &FetchResult{UpToDate: true}, nil
	}

	// Wants: advertised tips that match a refspec and are absent
	// locally. Haves: every local tip, so the server can prune.
	var wants []object.Hash
	wantSet := map[object.Hash]bool{}
	for _, name := range adv.Order {
		if _, ok := MapAll(specs, name); !ok {
			continue
		}
		tip := adv.Refs[name]
		if !r.Store.Has(tip) && !wantSet[tip] {
			wantSet[tip] = true
			wants = append(wants, tip)
		}
	}

	newObjects := 0
	if len(wants) > 0 {
		var haves []object.Hash
		for _, prefix := range []string{"refs/heads", "refs/remotes"} {
			refs, err := r.ListRefs(prefix)
			if err != nil {
				return nil, err
			}
			for _, name := range SortedRefNames(refs) {
				haves = append(haves, refs[name])
			}
		}

		caps := []string{}
		sideband := adv.Caps.Has(remote.CapSideBand64k)
		if sideband {
			caps = append(caps, remote.CapSideBand64k)
		}
		body, err := remote.UploadPackRequest(wants, haves, caps)
		if err != nil {
			return nil, err
		}
		resp, err := client.UploadPack(ctx, body)
		if err != nil {
			return nil, err
		}
		defer resp.Close()
		pack, err := remote.ReadUploadPackResponse(resp, sideband, opts.Progress)
		if err != nil {
			return nil, err
		}
		stored, err := object.UnpackInto(r.Store, pack)
		if err != nil {
			return nil, err
		}
		newObjects = len(stored)
		// The pack must actually contain what was asked for.
		for _, w := range wants {
			if !r.Store.Has(w) {
				return nil, errs.New(errs.KindProtocol, "remote omitted wanted object %s", w)
			}
		}
	}

	updated, err := r.syncTrackingRefs(adv.Order, adv.Refs, specs)
	if err != nil {
		return nil, err
	}
	if err := r.writeFetchHead(updated, rc.URL); err != nil {
		return nil, err
	}
	r.log.Info("fetched",
		zap.String("remote", opts.Remote),
		zap.Int("objects", newObjects),
		zap.Int("refs", len(updated)))
	return &FetchResult{
		UpToDate:   newObjects == 0 && len(updated) == 0,
		NewObjects: newObjects,
		Updated:    updated,
	}, nil
}

func (r *Repo) newRemoteClient(url string, s *Settings) (*remote.Client, error) {
	if s == nil {
		var err error
		if s, err = LoadSettings(); err != nil {
			return nil, err
		}
	}
	return remote.NewClient(url, remote.Options{
		Timeout:     s.Timeout(),
		MaxAttempts: s.RetryAttempts,
		Token:       s.Token,
		TokenPrompt: s.TokenPrompt,
		Logger:      r.log,
	})
}

// syncTrackingRefs force-updates the mapped tracking refs under the
// repository lock.
func (r *Repo) syncTrackingRefs(order []string, refs map[string]object.Hash, specs []Refspec) ([]RefUpdate, error) {
	release, err := r.LockExclusive()
	if err != nil {
		return nil, err
	}
	defer release()

	var updated []RefUpdate
	for _, name := range order {
		dst, ok := MapAll(specs, name)
		if !ok {
			continue
		}
		tip := refs[name]
		old, err := r.ReadRef(dst)
		if errs.Is(err, errs.KindNotFound) {
			old = object.ZeroHash
		} else if err != nil {
			return nil, err
		}
		if old == tip {
			continue
		}
		if err := r.SetRef(dst, tip, "fetch"); err != nil {
			return nil, err
		}
		updated = append(updated, RefUpdate{Name: dst, Old: old, New: tip})
	}
	return updated, nil
}

// writeFetchHead appends what this fetch brought, one line per
// updated ref: "<id>\t\tbranch '<name>' of <url>".
func (r *Repo) writeFetchHead(updated []RefUpdate, url string) error {
	if len(updated) == 0 {
		return nil
	}
	f, err := os.OpenFile(r.path("FETCH_HEAD"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	for _, u := range updated {
		short := u.Name[strings.LastIndexByte(u.Name, '/')+1:]
		if _, err := fmt.Fprintf(f, "%s\t\tbranch '%s' of %s\n", u.New, short, url); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

// fetchLocal copies refs and missing objects from another repository
// on disk. It exists for offline tests and mirrors exactly what a
// remote fetch would change.
func (r *Repo) fetchLocal(dir string, rc *RemoteConfig, specs []Refspec) (*FetchResult, error) {
	src, err := Open(dir, r.log)
	if err != nil {
		return nil, errs.Wrap(errs.KindNotFound, err, "simulated remote %s", dir)
	}
	srcRefs, err := src.ListRefs("refs/heads")
	if err != nil {
		return nil, err
	}
	order := SortedRefNames(srcRefs)

	newObjects := 0
	var roots []object.Hash
	for _, name := range order {
		if _, ok := MapAll(specs, name); ok {
			roots = append(roots, srcRefs[name])
		}
	}
	if len(roots) > 0 {
		objs, err := object.MissingFor(src.Store, roots, nil)
		if err != nil {
			return nil, err
		}
		for _, o := range objs {
			if r.Store.Has(o.Hash) {
				continue
			}
			if _, err := r.Store.Write(o.Type, o.Data); err != nil {
				return nil, err
			}
			newObjects++
		}
	}
	updated, err := r.syncTrackingRefs(order, srcRefs, specs)
	if err != nil {
		return nil, err
	}
	if err := r.writeFetchHead(updated, rc.URL); err != nil {
		return nil, err
	}
	return &FetchResult{
		UpToDate:   newObjects == 0 && len(updated) == 0,
		NewObjects: newObjects,
		Updated:    updated,
	}, nil
}
