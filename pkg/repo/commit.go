package repo

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gritvcs/grit/pkg/errs"
	"github.com/gritvcs/grit/pkg/object"
)

// Identity environment overrides.
const (
	EnvAuthorName  = "GRIT_AUTHOR_NAME"
	EnvAuthorEmail = "GRIT_AUTHOR_EMAIL"
)

// CommitSigner produces a detached signature over the canonical commit
// bytes as they stand without the gpgsig header.
type CommitSigner interface {
	SignCommit(payload []byte) (string, error)
}

// authorIdentity resolves the committing identity from the environment.
func authorIdentity(now time.Time) (object.Signature, error) {
	name := os.Getenv(EnvAuthorName)
	email := os.Getenv(EnvAuthorEmail)
	if name == "" || email == "" {
		return object.Signature{}, errs.New(errs.KindIntegrity,
			"identity not configured; set %s and %s", EnvAuthorName, EnvAuthorEmail)
	}
	return object.Signature{Name: name, Email: email, When: now}, nil
}

// Commit records the staging area as a new commit on the current
// branch. A pending merge (MERGE_HEAD present) produces a two-parent
// commit and clears the merge state. With signer set, the commit
// carries a signature over its unsigned encoding.
func (r *Repo) Commit(message string, signer CommitSigner) (object.Hash, error) {
	if strings.TrimSpace(message) == "" {
		if msg, err := os.ReadFile(r.path("MERGE_MSG")); err == nil {
			message = string(msg)
		}
	}
	if strings.TrimSpace(message) == "" {
		return "", errs.New(errs.KindIntegrity, "empty commit message")
	}

	release, err := r.LockExclusive()
	if err != nil {
		return "", err
	}
	defer release()

	s, err := r.LoadStaging()
	if err != nil {
		return "", err
	}
	if len(s.Files) == 0 {
		return "", errs.New(errs.KindIntegrity, "nothing staged")
	}
	tree, err := r.BuildTree(s)
	if err != nil {
		return "", err
	}

	headRef, headTip, err := r.Head()
	if err != nil {
		return "", err
	}
	if headRef == "" {
		return "", errs.New(errs.KindUnsupported, "committing on a detached HEAD")
	}

	var parents []object.Hash
	if !headTip.IsZero() {
		if old, err := r.CommitTree(headTip); err == nil && old == tree && !r.mergePending() {
			return "", errs.New(errs.KindIntegrity, "nothing to commit; tree unchanged")
		}
		parents = append(parents, headTip)
	}
	if mergeHead, err := r.mergeHead(); err == nil {
		parents = append(parents, mergeHead)
	}

	ident, err := authorIdentity(time.Now())
	if err != nil {
		return "", err
	}
	c := &object.Commit{
		Tree:      tree,
		Parents:   parents,
		Author:    ident,
		Committer: ident,
		Message:   ensureTrailingNewline(message),
	}
	if signer != nil {
		payload, err := object.EncodeCommit(c)
		if err != nil {
			return "", err
		}
		sig, err := signer.SignCommit(payload)
		if err != nil {
			return "", errs.Wrap(errs.KindUnknown, err, "signing commit")
		}
		c.GPGSig = sig
	}
	id, err := r.Store.WriteCommit(c)
	if err != nil {
		return "", err
	}
	if err := r.UpdateRefCAS(headRef, headTip, id, "commit: "+firstLine(c.Message)); err != nil {
		return "", err
	}
	r.clearMergeState()
	r.log.Info("created commit",
		zap.String("id", id.Short()),
		zap.String("ref", headRef),
		zap.Int("parents", len(parents)))
	return id, nil
}

func (r *Repo) mergeHead() (object.Hash, error) {
	data, err := os.ReadFile(r.path("MERGE_HEAD"))
	if err != nil {
		return "", errs.New(errs.KindNotFound, "no merge in progress")
	}
	return object.ParseHash(strings.TrimSpace(string(data)))
}

func (r *Repo) mergePending() bool {
	_, err := r.mergeHead()
	return err == nil
}

func (r *Repo) clearMergeState() {
	os.Remove(r.path("MERGE_HEAD"))
	os.Remove(r.path("MERGE_MSG"))
}

// LogEntry pairs a commit id with its decoded body.
type LogEntry struct {
	ID     object.Hash
	Commit *object.Commit
}

// Log walks first-parent history from the given commit, newest first,
// up to limit entries (0 means unbounded).
func (r *Repo) Log(from object.Hash, limit int) ([]LogEntry, error) {
	var out []LogEntry
	cur := from
	for !cur.IsZero() && cur != "" {
		c, err := r.Store.ReadCommit(cur)
		if err != nil {
			return nil, err
		}
		out = append(out, LogEntry{ID: cur, Commit: c})
		if limit > 0 && len(out) >= limit {
			break
		}
		if len(c.Parents) == 0 {
			break
		}
		cur = c.Parents[0]
	}
	return out, nil
}

func ensureTrailingNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
