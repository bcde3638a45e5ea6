package repo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/gritvcs/grit/pkg/errs"
	"github.com/gritvcs/grit/pkg/object"
)

// MergeResult describes what a merge did.
type MergeResult struct {
	// UpToDate: theirs was already contained in ours; nothing changed.
	UpToDate bool
	// FastForward: ours was an ancestor of theirs, so the branch ref
	// advanced without creating any object.
	FastForward bool
	// Commit is the merge commit id, or the new tip on fast-forward.
	Commit object.Hash
	// Conflicts lists paths needing manual resolution. When non-empty
	// no commit was created; MERGE_HEAD carries the deferred parent.
	Conflicts []string
}

// Merge integrates the named revision into the current branch.
func (r *Repo) Merge(rev string) (*MergeResult, error) {
	if r.mergePending() {
		return nil, errs.New(errs.KindConflict, "a merge is already in progress; commit or resolve it first")
	}
	headRef, ours, err := r.Head()
	if err != nil {
		return nil, err
	}
	if headRef == "" {
		return nil, errs.New(errs.KindUnsupported, "merging on a detached HEAD")
	}
	if ours.IsZero() {
		return nil, errs.New(errs.KindIntegrity, "current branch has no commits")
	}
	theirs, err := r.ResolveRevision(rev)
	if err != nil {
		return nil, err
	}
	clean, dirty, err := r.WorktreeClean()
	if err != nil {
		return nil, err
	}
	if !clean {
		return nil, errs.New(errs.KindConflict, "uncommitted changes in %v", dirty)
	}

	release, err := r.LockExclusive()
	if err != nil {
		return nil, err
	}
	defer release()

	base, err := r.FindMergeBase(ours, theirs)
	if err != nil {
		return nil, err
	}
	if base == theirs {
		return &MergeResult{UpToDate: true, Commit: ours}, nil
	}
	if base == ours {
		return r.fastForward(headRef, ours, theirs)
	}
	return r.threeWayMerge(headRef, rev, base, ours, theirs)
}

// fastForward advances the branch ref and checks out the new tip. No
// object is created; the history already contains everything.
func (r *Repo) fastForward(headRef string, ours, theirs object.Hash) (*MergeResult, error) {
	oldTree, err := r.CommitTree(ours)
	if err != nil {
		return nil, err
	}
	newTree, err := r.CommitTree(theirs)
	if err != nil {
		return nil, err
	}
	if err := r.UpdateRefCAS(headRef, ours, theirs, "merge: fast-forward"); err != nil {
		return nil, err
	}
	if err := r.CheckoutTree(oldTree, newTree); err != nil {
		return nil, err
	}
	r.log.Info("fast-forwarded",
		zap.String("ref", headRef),
		zap.String("to", theirs.Short()))
	return &MergeResult{FastForward: true, Commit: theirs}, nil
}

// mergedFile is the outcome for one path.
type mergedFile struct {
	mode     uint32
	blob     object.Hash
	deleted  bool
	conflict *conflictDetail
}

type conflictDetail struct {
	base, ours, theirs object.Hash
	rendered           []byte
}

func (r *Repo) threeWayMerge(headRef, rev string, base, ours, theirs object.Hash) (*MergeResult, error) {
	baseTree, err := r.CommitTree(base)
	if err != nil {
		return nil, err
	}
	oursTree, err := r.CommitTree(ours)
	if err != nil {
		return nil, err
	}
	theirsTree, err := r.CommitTree(theirs)
	if err != nil {
		return nil, err
	}
	baseFlat, err := r.FlattenTree(baseTree)
	if err != nil {
		return nil, err
	}
	oursFlat, err := r.FlattenTree(oursTree)
	if err != nil {
		return nil, err
	}
	theirsFlat, err := r.FlattenTree(theirsTree)
	if err != nil {
		return nil, err
	}

	paths := map[string]bool{}
	for p := range baseFlat {
		paths[p] = true
	}
	for p := range oursFlat {
		paths[p] = true
	}
	for p := range theirsFlat {
		paths[p] = true
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	merged := map[string]mergedFile{}
	var conflicts []string
	for _, p := range sorted {
		out, err := r.mergePath(p, baseFlat[p], oursFlat[p], theirsFlat[p])
		if err != nil {
			return nil, err
		}
		if out.conflict != nil {
			conflicts = append(conflicts, p)
		}
		if !out.deleted {
			merged[p] = out
		}
	}

	if err := r.applyMerged(oursFlat, merged); err != nil {
		return nil, err
	}

	if len(conflicts) > 0 {
		if err := writeFileAtomic(r.path("MERGE_HEAD"), []byte(string(theirs)+"\n")); err != nil {
			return nil, err
		}
		msg := fmt.Sprintf("Merge %s into %s\n", rev, headRef)
		if err := writeFileAtomic(r.path("MERGE_MSG"), []byte(msg)); err != nil {
			return nil, err
		}
		r.log.Info("merge stopped on conflicts", zap.Int("paths", len(conflicts)))
		return &MergeResult{Conflicts: conflicts}, nil
	}

	// Clean merge: commit immediately with both parents.
	s, err := r.LoadStaging()
	if err != nil {
		return nil, err
	}
	tree, err := r.BuildTree(s)
	if err != nil {
		return nil, err
	}
	ident, err := authorIdentity(time.Now())
	if err != nil {
		return nil, err
	}
	id, err := r.Store.WriteCommit(&object.Commit{
		Tree:      tree,
		Parents:   []object.Hash{ours, theirs},
		Author:    ident,
		Committer: ident,
		Message:   fmt.Sprintf("Merge %s into %s\n", rev, headRef),
	})
	if err != nil {
		return nil, err
	}
	if err := r.UpdateRefCAS(headRef, ours, id, "merge: "+rev); err != nil {
		return nil, err
	}
	r.log.Info("created merge commit", zap.String("id", id.Short()))
	return &MergeResult{Commit: id}, nil
}

// mergePath applies the three-way case table to one path. Zero-value
// FlatEntry means absent on that side.
func (r *Repo) mergePath(path string, base, ours, theirs FlatEntry) (mergedFile, error) {
	var none FlatEntry
	switch {
	case ours == theirs:
		// Includes both-deleted and both-changed-identically.
		if ours == none {
			return mergedFile{deleted: true}, nil
		}
		return mergedFile{mode: ours.Mode, blob: ours.Hash}, nil
	case base == ours:
		// Only theirs moved.
		if theirs == none {
			return mergedFile{deleted: true}, nil
		}
		return mergedFile{mode: theirs.Mode, blob: theirs.Hash}, nil
	case base == theirs:
		// Only ours moved.
		if ours == none {
			return mergedFile{deleted: true}, nil
		}
		return mergedFile{mode: ours.Mode, blob: ours.Hash}, nil
	}
	// Both sides moved apart: render the conflict.
	rendered, err := r.renderConflict(ours, theirs)
	if err != nil {
		return mergedFile{}, err
	}
	blob, err := r.Store.WriteBlob(rendered)
	if err != nil {
		return mergedFile{}, err
	}
	mode := ours.Mode
	if mode == 0 {
		mode = theirs.Mode
	}
	return mergedFile{
		mode: mode,
		blob: blob,
		conflict: &conflictDetail{
			base: base.Hash, ours: ours.Hash, theirs: theirs.Hash,
			rendered: rendered,
		},
	}, nil
}

// renderConflict produces the marker form. A side absent (delete vs
// modify) contributes an empty span between its markers.
func (r *Repo) renderConflict(ours, theirs FlatEntry) ([]byte, error) {
	read := func(e FlatEntry) ([]byte, error) {
		if e.Hash == "" {
			return nil, nil
		}
		return r.Store.ReadTyped(e.Hash, object.TypeBlob)
	}
	oursData, err := read(ours)
	if err != nil {
		return nil, err
	}
	theirsData, err := read(theirs)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("<<<<<<< ours\n")
	buf.Write(ensureNL(oursData))
	buf.WriteString("=======\n")
	buf.Write(ensureNL(theirsData))
	buf.WriteString(">>>>>>> theirs\n")
	return buf.Bytes(), nil
}

func ensureNL(b []byte) []byte {
	if len(b) == 0 || b[len(b)-1] == '\n' {
		return b
	}
	return append(append([]byte{}, b...), '\n')
}

// applyMerged writes the merge outcome to the working tree and staging
// area, removing paths the merge deleted.
func (r *Repo) applyMerged(oursFlat map[string]FlatEntry, merged map[string]mergedFile) error {
	for path := range oursFlat {
		if _, kept := merged[path]; kept {
			continue
		}
		if err := os.Remove(r.workPath(path)); err != nil && !os.IsNotExist(err) {
			return errs.Wrap(errs.KindUnknown, err, "removing %s", path)
		}
		r.removeEmptyParents(path)
	}
	s := NewStaging()
	for path, m := range merged {
		content, err := r.Store.ReadTyped(m.blob, object.TypeBlob)
		if err != nil {
			return err
		}
		dst := r.workPath(path)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return errs.Wrap(errs.KindUnknown, err, "creating dir for %s", path)
		}
		if err := os.WriteFile(dst, content, permFor(m.mode)); err != nil {
			return errs.Wrap(errs.KindUnknown, err, "writing %s", path)
		}
		entry := &StagedFile{Path: path, Mode: m.mode, Blob: m.blob}
		if m.conflict != nil {
			entry.Conflict = true
			entry.Base = m.conflict.base
			entry.Ours = m.conflict.ours
			entry.Theirs = m.conflict.theirs
		}
		s.Files[path] = entry
	}
	return r.SaveStaging(s)
}
