package repo

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/gritvcs/grit/pkg/errs"
	"github.com/gritvcs/grit/pkg/object"
)

// StagedFile is one staging area entry. A conflicted entry carries the
// three contributing blob ids and blocks commits until restaged.
type StagedFile struct {
	Path string      `json:"path"`
	Mode uint32      `json:"mode"`
	Blob object.Hash `json:"blob"`

	Conflict bool        `json:"conflict,omitempty"`
	Base     object.Hash `json:"base,omitempty"`
	Ours     object.Hash `json:"ours,omitempty"`
	Theirs   object.Hash `json:"theirs,omitempty"`
}

// Staging is the staging area, serialized as JSON at .grit/index.
type Staging struct {
	Files map[string]*StagedFile `json:"files"`
}

// NewStaging returns an empty staging area.
func NewStaging() *Staging {
	return &Staging{Files: map[string]*StagedFile{}}
}

// Paths returns staged paths in sorted order.
func (s *Staging) Paths() []string {
	paths := make([]string, 0, len(s.Files))
	for p := range s.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Conflicted returns the paths still carrying conflict stages.
func (s *Staging) Conflicted() []string {
	var out []string
	for _, p := range s.Paths() {
		if s.Files[p].Conflict {
			out = append(out, p)
		}
	}
	return out
}

// LoadStaging reads the staging area; a missing index is empty.
func (r *Repo) LoadStaging() (*Staging, error) {
	data, err := os.ReadFile(r.path("index"))
	if err != nil {
		if os.IsNotExist(err) {
			return NewStaging(), nil
		}
		return nil, errs.Wrap(errs.KindUnknown, err, "reading staging index")
	}
	s := NewStaging()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, errs.Wrap(errs.KindCorrupt, err, "staging index")
	}
	if s.Files == nil {
		s.Files = map[string]*StagedFile{}
	}
	return s, nil
}

// SaveStaging rewrites the staging index atomically.
func (r *Repo) SaveStaging(s *Staging) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindUnknown, err, "encoding staging index")
	}
	return writeFileAtomic(r.path("index"), data)
}

// Add stages the current content of each path. Staging a path clears
// any conflict markers recorded for it; a missing file unstages it.
func (r *Repo) Add(paths ...string) error {
	s, err := r.LoadStaging()
	if err != nil {
		return err
	}
	for _, p := range paths {
		rel, err := r.relPath(p)
		if err != nil {
			return err
		}
		fi, err := os.Lstat(r.workPath(rel))
		if err != nil {
			if os.IsNotExist(err) {
				delete(s.Files, rel)
				continue
			}
			return errs.Wrap(errs.KindUnknown, err, "inspecting %s", rel)
		}
		if fi.IsDir() {
			return errs.New(errs.KindUnsupported, "%s is a directory; stage files individually", rel)
		}
		content, err := os.ReadFile(r.workPath(rel))
		if err != nil {
			return errs.Wrap(errs.KindUnknown, err, "reading %s", rel)
		}
		blob, err := r.Store.WriteBlob(content)
		if err != nil {
			return err
		}
		s.Files[rel] = &StagedFile{Path: rel, Mode: fileModeOf(fi), Blob: blob}
	}
	return r.SaveStaging(s)
}

// Remove deletes each path from the working tree and unstages it.
// Removing a path that was never staged is an error; a path already
// gone from disk is only unstaged.
func (r *Repo) Remove(paths ...string) error {
	s, err := r.LoadStaging()
	if err != nil {
		return err
	}
	for _, p := range paths {
		rel, err := r.relPath(p)
		if err != nil {
			return err
		}
		if _, ok := s.Files[rel]; !ok {
			return errs.New(errs.KindNotFound, "%s is not staged", rel)
		}
		if err := os.Remove(r.workPath(rel)); err != nil && !os.IsNotExist(err) {
			return errs.Wrap(errs.KindUnknown, err, "removing %s", rel)
		}
		r.removeEmptyParents(rel)
		delete(s.Files, rel)
	}
	return r.SaveStaging(s)
}

// StageTree replaces the staging area with a commit tree's flattened
// contents. Checkout and merge use it to realign the index.
func (r *Repo) StageTree(tree object.Hash) error {
	flat, err := r.FlattenTree(tree)
	if err != nil {
		return err
	}
	s := NewStaging()
	for path, e := range flat {
		s.Files[path] = &StagedFile{Path: path, Mode: e.Mode, Blob: e.Hash}
	}
	return r.SaveStaging(s)
}
