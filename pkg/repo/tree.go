package repo

import (
	"sort"
	"strings"

	"github.com/gritvcs/grit/pkg/errs"
	"github.com/gritvcs/grit/pkg/object"
)

// FlatEntry is a file within a flattened tree, keyed by its full
// slash-separated path.
type FlatEntry struct {
	Mode uint32
	Hash object.Hash
}

// BuildTree writes tree objects for the staging area, one per
// directory, and returns the root tree id. Conflicted entries refuse
// to serialize.
func (r *Repo) BuildTree(s *Staging) (object.Hash, error) {
	if conflicted := s.Conflicted(); len(conflicted) > 0 {
		return "", errs.New(errs.KindConflict, "unresolved conflicts in %s", strings.Join(conflicted, ", "))
	}

	// Every directory prefix, "" for the root, otherwise "dir/".
	dirs := map[string]bool{"": true}
	for _, path := range s.Paths() {
		for i, c := range path {
			if c == '/' {
				dirs[path[:i+1]] = true
			}
		}
	}
	prefixes := make([]string, 0, len(dirs))
	for d := range dirs {
		prefixes = append(prefixes, d)
	}
	sort.Strings(prefixes)

	// A directory sorts strictly before any directory nested in it,
	// so walking the prefixes in reverse writes every subtree before
	// the tree that references it, the root last.
	built := map[string]object.Hash{}
	for i := len(prefixes) - 1; i >= 0; i-- {
		prefix := prefixes[i]
		var entries []object.TreeEntry
		for _, path := range s.Paths() {
			rest, ok := strings.CutPrefix(path, prefix)
			if !ok || strings.Contains(rest, "/") {
				continue
			}
			f := s.Files[path]
			entries = append(entries, object.TreeEntry{Mode: f.Mode, Name: rest, Hash: f.Blob})
		}
		for _, d := range prefixes {
			rest, ok := strings.CutPrefix(d, prefix)
			if !ok || rest == "" {
				continue
			}
			name := strings.TrimSuffix(rest, "/")
			if strings.Contains(name, "/") {
				continue
			}
			entries = append(entries, object.TreeEntry{Mode: object.ModeDir, Name: name, Hash: built[d], IsDir: true})
		}
		id, err := r.Store.WriteTree(entries)
		if err != nil {
			return "", err
		}
		built[prefix] = id
	}
	return built[""], nil
}

// treeSource is the slice of the store the flatten walk needs.
type treeSource interface {
	ReadTree(object.Hash) ([]object.TreeEntry, error)
}

// FlattenTree expands a tree into path-keyed file entries.
func (r *Repo) FlattenTree(tree object.Hash) (map[string]FlatEntry, error) {
	return flattenTree(r.Store, tree)
}

// flattenTree walks the tree with an explicit work list. onPath holds
// the trees between the root and the current frame; a tree reaching
// one of its own ancestors is an integrity failure, without it the
// walk would never terminate.
func flattenTree(src treeSource, root object.Hash) (map[string]FlatEntry, error) {
	type frame struct {
		hash   object.Hash
		prefix string
		exit   bool
	}
	out := map[string]FlatEntry{}
	onPath := map[object.Hash]bool{}
	stack := []frame{{hash: root}}
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if fr.exit {
			delete(onPath, fr.hash)
			continue
		}
		if onPath[fr.hash] {
			return nil, errs.New(errs.KindIntegrity, "tree cycle through %s", fr.hash)
		}
		entries, err := src.ReadTree(fr.hash)
		if err != nil {
			return nil, err
		}
		onPath[fr.hash] = true
		stack = append(stack, frame{hash: fr.hash, exit: true})
		for _, e := range entries {
			path := fr.prefix + e.Name
			if e.IsDir {
				stack = append(stack, frame{hash: e.Hash, prefix: path + "/"})
				continue
			}
			out[path] = FlatEntry{Mode: e.Mode, Hash: e.Hash}
		}
	}
	return out, nil
}

// CommitTree returns the root tree of a commit.
func (r *Repo) CommitTree(commit object.Hash) (object.Hash, error) {
	c, err := r.Store.ReadCommit(commit)
	if err != nil {
		return "", err
	}
	return c.Tree, nil
}
