package object

import (
	"github.com/gritvcs/grit/pkg/errs"
)

// StoredObject is a loaded object ready to enter a pack stream.
type StoredObject struct {
	Hash Hash
	Type Type
	Data []byte
}

// treeReader is the slice of Store the tree walk needs.
type treeReader interface {
	ReadTree(Hash) ([]TreeEntry, error)
}

// treeFrame is one work-list entry: enter a tree, or leave it again
// once its subtrees are done.
type treeFrame struct {
	hash Hash
	exit bool
}

// walkTree visits every tree and blob under root with an explicit
// work list. onPath holds the trees between root and the current
// frame, so a tree that reaches one of its own ancestors is reported
// as an integrity failure instead of looping forever.
func walkTree(tr treeReader, root Hash, seen map[Hash]Type) error {
	onPath := map[Hash]bool{}
	stack := []treeFrame{{hash: root}}
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if fr.exit {
			delete(onPath, fr.hash)
			continue
		}
		if onPath[fr.hash] {
			return errs.New(errs.KindIntegrity, "tree cycle through %s", fr.hash)
		}
		if _, ok := seen[fr.hash]; ok {
			continue
		}
		entries, err := tr.ReadTree(fr.hash)
		if err != nil {
			return err
		}
		seen[fr.hash] = TypeTree
		onPath[fr.hash] = true
		stack = append(stack, treeFrame{hash: fr.hash, exit: true})
		for _, e := range entries {
			if e.IsDir {
				stack = append(stack, treeFrame{hash: e.Hash})
				continue
			}
			if _, ok := seen[e.Hash]; ok {
				continue
			}
			// Leaf rows are not read here; presence checks happen
			// when the caller loads the set.
			seen[e.Hash] = TypeBlob
		}
	}
	return nil
}

// ReachableSet returns every object reachable from roots with its type.
// Roots may be commits, tags, trees, or blobs. A missing root is an
// error; the walk does not tolerate holes.
func ReachableSet(s *Store, roots []Hash) (map[Hash]Type, error) {
	seen := make(map[Hash]Type)
	stack := make([]Hash, len(roots))
	copy(stack, roots)
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[h]; ok {
			continue
		}
		t, content, err := s.Read(h)
		if err != nil {
			return nil, err
		}
		seen[h] = t
		switch t {
		case TypeCommit:
			c, err := DecodeCommit(content)
			if err != nil {
				return nil, err
			}
			if err := walkTree(s, c.Tree, seen); err != nil {
				return nil, err
			}
			stack = append(stack, c.Parents...)
		case TypeTree:
			if err := walkTree(s, h, seen); err != nil {
				return nil, err
			}
		case TypeTag:
			tag, err := DecodeTag(content)
			if err != nil {
				return nil, err
			}
			stack = append(stack, tag.Target)
		}
	}
	return seen, nil
}

// MissingFor collects the objects reachable from roots that are not
// reachable from any of exclude. Exclude roots absent from the store
// are skipped: a remote tip we never fetched excludes nothing.
func MissingFor(s *Store, roots, exclude []Hash) ([]StoredObject, error) {
	var present []Hash
	for _, h := range exclude {
		if s.Has(h) {
			present = append(present, h)
		}
	}
	excluded := map[Hash]Type{}
	if len(present) > 0 {
		var err error
		excluded, err = ReachableSet(s, present)
		if err != nil {
			return nil, err
		}
	}
	wanted, err := ReachableSet(s, roots)
	if err != nil {
		return nil, err
	}

	var out []StoredObject
	// Commits first so a receiver can index the graph before trees
	// and blobs arrive.
	for _, pass := range []func(Type) bool{
		func(t Type) bool { return t == TypeCommit || t == TypeTag },
		func(t Type) bool { return t == TypeTree },
		func(t Type) bool { return t == TypeBlob },
	} {
		for h, t := range wanted {
			if !pass(t) {
				continue
			}
			if _, ok := excluded[h]; ok {
				continue
			}
			gotType, data, err := s.Read(h)
			if err != nil {
				return nil, err
			}
			out = append(out, StoredObject{Hash: h, Type: gotType, Data: data})
		}
	}
	return out, nil
}
