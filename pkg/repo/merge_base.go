package repo

import (
	"container/heap"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gritvcs/grit/pkg/errs"
	"github.com/gritvcs/grit/pkg/object"
)

// commitGraph memoizes commit loads and generation numbers for the
// ancestry queries merge runs repeatedly over the same history.
type commitGraph struct {
	store   *object.Store
	commits *lru.Cache[object.Hash, *object.Commit]
	gens    *lru.Cache[object.Hash, int]
}

const graphCacheSize = 4096

func newCommitGraph(store *object.Store) (*commitGraph, error) {
	commits, err := lru.New[object.Hash, *object.Commit](graphCacheSize)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnknown, err, "commit cache")
	}
	gens, err := lru.New[object.Hash, int](graphCacheSize)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnknown, err, "generation cache")
	}
	return &commitGraph{store: store, commits: commits, gens: gens}, nil
}

func (g *commitGraph) commit(h object.Hash) (*object.Commit, error) {
	if c, ok := g.commits.Get(h); ok {
		return c, nil
	}
	c, err := g.store.ReadCommit(h)
	if err != nil {
		return nil, err
	}
	g.commits.Add(h, c)
	return c, nil
}

// generation computes 1 + max(parent generations), 1 for roots. The
// walk is iterative; histories outlive any comfortable stack depth.
func (g *commitGraph) generation(h object.Hash) (int, error) {
	if gen, ok := g.gens.Get(h); ok {
		return gen, nil
	}
	stack := []object.Hash{h}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		if _, ok := g.gens.Get(cur); ok {
			stack = stack[:len(stack)-1]
			continue
		}
		c, err := g.commit(cur)
		if err != nil {
			return 0, err
		}
		ready := true
		best := 0
		for _, p := range c.Parents {
			gen, ok := g.gens.Get(p)
			if !ok {
				stack = append(stack, p)
				ready = false
				continue
			}
			if gen > best {
				best = gen
			}
		}
		if ready {
			stack = stack[:len(stack)-1]
			g.gens.Add(cur, best+1)
		}
	}
	gen, _ := g.gens.Get(h)
	return gen, nil
}

// genHeap orders commits by descending generation, ties broken by
// insertion order so results are deterministic.
type genEntry struct {
	id  object.Hash
	gen int
	seq int
}

type genHeap []genEntry

func (h genHeap) Len() int { return len(h) }
func (h genHeap) Less(i, j int) bool {
	if h[i].gen != h[j].gen {
		return h[i].gen > h[j].gen
	}
	return h[i].seq < h[j].seq
}
func (h genHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *genHeap) Push(x any)        { *h = append(*h, x.(genEntry)) }
func (h *genHeap) Pop() any          { old := *h; x := old[len(old)-1]; *h = old[:len(old)-1]; return x }

// ancestorSet collects every ancestor of h, inclusive.
func (g *commitGraph) ancestorSet(h object.Hash) (map[object.Hash]bool, error) {
	seen := map[object.Hash]bool{}
	stack := []object.Hash{h}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		c, err := g.commit(cur)
		if err != nil {
			return nil, err
		}
		stack = append(stack, c.Parents...)
	}
	return seen, nil
}

// IsAncestor reports whether a is reachable from b via parent edges
// (a == b counts). Generation numbers prune the walk: an ancestor can
// never have a generation above the descendant's.
func (r *Repo) IsAncestor(a, b object.Hash) (bool, error) {
	g, err := newCommitGraph(r.Store)
	if err != nil {
		return false, err
	}
	return g.isAncestor(a, b)
}

func (g *commitGraph) isAncestor(a, b object.Hash) (bool, error) {
	if a == b {
		return true, nil
	}
	genA, err := g.generation(a)
	if err != nil {
		return false, err
	}
	seen := map[object.Hash]bool{}
	stack := []object.Hash{b}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == a {
			return true, nil
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		gen, err := g.generation(cur)
		if err != nil {
			return false, err
		}
		if gen <= genA {
			continue
		}
		c, err := g.commit(cur)
		if err != nil {
			return false, err
		}
		stack = append(stack, c.Parents...)
	}
	return false, nil
}

// FindMergeBase returns the best common ancestor of a and b: the
// common ancestor with the greatest generation, first found winning
// ties. Histories with no common root report NotFound.
func (r *Repo) FindMergeBase(a, b object.Hash) (object.Hash, error) {
	g, err := newCommitGraph(r.Store)
	if err != nil {
		return "", err
	}
	// Fast paths: one side contains the other.
	if ok, err := g.isAncestor(a, b); err != nil {
		return "", err
	} else if ok {
		return a, nil
	}
	if ok, err := g.isAncestor(b, a); err != nil {
		return "", err
	} else if ok {
		return b, nil
	}

	ancestorsA, err := g.ancestorSet(a)
	if err != nil {
		return "", err
	}
	h := &genHeap{}
	seen := map[object.Hash]bool{}
	seq := 0
	push := func(id object.Hash) error {
		if seen[id] {
			return nil
		}
		seen[id] = true
		gen, err := g.generation(id)
		if err != nil {
			return err
		}
		heap.Push(h, genEntry{id: id, gen: gen, seq: seq})
		seq++
		return nil
	}
	if err := push(b); err != nil {
		return "", err
	}
	for h.Len() > 0 {
		e := heap.Pop(h).(genEntry)
		if ancestorsA[e.id] {
			return e.id, nil
		}
		c, err := g.commit(e.id)
		if err != nil {
			return "", err
		}
		for _, p := range c.Parents {
			if err := push(p); err != nil {
				return "", err
			}
		}
	}
	return "", errs.New(errs.KindNotFound, "no common ancestor of %s and %s", a.Short(), b.Short())
}
