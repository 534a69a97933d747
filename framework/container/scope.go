package container

import (
	"slices"
	"sync"
)

// Scope is a view of a Container that carries the ordered set of keys and
// types currently being resolved in this call chain. All storage is
// delegated to the container; the reference set only exists for cycle
// detection and is threaded explicitly into every nested resolver.
type Scope struct {
	c     *Container
	refs  []Handle
	owner *resolution
}

// resolution identifies one top-level lookup and every nested lookup it
// makes. waiting is the resolution owning the pending slot this one blocks
// on; it is guarded by waitMu.
type resolution struct {
	waiting *resolution
}

// waitMu guards the wait-for graph between resolutions.
var waitMu sync.Mutex

// await records that r blocks on a slot owned by holder. It fails when the
// holder (transitively) waits on r, which would never finish.
func (r *resolution) await(holder *resolution) bool {
	waitMu.Lock()
	defer waitMu.Unlock()
	for x := holder; x != nil; x = x.waiting {
		if x == r {
			return false
		}
	}
	r.waiting = holder
	return true
}

func (r *resolution) release() {
	waitMu.Lock()
	r.waiting = nil
	waitMu.Unlock()
}

func (s *Scope) scope() *Scope { return s }

// Container returns the container the scope reads from and writes to.
func (s *Scope) Container() *Container { return s.c }

// Chain returns the labels of the reference set, outermost first.
func (s *Scope) Chain() []string {
	out := make([]string, len(s.refs))
	for i, h := range s.refs {
		out[i] = h.Label()
	}
	return out
}

// enter returns the child scope used while resolving h, or a cycle error if
// h is already in the reference set.
func (s *Scope) enter(h Handle) (*Scope, error) {
	if slices.Contains(s.refs, h) {
		return nil, newError(h, s.Chain(), ErrCycle)
	}
	refs := make([]Handle, len(s.refs), len(s.refs)+1)
	copy(refs, s.refs)
	owner := s.owner
	if owner == nil {
		owner = &resolution{}
	}
	return &Scope{c: s.c, refs: append(refs, h), owner: owner}, nil
}

// in returns a view of another container that keeps this reference set, so
// cycles crossing containers are still caught.
func (s *Scope) in(c *Container) *Scope {
	return &Scope{c: c, refs: s.refs, owner: s.owner}
}
