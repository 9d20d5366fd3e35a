package entrylog

import (
	"fmt"
	"path/filepath"
)

// Pool is a bounded set of up to maxEntries Entry files on disk. Exactly
// one is OPEN (the "current" Entry) at any time; the rest are either
// FULL (awaiting apply), APPLIED (awaiting recycle), or RECYCLED (free
// for reuse). Slot filenames are entry_<N>.dat.
type Pool struct {
	dir          string
	maxEntries   int
	maxEntrySize int

	slots   []*Entry // index N -> slot, len == maxEntries
	current int      // index into slots of the OPEN entry
	full    []int    // indices of FULL entries, oldest first
}

func entryPath(dir string, n int) string {
	return filepath.Join(dir, fmt.Sprintf("entry_%d.dat", n))
}

// OpenPool creates or recovers a Pool of maxEntries slots in dir. It
// does not decide which records are durable — that's Manager's job —
// it just surfaces each slot's raw on-disk state.
func OpenPool(dir string, maxEntries, maxEntrySize int) (*Pool, map[int][]record, error) {
	p := &Pool{dir: dir, maxEntries: maxEntries, maxEntrySize: maxEntrySize}
	p.slots = make([]*Entry, maxEntries)

	raw := make(map[int][]record, maxEntries)
	for n := 0; n < maxEntries; n++ {
		e, recs, err := openExisting(entryPath(dir, n), maxEntrySize)
		if err != nil {
			return nil, nil, err
		}
		p.slots[n] = e
		if len(recs) > 0 {
			raw[n] = recs
		}
	}

	return p, raw, nil
}

// adoptRecoveryResult is called once by EntryManager.Open after replay:
// every slot's content has already been folded into the ArrayFile (or
// discarded as already-durable), so every slot recycles; openSlot is
// then reopened as the pool's current OPEN entry.
func (p *Pool) adoptRecoveryResult(openSlot int) error {
	for _, e := range p.slots {
		if e.state != StateRecycled {
			if err := e.Recycle(); err != nil {
				return err
			}
		}
	}
	p.current = openSlot
	p.slots[openSlot].reopenAsCurrent()
	p.full = nil
	return nil
}

// Current returns the OPEN entry.
func (p *Pool) Current() *Entry { return p.slots[p.current] }

// firstRecycled returns the index of a RECYCLED slot, or -1 if none.
func (p *Pool) firstRecycled() int {
	for n, e := range p.slots {
		if e.state == StateRecycled {
			return n
		}
	}
	return -1
}

// Rollover seals the current Entry as FULL, then applies and recycles
// every currently FULL entry (including the one just sealed) against
// dst before acquiring a recycled slot as the new current. With a
// small maxEntries this keeps exactly one Entry's worth of records
// ever pending at once — the pool trades deferred-batch buffering for
// a bound on un-applied data that is simple to reason about and to
// recover from. It returns the highest scn actually applied, so the
// caller can advance its durable water mark without waiting for the
// next explicit Sync.
func (p *Pool) Rollover(dst Applier) (uint64, error) {
	if err := p.slots[p.current].Seal(); err != nil {
		return 0, err
	}
	p.full = append(p.full, p.current)

	var appliedScn uint64
	for len(p.full) > 0 {
		n := p.full[0]
		p.full = p.full[1:]
		e := p.slots[n]
		maxScn := e.MaxScn()
		if err := e.Apply(dst); err != nil {
			return appliedScn, err
		}
		if err := e.Recycle(); err != nil {
			return appliedScn, err
		}
		if maxScn > appliedScn {
			appliedScn = maxScn
		}
	}

	n := p.firstRecycled()
	if n < 0 {
		return appliedScn, ErrPoolExhausted
	}
	p.current = n
	p.slots[n].reopenAsCurrent()
	return appliedScn, nil
}

// Drain seals the current Entry (if it holds any records), applies and
// recycles every FULL entry including it, and opens a fresh current
// from a recycled slot. This is EntryManager.Sync's core step: after
// Drain returns, every previously-pending record has been applied to
// dst and the pool has exactly one empty OPEN entry again.
func (p *Pool) Drain(dst Applier) error {
	cur := p.slots[p.current]
	sealedCurrent := false
	if cur.Count() > 0 {
		if err := cur.Seal(); err != nil {
			return err
		}
		p.full = append(p.full, p.current)
		sealedCurrent = true
	}

	for len(p.full) > 0 {
		n := p.full[0]
		p.full = p.full[1:]
		if err := p.slots[n].Apply(dst); err != nil {
			return err
		}
		if err := p.slots[n].Recycle(); err != nil {
			return err
		}
	}

	if sealedCurrent {
		n := p.firstRecycled()
		if n < 0 {
			return ErrPoolExhausted
		}
		p.current = n
		p.slots[n].reopenAsCurrent()
	}
	return nil
}

// Clear recycles every slot and resets pool bookkeeping to one fresh
// OPEN entry at slot 0.
func (p *Pool) Clear() error {
	for _, e := range p.slots {
		if e.state != StateRecycled {
			if err := e.Recycle(); err != nil {
				return err
			}
		}
	}
	p.full = nil
	p.current = 0
	p.slots[0].reopenAsCurrent()
	return nil
}

// Close releases every slot's file descriptor.
func (p *Pool) Close() error {
	var firstErr error
	for _, e := range p.slots {
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
