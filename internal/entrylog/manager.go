package entrylog

import (
	"sort"

	"github.com/krati-go/krati/internal/arrayfile"
)

// Manager glues writes, Entries, water marks, and recovery together:
// every mutation is routed through AddRecord into the pool's current
// Entry, and Sync/Persist force all pending Entries onto the ArrayFile
// under a fresh water-mark pair.
type Manager struct {
	arr  *arrayfile.File
	pool *Pool

	lwm uint64
	hwm uint64
}

// Open recovers (or initializes) the Entry pool in dir against arr and
// returns a ready-to-use Manager: discard Entries already durable at or
// below the file's low water mark, sort the rest by their first scn,
// replay records newer than the low water mark onto arr in that order,
// and write the resulting high-water scn as the new water-mark pair.
func Open(dir string, arr *arrayfile.File, maxEntries, maxEntrySize int) (*Manager, error) {
	pool, raw, err := OpenPool(dir, maxEntries, maxEntrySize)
	if err != nil {
		return nil, err
	}

	fileLwm := arr.LowWaterMark()
	fileHwm := arr.HighWaterMark()

	type candidate struct {
		slot    int
		minScn  uint64
		records []record
	}

	var candidates []candidate
	for slot, recs := range raw {
		if len(recs) == 0 {
			continue
		}
		var maxScn uint64
		for _, r := range recs {
			if r.scn > maxScn {
				maxScn = r.scn
			}
		}
		if maxScn <= fileLwm {
			// Already durable: discard (becomes RECYCLED below).
			continue
		}
		candidates = append(candidates, candidate{slot: slot, minScn: recs[0].scn, records: recs})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].minScn < candidates[j].minScn
	})

	maxReplayed := fileHwm
	for _, c := range candidates {
		for _, rec := range c.records {
			if rec.scn <= fileLwm {
				continue
			}
			if err := arr.Put(rec.index, rec.value); err != nil {
				return nil, err
			}
			if rec.scn > maxReplayed {
				maxReplayed = rec.scn
			}
		}
	}

	if err := arr.Flush(); err != nil {
		return nil, err
	}
	if err := arr.WriteWaterMarks(maxReplayed, maxReplayed); err != nil {
		return nil, err
	}

	if err := pool.adoptRecoveryResult(0); err != nil {
		return nil, err
	}

	return &Manager{arr: arr, pool: pool, lwm: maxReplayed, hwm: maxReplayed}, nil
}

// AddRecord appends (index, value, scn) to the current Entry, rolling
// over to a fresh Entry when it is full, and advances the in-memory
// hwmScn. A rollover applies and recycles whatever was just sealed,
// which can advance lwmScn too — see Pool.Rollover.
func (m *Manager) AddRecord(index uint32, value int64, scn uint64) error {
	cur := m.pool.Current()
	if err := cur.Append(index, value, scn); err != nil {
		if err != ErrEntryFull {
			return err
		}
		appliedScn, err := m.pool.Rollover(m.arr)
		if err != nil {
			return err
		}
		if appliedScn > m.lwm {
			m.lwm = appliedScn
			if err := m.arr.WriteWaterMarks(m.lwm, m.hwm); err != nil {
				return err
			}
		}
		if err := m.pool.Current().Append(index, value, scn); err != nil {
			return err
		}
	}

	if scn > m.hwm {
		m.hwm = scn
	}
	return nil
}

// Sync seals the current Entry (if non-empty), applies every FULL Entry
// to the ArrayFile, recycles them, and writes {lwm:=hwm, hwm} to the
// ArrayFile header. Post-condition: lwmScn == hwmScn in memory and on
// disk.
func (m *Manager) Sync() error {
	if err := m.pool.Drain(m.arr); err != nil {
		return err
	}
	m.lwm = m.hwm
	return m.arr.WriteWaterMarks(m.lwm, m.hwm)
}

// Persist is a synonym of Sync for the external contract.
func (m *Manager) Persist() error {
	return m.Sync()
}

// SetWaterMarks is a diagnostic/reset path used by recovery and by
// RecoverableArray.SaveHWMark when rewinding.
func (m *Manager) SetWaterMarks(lwm, hwm uint64) error {
	m.lwm, m.hwm = lwm, hwm
	return m.arr.WriteWaterMarks(lwm, hwm)
}

// Clear recycles all Entries and resets water marks to zero.
func (m *Manager) Clear() error {
	if err := m.pool.Clear(); err != nil {
		return err
	}
	m.lwm, m.hwm = 0, 0
	return m.arr.WriteWaterMarks(0, 0)
}

// LowWaterMark returns the in-memory lwmScn.
func (m *Manager) LowWaterMark() uint64 { return m.lwm }

// HighWaterMark returns the in-memory hwmScn.
func (m *Manager) HighWaterMark() uint64 { return m.hwm }

// Close releases every Entry's file descriptor. The current Entry is
// flushed but not applied — a later Open replays it.
func (m *Manager) Close() error {
	if err := m.pool.Current().Flush(); err != nil {
		return err
	}
	return m.pool.Close()
}
