// Package mvcc implements C5, the Oracle: the single process-wide allocator
// of commit versions and arbiter of write-write conflicts between
// transactions. Generalizes the teacher's MVCCManager
// (internal/storage/mvcc.go) from its TxID/Timestamp/commitLog model to the
// two-watermark, conflict-window design spec'd for this store.
package mvcc

import (
	"sync"

	"github.com/sirupsen/logrus"

	"reifydb/internal/reifyerr"
)

// Version is a commit or read version: a point in the store's total order.
type Version = uint64

// commitRecord is one retained entry in the conflict window: a committed
// transaction's version and the set of keys it wrote, kept only long
// enough that a concurrently-started reader might still need to check
// against it.
type commitRecord struct {
	version  Version
	writeSet map[string]struct{}
}

// conflictWindow is a ring of recently committed write sets, bounded so
// memory can't grow unboundedly if a reader stalls forever. Grounded on
// the "committed transactions ring rather than a full history scan"
// detail from the original oracle design.
type conflictWindow struct {
	records []commitRecord
}

const maxRetainedCommits = 10000

func (w *conflictWindow) append(rec commitRecord) {
	w.records = append(w.records, rec)
	if len(w.records) > maxRetainedCommits {
		// Hard bound exceeded: half-flush, dropping the oldest half
		// even though the read watermark hasn't caught up yet. This
		// trades conflict-detection precision for a memory bound.
		half := len(w.records) / 2
		w.records = append([]commitRecord(nil), w.records[half:]...)
	}
}

// purgeUpTo drops every record with version <= watermark.
func (w *conflictWindow) purgeUpTo(watermark Version) {
	i := 0
	for i < len(w.records) && w.records[i].version <= watermark {
		i++
	}
	if i > 0 {
		w.records = append([]commitRecord(nil), w.records[i:]...)
	}
}

// conflictsAfter reports whether any retained commit with version >
// readVersion wrote a key present in readSet.
func (w *conflictWindow) conflictsAfter(readVersion Version, readSet map[string]struct{}) bool {
	for _, rec := range w.records {
		if rec.version <= readVersion {
			continue
		}
		for k := range readSet {
			if _, hit := rec.writeSet[k]; hit {
				return true
			}
		}
	}
	return false
}

// Oracle is the process-wide version allocator and conflict arbiter.
// Per spec.md's shared-resource policy it is guarded by one inner mutex;
// callers that also hold a command-serialization lock must acquire it
// before this one, never the reverse.
type Oracle struct {
	mu sync.Mutex

	nextVersion     Version
	commitWatermark Version
	readWatermark   Version

	// outstandingReads counts active readers per read-version; the read
	// watermark can only advance past versions with a zero count.
	outstandingReads map[Version]int

	window conflictWindow

	log *logrus.Entry
}

// New creates an Oracle starting at version 0 (no commits yet).
func New(log *logrus.Entry) *Oracle {
	return &Oracle{
		outstandingReads: make(map[Version]int),
		log:              log,
	}
}

// BeginRead returns the current commit watermark as the caller's read
// version and registers it as outstanding until DoneRead is called.
func (o *Oracle) BeginRead() Version {
	o.mu.Lock()
	defer o.mu.Unlock()
	v := o.commitWatermark
	o.outstandingReads[v]++
	return v
}

// DoneRead marks a previously borrowed read version as finished and
// advances the read watermark as far as it now can.
func (o *Oracle) DoneRead(v Version) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if n, ok := o.outstandingReads[v]; ok {
		if n <= 1 {
			delete(o.outstandingReads, v)
		} else {
			o.outstandingReads[v] = n - 1
		}
	}
	o.advanceReadWatermark()
}

// advanceReadWatermark recomputes the read watermark as the minimum
// outstanding read version minus one, or the commit watermark if there
// are no outstanding readers, and purges conflict-window entries that
// fall below it. Caller must hold o.mu.
func (o *Oracle) advanceReadWatermark() {
	if len(o.outstandingReads) == 0 {
		o.readWatermark = o.commitWatermark
	} else {
		min := o.commitWatermark
		first := true
		for v := range o.outstandingReads {
			if first || v < min {
				min = v
				first = false
			}
		}
		if min == 0 {
			o.readWatermark = 0
		} else {
			o.readWatermark = min - 1
		}
	}
	o.window.purgeUpTo(o.readWatermark)
}

// NewCommit attempts to commit a transaction that read at readVersion and
// wrote the keys in conflicts. It fails with a Conflict error if any
// transaction committed after readVersion wrote a key this transaction
// also read or wrote; conflicts doubles as both the write set recorded
// for future conflict checks and (per spec.md's read-write conflict
// check) the set checked against later commits' write sets.
func (o *Oracle) NewCommit(readVersion Version, conflicts map[string]struct{}) (Version, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.window.conflictsAfter(readVersion, conflicts) {
		return 0, reifyerr.Conflict(reifyerr.CodeConflict, "transaction conflicts with a concurrently committed write")
	}

	o.nextVersion++
	v := o.nextVersion
	o.window.append(commitRecord{version: v, writeSet: conflicts})
	o.commitWatermark = v
	return v, nil
}

// ReadWatermark returns the current read watermark.
func (o *Oracle) ReadWatermark() Version {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.readWatermark
}

// CommitWatermark returns the current commit watermark.
func (o *Oracle) CommitWatermark() Version {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.commitWatermark
}
