package mutate

import (
	"encoding/binary"

	"reifydb/internal/catalog"
	"reifydb/internal/column"
	"reifydb/internal/commitlog"
	"reifydb/internal/key"
	"reifydb/internal/reifyerr"
	"reifydb/internal/row"
)

// encodeRingBufferMeta/decodeRingBufferMeta persist a ring buffer's
// head/tail/count counters as three big-endian uint64s under
// key.RingBufferMetaKey, transactionally alongside the rows it
// describes — catalog.Catalog.RingBufferMeta is an in-memory cache
// only (see catalog.go), so InsertRingBuffer must read and write this
// key itself to make eviction durable and part of the same commit.
func encodeRingBufferMeta(m catalog.RingBufferMeta) []byte {
	buf := make([]byte, 24)
	binary.BigEndian.PutUint64(buf[0:8], m.Head)
	binary.BigEndian.PutUint64(buf[8:16], m.Tail)
	binary.BigEndian.PutUint64(buf[16:24], m.Count)
	return buf
}

func decodeRingBufferMeta(raw []byte) (catalog.RingBufferMeta, error) {
	if len(raw) != 24 {
		return catalog.RingBufferMeta{}, reifyerr.Format(reifyerr.CodeFormatValue, "malformed ring buffer meta")
	}
	return catalog.RingBufferMeta{
		Head:  binary.BigEndian.Uint64(raw[0:8]),
		Tail:  binary.BigEndian.Uint64(raw[8:16]),
		Count: binary.BigEndian.Uint64(raw[16:24]),
	}, nil
}

func readRingBufferMeta(w Writer, ringBufferID uint64) (catalog.RingBufferMeta, error) {
	raw, ok, err := w.Get(key.RingBufferMetaKey(ringBufferID))
	if err != nil {
		return catalog.RingBufferMeta{}, err
	}
	if !ok {
		return catalog.RingBufferMeta{}, nil
	}
	return decodeRingBufferMeta(raw)
}

// InsertRingBuffer appends rows to a ring buffer of the given
// capacity, evicting the oldest entries once Count reaches capacity.
// Head and Tail are monotonically increasing logical counters that
// never wrap; only the physical row key derived from them
// (logical % capacity) does, matching internal/volcano.RingBufferScan's
// read-side slot computation ((meta.Head+i) % capacity). For capacity
// 3 inserting a, b, c, d in sequence: d's write evicts a (the slot its
// physical address shares), leaving head=1, tail=4, count=3 and a scan
// order of b, c, d.
func InsertRingBuffer(w Writer, cat *catalog.Catalog, pool *row.Pool, target Target, capacity uint64, input *column.Columns) ([]uint64, []commitlog.Entry, error) {
	if capacity == 0 {
		return nil, nil, reifyerr.Constraint(reifyerr.CodeConstraintRange, "ring buffer capacity must be greater than zero")
	}
	if len(input.Cols) != len(target.Columns) {
		return nil, nil, reifyerr.Constraint(reifyerr.CodeConstraintType, "insert column count does not match target's column count")
	}

	meta, err := readRingBufferMeta(w, target.SourceID)
	if err != nil {
		return nil, nil, err
	}
	schema := pool.GetOrCreate(fieldsFor(target.Columns))
	rowCount := input.RowCount()
	logicalPositions := make([]uint64, 0, rowCount)
	entries := make([]commitlog.Entry, 0, rowCount)

	for r := 0; r < rowCount; r++ {
		columnValues := make([]column.Value, len(target.Columns))
		for ci := range target.Columns {
			columnValues[ci] = input.Cols[ci].Data.GetValue(r)
		}
		values, _, err := encodeRowValues(w, cat, schema, target, columnValues)
		if err != nil {
			return nil, nil, err
		}

		logical := meta.Tail
		slot := logical % capacity
		k := key.RowKey(target.SourceID, slot)

		var pre []byte
		if meta.Count == capacity {
			if old, ok, err := w.Get(k); err == nil && ok {
				pre = old
			}
			meta.Head++
		} else {
			meta.Count++
		}
		meta.Tail++

		encoded := values.Bytes()
		if err := w.Set(k, encoded); err != nil {
			return nil, nil, err
		}

		op := commitlog.OpInsert
		if pre != nil {
			op = commitlog.OpUpdate
		}
		entries = append(entries, commitlog.Entry{Partition: target.SourceID, Key: k, Op: op, Pre: pre, Post: encoded})
		logicalPositions = append(logicalPositions, logical)
	}

	if err := w.Set(key.RingBufferMetaKey(target.SourceID), encodeRingBufferMeta(meta)); err != nil {
		return nil, nil, err
	}
	return logicalPositions, entries, nil
}
