package volcano

import (
	"context"

	"reifydb/internal/catalog"
	"reifydb/internal/column"
	"reifydb/internal/key"
	"reifydb/internal/row"
)

// RingBufferScan walks a ring buffer's fixed [0, Capacity) slot range
// using its catalog.RingBufferMeta head/tail/count window, tolerating
// slots that are absent (never written, or already evicted) by simply
// skipping them rather than erroring — the ring-buffer creation-metadata
// supplement's edge case that a plain Scan's "every key in range must
// decode" assumption doesn't hold for.
type RingBufferScan struct {
	reader    Reader
	pool      *row.Pool
	sourceID  uint64
	capacity  uint64
	meta      *catalog.RingBufferMeta
	columns   []catalog.ColumnDef
	batchSize int

	slots []uint64
	pos   int
}

func NewRingBufferScan(reader Reader, pool *row.Pool, sourceID uint64, capacity uint64, meta *catalog.RingBufferMeta, columns []catalog.ColumnDef, batchSize int) *RingBufferScan {
	if batchSize <= 0 {
		batchSize = 1024
	}
	return &RingBufferScan{reader: reader, pool: pool, sourceID: sourceID, capacity: capacity, meta: meta, columns: columns, batchSize: batchSize}
}

// Open computes the logical slot sequence from head to tail (oldest to
// newest), wrapping at capacity, per the count of live entries in meta.
func (n *RingBufferScan) Open(ctx context.Context) error {
	n.slots = n.slots[:0]
	if n.capacity == 0 || n.meta.Count == 0 {
		return nil
	}
	for i := uint64(0); i < n.meta.Count; i++ {
		n.slots = append(n.slots, (n.meta.Head+i)%n.capacity)
	}
	n.pos = 0
	return nil
}

func (n *RingBufferScan) Next(ctx context.Context) (*column.Columns, error) {
	if n.pos >= len(n.slots) {
		return nil, nil
	}
	end := n.pos + n.batchSize
	if end > len(n.slots) {
		end = len(n.slots)
	}

	cols := make([]column.Column, len(n.columns))
	for i, c := range n.columns {
		cols[i] = column.Column{Name: c.Name, Data: column.NewOption(column.NewByKind(kindOf(c)))}
	}
	rowNumbers := make([]uint64, 0, end-n.pos)

	for i := n.pos; i < end; i++ {
		slot := n.slots[i]
		raw, ok, err := n.get(key.RowKey(n.sourceID, slot))
		if err != nil {
			return nil, err
		}
		if !ok {
			// Evicted or never written: skip silently, the ring
			// buffer scan's core tolerance requirement.
			continue
		}
		values, err := row.FromBytes(n.pool, raw)
		if err != nil {
			return nil, err
		}
		schema := values.Schema()
		for ci, c := range n.columns {
			idx, ok := schema.IndexOf(c.Name)
			var v column.Value
			if ok {
				v = schema.GetValue(values, idx)
			} else {
				v = column.Undefined(kindOf(c))
			}
			if err := cols[ci].Data.PushValue(v); err != nil {
				return nil, err
			}
		}
		rowNumbers = append(rowNumbers, slot)
	}
	n.pos = end
	return &column.Columns{Cols: cols, RowNumbers: rowNumbers}, nil
}

// get fetches a single slot's raw bytes through the same Range surface
// Scan uses, since Reader only exposes Range; a single-key inclusive
// range is the simplest way to reuse it without widening the interface.
func (n *RingBufferScan) get(k key.Key) ([]byte, bool, error) {
	r := key.Range{Start: key.InclusiveBound(k), End: key.InclusiveBound(k)}
	items, err := n.reader.Range(r)
	if err != nil {
		return nil, false, err
	}
	for _, it := range items {
		if it.Key.Compare(k) == 0 && it.Value != nil {
			return it.Value, true, nil
		}
	}
	return nil, false, nil
}

func (n *RingBufferScan) Close() error { return nil }

func (n *RingBufferScan) Headers() []string {
	names := make([]string, len(n.columns))
	for i, c := range n.columns {
		names[i] = c.Name
	}
	return names
}
