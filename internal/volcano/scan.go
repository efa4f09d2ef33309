package volcano

import (
	"context"

	"reifydb/internal/catalog"
	"reifydb/internal/column"
	"reifydb/internal/dictionary"
	"reifydb/internal/key"
	"reifydb/internal/row"
	"reifydb/internal/store"
	"reifydb/internal/txn"
)

// Reader is the minimal transactional read surface Scan needs;
// *txn.Transaction satisfies it. The interface keeps this package decoupled from the concrete transaction type the
// way the teacher's engine package depends on *storage.Table rather
// than a concrete executor. Get is needed alongside Range so a
// dictionary-bound column can be decoded inline during the scan.
type Reader interface {
	Range(r key.Range) ([]store.Item, error)
	Get(k key.Key) ([]byte, bool, error)
}

var _ Reader = (*txn.Transaction)(nil)

// Scan is a leaf node reading every live row of one source (table or
// view) in row-number order, decoding each with row.FromBytes and
// projecting it into a columnar batch per its catalog.ColumnDef list —
// the columnar analogue of the teacher's table scan inside
// processNonAggregateQuery, which materializes a []Row slice by walking
// storage.Table.Rows directly.
type Scan struct {
	reader    Reader
	pool      *row.Pool
	sourceID  uint64
	columns   []catalog.ColumnDef
	batchSize int

	items []store.Item
	pos   int
}

func NewScan(reader Reader, pool *row.Pool, sourceID uint64, columns []catalog.ColumnDef, batchSize int) *Scan {
	if batchSize <= 0 {
		batchSize = 1024
	}
	return &Scan{reader: reader, pool: pool, sourceID: sourceID, columns: columns, batchSize: batchSize}
}

func (n *Scan) Open(ctx context.Context) error {
	n.items = nil
	r := key.RowRangeForSource(n.sourceID)
	for {
		items, err := n.reader.Range(r)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			break
		}
		n.items = append(n.items, items...)
		r.Start = key.ExclusiveBound(items[len(items)-1].Key)
	}
	n.pos = 0
	return nil
}

func (n *Scan) Next(ctx context.Context) (*column.Columns, error) {
	if n.pos >= len(n.items) {
		return nil, nil
	}
	end := n.pos + n.batchSize
	if end > len(n.items) {
		end = len(n.items)
	}
	batch, err := n.decodeRange(n.pos, end)
	if err != nil {
		return nil, err
	}
	n.pos = end
	return batch, nil
}

func (n *Scan) decodeRange(start, end int) (*column.Columns, error) {
	cols := make([]column.Column, len(n.columns))
	for i, c := range n.columns {
		cols[i] = column.Column{Name: c.Name, Data: column.NewOption(column.NewByKind(kindOf(c)))}
	}
	rowNumbers := make([]uint64, 0, end-start)

	for i := start; i < end; i++ {
		item := n.items[i]
		if item.Value == nil {
			continue
		}
		values, err := row.FromBytes(n.pool, item.Value)
		if err != nil {
			return nil, err
		}
		fields := key.RowKeyFields{}
		if f, err := key.DecodeRowKey(item.Key); err == nil {
			fields = f
		}
		schema := values.Schema()
		for ci, c := range n.columns {
			idx, ok := schema.IndexOf(c.Name)
			var v column.Value
			if ok {
				v = schema.GetValue(values, idx)
				if c.Dictionary != 0 && v.Defined {
					decoded, found, err := dictionary.Decode(n.reader, c.Dictionary, v.Uint)
					if err != nil {
						return nil, err
					}
					if found {
						v = decoded
					} else {
						v = column.Undefined(kindOf(c))
					}
				}
			} else {
				v = column.Undefined(kindOf(c))
			}
			if err := cols[ci].Data.PushValue(v); err != nil {
				return nil, err
			}
		}
		rowNumbers = append(rowNumbers, fields.RowNumber)
	}
	return &column.Columns{Cols: cols, RowNumbers: rowNumbers}, nil
}

func kindOf(c catalog.ColumnDef) column.Kind {
	switch c.Type {
	case "bool":
		return column.KindBool
	case "int1":
		return column.KindInt1
	case "int2":
		return column.KindInt2
	case "int4":
		return column.KindInt4
	case "int8":
		return column.KindInt8
	case "int16":
		return column.KindInt16
	case "uint1":
		return column.KindUint1
	case "uint2":
		return column.KindUint2
	case "uint4":
		return column.KindUint4
	case "uint8":
		return column.KindUint8
	case "uint16":
		return column.KindUint16
	case "float4":
		return column.KindFloat4
	case "float8":
		return column.KindFloat8
	case "utf8":
		return column.KindUtf8
	case "blob":
		return column.KindBlob
	case "decimal":
		return column.KindDecimal
	default:
		return column.KindAny
	}
}

func (n *Scan) Close() error { return nil }

func (n *Scan) Headers() []string {
	names := make([]string, len(n.columns))
	for i, c := range n.columns {
		names[i] = c.Name
	}
	return names
}
