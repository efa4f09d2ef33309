// Package mutate implements C12: the insert/update/delete operators
// that turn a columnar batch into written rows, generalizing the
// teacher's executeInsert/executeUpdate/executeDelete trio
// (internal/engine/exec.go) from storage.Table's append-only []Row
// slice into the versioned row-key space internal/store addresses.
// Every operator takes a Writer (a *txn.Transaction in practice) so
// all of a statement's row and index writes land in one pending set,
// committed or rolled back together by the caller.
package mutate

import (
	"bytes"
	"strconv"

	"reifydb/internal/catalog"
	"reifydb/internal/column"
	"reifydb/internal/commitlog"
	"reifydb/internal/dictionary"
	"reifydb/internal/eval"
	"reifydb/internal/key"
	"reifydb/internal/reifyerr"
	"reifydb/internal/row"
	"reifydb/internal/store"
	"reifydb/internal/txn"
)

// Writer is the minimal transactional write surface a mutation
// operator needs.
type Writer interface {
	Get(k key.Key) ([]byte, bool, error)
	Set(k key.Key, v []byte) error
	Remove(k key.Key) error
}

// ReaderWriter additionally supports a range scan, needed by DeleteAll
// to discover every row number of a source without an input pipeline.
type ReaderWriter interface {
	Writer
	Range(r key.Range) ([]store.Item, error)
}

var (
	_ Writer       = (*txn.Transaction)(nil)
	_ ReaderWriter = (*txn.Transaction)(nil)
)

// SourceKind distinguishes the PK index keyspace a Target's primary
// key lives in; tables and views each get their own key.Kind
// (TablePrimaryKey/ViewPrimaryKey) so a PK collision in one namespace
// never aliases into the other.
type SourceKind uint8

const (
	SourceTable SourceKind = iota
	SourceView
	SourceRingBuffer
)

// Target names the mutable source an insert/update/delete operates
// against, generalizing the three row-bearing catalog entities
// spec.md §4.12 names (table, view, ring-buffer) into one shape since
// none of their mutation mechanics differ beyond which PK keyspace
// and row-number sequence they use.
type Target struct {
	Kind       SourceKind
	SourceID   uint64
	Columns    []catalog.ColumnDef
	PrimaryKey []string // column names, in key order; empty if none
	IndexID    uint64   // PK index id; meaningful only when PrimaryKey is non-empty
}

func (t Target) primaryKeyKey(pk []byte) key.Key {
	if t.Kind == SourceView {
		return key.ViewPrimaryKeyKey(t.SourceID, t.IndexID, pk)
	}
	return key.TablePrimaryKeyKey(t.SourceID, t.IndexID, pk)
}

func rowNumberSequence(sourceID uint64) string {
	return "row_number:" + strconv.FormatUint(sourceID, 10)
}

func appendUint64(dst []byte, v uint64) []byte {
	for i := 7; i >= 0; i-- {
		dst = append(dst, byte(v>>(uint(i)*8)))
	}
	return dst
}

func columnDefByName(columns []catalog.ColumnDef, name string) catalog.ColumnDef {
	for _, c := range columns {
		if c.Name == name {
			return c
		}
	}
	return catalog.ColumnDef{}
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// primaryKeyBytes renders pk column values into one comparable byte
// string, the same canonical-string-then-join idiom internal/volcano
// uses for Distinct/Aggregate's group keys (rowKey/groupKeyString).
func primaryKeyBytes(parts []column.Value) []byte {
	var buf bytes.Buffer
	for _, v := range parts {
		buf.WriteString(v.String())
		buf.WriteByte(0x1f)
	}
	return buf.Bytes()
}

// coerceAndValidate applies spec.md §4.12 insert step (i)/(ii): coerce
// to the column's declared type, then validate nullability. Range/
// length constraints beyond "is it nullable" are out of scope until
// internal/catalog grows a constraint definition to validate against.
func coerceAndValidate(c catalog.ColumnDef, v column.Value) (column.Value, error) {
	target := kindOf(c)
	if !v.Defined {
		if !c.Nullable {
			return column.Value{}, reifyerr.Constraint(reifyerr.CodeConstraintNull, "column \""+c.Name+"\" does not accept undefined values")
		}
		return column.Undefined(target), nil
	}
	coerced, ok := eval.CoerceValue(v, target)
	if !ok {
		return column.Value{}, reifyerr.Constraint(reifyerr.CodeConstraintType, "value cannot be coerced to column \""+c.Name+"\"'s declared type")
	}
	return coerced, nil
}

// logicalValue recovers a dictionary-bound column's human value from
// its stored (possibly dictionary-encoded) form, used to rebuild a PK
// tuple from an already-written row during update/delete.
func logicalValue(r dictionary.Reader, c catalog.ColumnDef, stored column.Value) (column.Value, error) {
	if c.Dictionary == 0 || !stored.Defined {
		return stored, nil
	}
	decoded, found, err := dictionary.Decode(r, c.Dictionary, stored.Uint)
	if err != nil {
		return column.Value{}, err
	}
	if !found {
		return column.Undefined(column.KindUtf8), nil
	}
	return decoded, nil
}

// encodeRowValues coerces/validates/dictionary-encodes one row's
// column values against schema's field order, returning the populated
// row.Values and (if target has a primary key) the PK bytes computed
// from the pre-dictionary-encoding logical values.
func encodeRowValues(w Writer, cat *catalog.Catalog, schema *row.Schema, target Target, columnValues []column.Value) (*row.Values, []byte, error) {
	values := schema.Allocate()
	pkRaw := make(map[string]column.Value, len(target.PrimaryKey))

	for ci, c := range target.Columns {
		coerced, err := coerceAndValidate(c, columnValues[ci])
		if err != nil {
			return nil, nil, err
		}
		if containsName(target.PrimaryKey, c.Name) {
			pkRaw[c.Name] = coerced
		}
		stored := coerced
		if c.Dictionary != 0 {
			stored, err = dictionary.Encode(w, cat, c.Dictionary, coerced)
			if err != nil {
				return nil, nil, err
			}
		}
		if err := schema.SetValue(values, ci, stored); err != nil {
			return nil, nil, err
		}
	}

	if len(target.PrimaryKey) == 0 {
		return values, nil, nil
	}
	parts := make([]column.Value, len(target.PrimaryKey))
	for i, name := range target.PrimaryKey {
		parts[i] = pkRaw[name]
	}
	return values, primaryKeyBytes(parts), nil
}

func writePrimaryKeyEntry(w Writer, target Target, pkBytes []byte, rowNumber uint64) error {
	buf := appendUint64(make([]byte, 0, 8), rowNumber)
	return w.Set(target.primaryKeyKey(pkBytes), buf)
}

// primaryKeyBytesFromRow rebuilds the PK byte string of an
// already-stored row, decoding any dictionary-bound PK column back to
// its logical value first.
func primaryKeyBytesFromRow(r dictionary.Reader, target Target, values *row.Values) ([]byte, error) {
	schema := values.Schema()
	parts := make([]column.Value, len(target.PrimaryKey))
	for i, name := range target.PrimaryKey {
		idx, ok := schema.IndexOf(name)
		if !ok {
			return nil, reifyerr.NotFound(reifyerr.CodeColumnNotFound, "primary key column \""+name+"\" missing from stored row")
		}
		stored := schema.GetValue(values, idx)
		logical, err := logicalValue(r, columnDefByName(target.Columns, name), stored)
		if err != nil {
			return nil, err
		}
		parts[i] = logical
	}
	return primaryKeyBytes(parts), nil
}

func fieldsFor(columns []catalog.ColumnDef) []row.Field {
	fields := make([]row.Field, len(columns))
	for i, c := range columns {
		k := kindOf(c)
		if c.Dictionary != 0 {
			k = column.KindDictionaryId
		}
		fields[i] = row.Field{Name: c.Name, Type: k, Nullable: c.Nullable}
	}
	return fields
}

// kindOf maps a catalog.ColumnType to its in-memory column.Kind,
// mirroring internal/volcano/scan.go's kindOf. Kept as a separate
// small table rather than an exported shared helper: the write path
// and the read path each own their local copy the way the teacher
// keeps storage.ColType handling local to each file that needs it.
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

// Insert applies spec.md §4.12's insert path to a batch of input rows
// already aligned one-to-one with target.Columns: coerce, validate,
// dictionary-encode, allocate a row number, write the row and its PK
// index entry (if any). Returns the allocated row numbers and the
// commitlog entries describing each write, for the caller to fold
// into its CommitRecord.
func Insert(w Writer, cat *catalog.Catalog, pool *row.Pool, target Target, input *column.Columns) ([]uint64, []commitlog.Entry, error) {
	if len(input.Cols) != len(target.Columns) {
		return nil, nil, reifyerr.Constraint(reifyerr.CodeConstraintType, "insert column count does not match target's column count")
	}
	schema := pool.GetOrCreate(fieldsFor(target.Columns))
	rowCount := input.RowCount()
	rowNumbers := make([]uint64, 0, rowCount)
	entries := make([]commitlog.Entry, 0, rowCount)

	for r := 0; r < rowCount; r++ {
		columnValues := make([]column.Value, len(target.Columns))
		for ci := range target.Columns {
			columnValues[ci] = input.Cols[ci].Data.GetValue(r)
		}
		values, pkBytes, err := encodeRowValues(w, cat, schema, target, columnValues)
		if err != nil {
			return nil, nil, err
		}

		rowNumber, err := cat.NextID(rowNumberSequence(target.SourceID))
		if err != nil {
			return nil, nil, err
		}
		k := key.RowKey(target.SourceID, rowNumber)
		encoded := values.Bytes()
		if err := w.Set(k, encoded); err != nil {
			return nil, nil, err
		}
		if pkBytes != nil {
			if err := writePrimaryKeyEntry(w, target, pkBytes, rowNumber); err != nil {
				return nil, nil, err
			}
		}

		rowNumbers = append(rowNumbers, rowNumber)
		entries = append(entries, commitlog.Entry{Partition: target.SourceID, Key: k, Op: commitlog.OpInsert, Post: encoded})
	}
	return rowNumbers, entries, nil
}

// Update applies spec.md §4.12's update path: for each rowNumbers[i],
// reads the existing row, removes its old PK entry (if any), then
// re-encodes with input's row i and writes the new row and PK entry.
// Same coercion/validation/dictionary path as Insert.
func Update(w Writer, cat *catalog.Catalog, pool *row.Pool, target Target, rowNumbers []uint64, input *column.Columns) ([]commitlog.Entry, error) {
	if len(input.Cols) != len(target.Columns) {
		return nil, reifyerr.Constraint(reifyerr.CodeConstraintType, "update column count does not match target's column count")
	}
	if input.RowCount() != len(rowNumbers) {
		return nil, reifyerr.Constraint(reifyerr.CodeConstraintType, "update row number count does not match input row count")
	}
	schema := pool.GetOrCreate(fieldsFor(target.Columns))
	entries := make([]commitlog.Entry, 0, len(rowNumbers))

	for r, rowNumber := range rowNumbers {
		k := key.RowKey(target.SourceID, rowNumber)
		old, ok, err := w.Get(k)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, reifyerr.NotFound(reifyerr.CodeTableNotFound, "update: row number not found")
		}

		if len(target.PrimaryKey) > 0 {
			oldValues, err := row.FromBytes(pool, old)
			if err != nil {
				return nil, err
			}
			oldPK, err := primaryKeyBytesFromRow(w, target, oldValues)
			if err != nil {
				return nil, err
			}
			if err := w.Remove(target.primaryKeyKey(oldPK)); err != nil {
				return nil, err
			}
		}

		columnValues := make([]column.Value, len(target.Columns))
		for ci := range target.Columns {
			columnValues[ci] = input.Cols[ci].Data.GetValue(r)
		}
		values, pkBytes, err := encodeRowValues(w, cat, schema, target, columnValues)
		if err != nil {
			return nil, err
		}
		encoded := values.Bytes()
		if err := w.Set(k, encoded); err != nil {
			return nil, err
		}
		if pkBytes != nil {
			if err := writePrimaryKeyEntry(w, target, pkBytes, rowNumber); err != nil {
				return nil, err
			}
		}

		entries = append(entries, commitlog.Entry{Partition: target.SourceID, Key: k, Op: commitlog.OpUpdate, Pre: old, Post: encoded})
	}
	return entries, nil
}

// Delete applies spec.md §4.12's delete path for an explicit set of
// row numbers: removes the PK index entry first (if any), then the
// row. A row number already absent is treated as already-deleted
// rather than an error, since a delete is idempotent per row.
func Delete(w Writer, pool *row.Pool, target Target, rowNumbers []uint64) ([]commitlog.Entry, error) {
	entries := make([]commitlog.Entry, 0, len(rowNumbers))
	for _, rowNumber := range rowNumbers {
		k := key.RowKey(target.SourceID, rowNumber)
		old, ok, err := w.Get(k)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		if len(target.PrimaryKey) > 0 {
			oldValues, err := row.FromBytes(pool, old)
			if err != nil {
				return nil, err
			}
			oldPK, err := primaryKeyBytesFromRow(w, target, oldValues)
			if err != nil {
				return nil, err
			}
			if err := w.Remove(target.primaryKeyKey(oldPK)); err != nil {
				return nil, err
			}
		}
		if err := w.Remove(k); err != nil {
			return nil, err
		}
		entries = append(entries, commitlog.Entry{Partition: target.SourceID, Key: k, Op: commitlog.OpDelete, Pre: old})
	}
	return entries, nil
}

// DeleteAll implements spec.md §4.12's "delete all" path, used when a
// DELETE has no input pipeline: it discovers every live row number of
// target itself via a range scan, then defers to Delete.
func DeleteAll(rw ReaderWriter, pool *row.Pool, target Target) ([]commitlog.Entry, error) {
	r := key.RowRangeForSource(target.SourceID)
	var rowNumbers []uint64
	for {
		items, err := rw.Range(r)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}
		for _, it := range items {
			fields, err := key.DecodeRowKey(it.Key)
			if err != nil {
				return nil, err
			}
			rowNumbers = append(rowNumbers, fields.RowNumber)
		}
		r.Start = key.ExclusiveBound(items[len(items)-1].Key)
	}
	return Delete(rw, pool, target, rowNumbers)
}
