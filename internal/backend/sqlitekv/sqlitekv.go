// Package sqlitekv implements the embedded SQL-file Backend described by
// §6's storage file layout, using modernc.org/sqlite (the
// teacher's direct sqlite dependency, internal/storage/backend_disk.go's
// spiritual sibling) instead of the teacher's gob+manifest disk format.
// One file holds three logical areas — single-version records,
// multi-version records, and the CDC log — as three tables; SQLite
// compares BLOB columns byte-by-byte, which is exactly the ordering the
// key codec guarantees, so range scans translate directly to >=/>/<=/<
// predicates over the key column.
package sqlitekv

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"reifydb/internal/backend"
	"reifydb/internal/key"
	"reifydb/internal/reifyerr"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS single_version (
	k BLOB PRIMARY KEY,
	v BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS multi_version (
	k BLOB NOT NULL,
	version INTEGER NOT NULL,
	v BLOB,
	tombstone INTEGER NOT NULL,
	PRIMARY KEY (k, version DESC)
);
CREATE TABLE IF NOT EXISTS cdc_log (
	version INTEGER PRIMARY KEY,
	payload BLOB NOT NULL,
	timestamp_ns INTEGER NOT NULL
);
`

// Backend is a sqlite-file-backed implementation of backend.Backend.
type Backend struct {
	db *sql.DB
}

// Open creates or attaches to a sqlite file at path implementing all three
// raw KV surfaces.
func Open(path string) (*Backend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, reifyerr.IO(reifyerr.CodeIO, "opening sqlite backend").WithCause(err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY races
	if _, err := db.Exec(schemaDDL); err != nil {
		return nil, reifyerr.IO(reifyerr.CodeIO, "initializing sqlite schema").WithCause(err)
	}
	return &Backend{db: db}, nil
}

func (b *Backend) Close() error { return b.db.Close() }

func (b *Backend) Single() backend.SingleVersion { return (*singleView)(b) }
func (b *Backend) Multi() backend.MultiVersion   { return (*multiView)(b) }
func (b *Backend) CDC() backend.CDC              { return (*cdcView)(b) }

// ---- SingleVersion ----

type singleView Backend

func (s *singleView) Get(k key.Key) ([]byte, bool, error) {
	var v []byte
	err := (*Backend)(s).db.QueryRow(`SELECT v FROM single_version WHERE k = ?`, k.Bytes()).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, reifyerr.IO(reifyerr.CodeIO, "single_version get").WithCause(err)
	}
	return v, true, nil
}

func (s *singleView) Set(k key.Key, v []byte) error {
	_, err := (*Backend)(s).db.Exec(`INSERT INTO single_version(k, v) VALUES (?, ?)
		ON CONFLICT(k) DO UPDATE SET v = excluded.v`, k.Bytes(), v)
	if err != nil {
		return reifyerr.IO(reifyerr.CodeIO, "single_version set").WithCause(err)
	}
	return nil
}

func (s *singleView) Remove(k key.Key) error {
	_, err := (*Backend)(s).db.Exec(`DELETE FROM single_version WHERE k = ?`, k.Bytes())
	if err != nil {
		return reifyerr.IO(reifyerr.CodeIO, "single_version remove").WithCause(err)
	}
	return nil
}

func (s *singleView) Range(r key.Range) (backend.SingleVersionIterator, error) {
	where, args := rangePredicate("k", r)
	rows, err := (*Backend)(s).db.Query(fmt.Sprintf(`SELECT k, v FROM single_version WHERE %s ORDER BY k ASC`, where), args...)
	if err != nil {
		return nil, reifyerr.IO(reifyerr.CodeIO, "single_version range").WithCause(err)
	}
	defer rows.Close()
	var items []backend.SingleVersionItem
	for rows.Next() {
		var kb, v []byte
		if err := rows.Scan(&kb, &v); err != nil {
			return nil, reifyerr.IO(reifyerr.CodeIO, "single_version range scan").WithCause(err)
		}
		items = append(items, backend.SingleVersionItem{Key: key.KeyFromBytes(kb), Value: v})
	}
	return &svIterator{items: items, pos: -1}, rows.Err()
}

type svIterator struct {
	items []backend.SingleVersionItem
	pos   int
}

func (it *svIterator) Next() bool                       { it.pos++; return it.pos < len(it.items) }
func (it *svIterator) Item() backend.SingleVersionItem { return it.items[it.pos] }
func (it *svIterator) Err() error                       { return nil }
func (it *svIterator) Close() error                     { return nil }

// ---- MultiVersion ----

type multiView Backend

func (m *multiView) Get(k key.Key, version uint64) ([]byte, bool, error) {
	var v []byte
	var tombstone int
	row := (*Backend)(m).db.QueryRow(`SELECT v, tombstone FROM multi_version
		WHERE k = ? AND version <= ? ORDER BY version DESC LIMIT 1`, k.Bytes(), version)
	err := row.Scan(&v, &tombstone)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, reifyerr.IO(reifyerr.CodeIO, "multi_version get").WithCause(err)
	}
	if tombstone != 0 {
		return nil, false, nil
	}
	return v, true, nil
}

func (m *multiView) Contains(k key.Key, version uint64) (bool, error) {
	_, ok, err := m.Get(k, version)
	return ok, err
}

func (m *multiView) Commit(version uint64, deltas []backend.Delta) error {
	db := (*Backend)(m).db
	tx, err := db.Begin()
	if err != nil {
		return reifyerr.IO(reifyerr.CodeIO, "multi_version commit begin").WithCause(err)
	}
	for _, d := range deltas {
		tomb := 0
		if d.Tombstone {
			tomb = 1
		}
		if _, err := tx.Exec(`INSERT INTO multi_version(k, version, v, tombstone) VALUES (?, ?, ?, ?)`,
			d.Key.Bytes(), version, d.Value, tomb); err != nil {
			_ = tx.Rollback()
			return reifyerr.IO(reifyerr.CodeIO, "multi_version commit write").WithCause(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return reifyerr.IO(reifyerr.CodeIO, "multi_version commit").WithCause(err)
	}
	return nil
}

func rangePredicate(col string, r key.Range) (string, []any) {
	clauses := []string{"1=1"}
	var args []any
	switch r.Start.Kind {
	case key.Inclusive:
		clauses = append(clauses, col+" >= ?")
		args = append(args, r.Start.Key.Bytes())
	case key.Exclusive:
		clauses = append(clauses, col+" > ?")
		args = append(args, r.Start.Key.Bytes())
	}
	switch r.End.Kind {
	case key.Inclusive:
		clauses = append(clauses, col+" <= ?")
		args = append(args, r.End.Key.Bytes())
	case key.Exclusive:
		clauses = append(clauses, col+" < ?")
		args = append(args, r.End.Key.Bytes())
	}
	where := clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}

func (m *multiView) rangeItems(r key.Range, version uint64, desc bool) ([]backend.MultiVersionItem, error) {
	where, args := rangePredicate("k", r)
	order := "ASC"
	if desc {
		order = "DESC"
	}
	// Latest version <= `version` per key: a grouped max(version) per k,
	// joined back on (k, version).
	query := fmt.Sprintf(`
		SELECT mv.k, mv.v, mv.tombstone, mv.version FROM multi_version mv
		INNER JOIN (
			SELECT k, MAX(version) AS mver FROM multi_version
			WHERE %s AND version <= ?
			GROUP BY k
		) latest ON mv.k = latest.k AND mv.version = latest.mver
		ORDER BY mv.k %s`, where, order)
	args = append(args, version)
	rows, err := (*Backend)(m).db.Query(query, args...)
	if err != nil {
		return nil, reifyerr.IO(reifyerr.CodeIO, "multi_version range").WithCause(err)
	}
	defer rows.Close()
	var items []backend.MultiVersionItem
	for rows.Next() {
		var kb, v []byte
		var tomb int
		var ver uint64
		if err := rows.Scan(&kb, &v, &tomb, &ver); err != nil {
			return nil, reifyerr.IO(reifyerr.CodeIO, "multi_version range scan").WithCause(err)
		}
		items = append(items, backend.MultiVersionItem{
			Key: key.KeyFromBytes(kb), Value: v, Tombstone: tomb != 0, Version: ver,
		})
	}
	return items, rows.Err()
}

func (m *multiView) Range(r key.Range, version uint64) (backend.MultiVersionIterator, error) {
	items, err := m.rangeItems(r, version, false)
	if err != nil {
		return nil, err
	}
	return &mvIterator{items: items, pos: -1}, nil
}

func (m *multiView) RangeReverse(r key.Range, version uint64) (backend.MultiVersionIterator, error) {
	items, err := m.rangeItems(r, version, true)
	if err != nil {
		return nil, err
	}
	return &mvIterator{items: items, pos: -1}, nil
}

func (m *multiView) Compact(floor uint64) error {
	// Keep, per key, the newest version <= floor and drop everything
	// strictly older than it; versions above floor are untouched.
	_, err := (*Backend)(m).db.Exec(`
		DELETE FROM multi_version
		WHERE version <= ? AND version < (
			SELECT MAX(version) FROM multi_version mv2
			WHERE mv2.k = multi_version.k AND mv2.version <= ?
		)`, floor, floor)
	if err != nil {
		return reifyerr.IO(reifyerr.CodeIO, "multi_version compact").WithCause(err)
	}
	return nil
}

type mvIterator struct {
	items []backend.MultiVersionItem
	pos   int
}

func (it *mvIterator) Next() bool                      { it.pos++; return it.pos < len(it.items) }
func (it *mvIterator) Item() backend.MultiVersionItem { return it.items[it.pos] }
func (it *mvIterator) Err() error                      { return nil }
func (it *mvIterator) Close() error                    { return nil }

// ---- CDC ----

type cdcView Backend

func (c *cdcView) Append(rec backend.CDCRecord) error {
	_, err := (*Backend)(c).db.Exec(`INSERT INTO cdc_log(version, payload, timestamp_ns) VALUES (?, ?, ?)`,
		rec.Version, rec.Payload, rec.TimestampNS)
	if err != nil {
		return reifyerr.AlreadyExists(reifyerr.CodeAlreadyExists, "cdc record already appended for this version").WithCause(err)
	}
	return nil
}

func (c *cdcView) Get(version uint64) (backend.CDCRecord, bool, error) {
	var rec backend.CDCRecord
	rec.Version = version
	row := (*Backend)(c).db.QueryRow(`SELECT payload, timestamp_ns FROM cdc_log WHERE version = ?`, version)
	err := row.Scan(&rec.Payload, &rec.TimestampNS)
	if err == sql.ErrNoRows {
		return backend.CDCRecord{}, false, nil
	}
	if err != nil {
		return backend.CDCRecord{}, false, reifyerr.IO(reifyerr.CodeIO, "cdc get").WithCause(err)
	}
	return rec, true, nil
}

func (c *cdcView) Count(version uint64) (int, error) {
	var n int
	err := (*Backend)(c).db.QueryRow(`SELECT COUNT(*) FROM cdc_log WHERE version = ?`, version).Scan(&n)
	if err != nil {
		return 0, reifyerr.IO(reifyerr.CodeIO, "cdc count").WithCause(err)
	}
	return n, nil
}

func (c *cdcView) Range(start, end uint64) (backend.CDCIterator, error) {
	rows, err := (*Backend)(c).db.Query(`SELECT version, payload, timestamp_ns FROM cdc_log
		WHERE version >= ? AND version <= ? ORDER BY version ASC`, start, end)
	if err != nil {
		return nil, reifyerr.IO(reifyerr.CodeIO, "cdc range").WithCause(err)
	}
	defer rows.Close()
	var items []backend.CDCRecord
	for rows.Next() {
		var rec backend.CDCRecord
		if err := rows.Scan(&rec.Version, &rec.Payload, &rec.TimestampNS); err != nil {
			return nil, reifyerr.IO(reifyerr.CodeIO, "cdc range scan").WithCause(err)
		}
		items = append(items, rec)
	}
	return &cdcIterator{items: items, pos: -1}, rows.Err()
}

type cdcIterator struct {
	items []backend.CDCRecord
	pos   int
}

func (it *cdcIterator) Next() bool              { it.pos++; return it.pos < len(it.items) }
func (it *cdcIterator) Item() backend.CDCRecord { return it.items[it.pos] }
func (it *cdcIterator) Err() error              { return nil }
func (it *cdcIterator) Close() error            { return nil }
