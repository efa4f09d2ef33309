// Package cdc implements C13's wire format (Cdc/CdcChange) and the
// polling consumer that decodes and applies them. The wire encoding is
// a small length-prefixed binary format rather than a full schema
// (protobuf is reserved, per SPEC_FULL.md's DOMAIN STACK wiring, for
// the cdcrpc watermark-introspection service, not the high-volume CDC
// payload stream itself).
package cdc

import (
	"encoding/binary"

	"reifydb/internal/commitlog"
	"reifydb/internal/key"
	"reifydb/internal/reifyerr"
)

// ChangeKind distinguishes the three CdcChange shapes spec.md §4.7 wire
// format names.
type ChangeKind uint8

const (
	KindInsert ChangeKind = iota
	KindUpdate
	KindDelete
)

// Change is one row-level change: Insert{key,post}, Update{key,pre,post},
// or Delete{key,pre?}, with Pre/Post holding EncodedValues bytes
// (row.Values.Bytes()) or nil where the shape omits them.
type Change struct {
	Kind ChangeKind
	Key  key.Key
	Pre  []byte
	Post []byte
}

// Message carries every change committed at one version.
type Message struct {
	Version uint64
	Changes []Change
}

func opToKind(op commitlog.Op) ChangeKind {
	switch op {
	case commitlog.OpInsert:
		return KindInsert
	case commitlog.OpUpdate:
		return KindUpdate
	default:
		return KindDelete
	}
}

func kindToOp(k ChangeKind) commitlog.Op {
	switch k {
	case KindInsert:
		return commitlog.OpInsert
	case KindUpdate:
		return commitlog.OpUpdate
	default:
		return commitlog.OpDelete
	}
}

// Op returns the commitlog.Op this change's kind corresponds to, for
// consumers that want to reuse the same three-way switch the producer
// side uses.
func (c Change) Op() commitlog.Op { return kindToOp(c.Kind) }

// Encode is a commitlog.Encoder that builds the wire Message for a
// shard-filtered CommitRecord.
func Encode(rec commitlog.CommitRecord) ([]byte, error) {
	msg := Message{Version: rec.Version}
	for _, e := range rec.Entries {
		msg.Changes = append(msg.Changes, Change{
			Kind: opToKind(e.Op),
			Key:  e.Key,
			Pre:  e.Pre,
			Post: e.Post,
		})
	}
	return EncodeMessage(msg)
}

func putBytes(out []byte, b []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	out = append(out, lenBuf[:]...)
	return append(out, b...)
}

func takeBytes(raw []byte) (value, rest []byte, err error) {
	if len(raw) < 4 {
		return nil, nil, reifyerr.Format(reifyerr.CodeFormatValue, "cdc wire: truncated length prefix")
	}
	n := binary.BigEndian.Uint32(raw[:4])
	raw = raw[4:]
	if uint32(len(raw)) < n {
		return nil, nil, reifyerr.Format(reifyerr.CodeFormatValue, "cdc wire: truncated payload")
	}
	if n == 0 {
		return nil, raw, nil
	}
	return raw[:n], raw[n:], nil
}

// EncodeMessage serializes msg into the CDC wire payload stored by
// backend.CDC.Append.
func EncodeMessage(msg Message) ([]byte, error) {
	out := make([]byte, 8, 64)
	binary.BigEndian.PutUint64(out, msg.Version)

	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(msg.Changes)))
	out = append(out, countBuf[:]...)

	for _, c := range msg.Changes {
		out = append(out, byte(c.Kind))
		out = putBytes(out, c.Key.Bytes())
		out = putBytes(out, c.Pre)
		out = putBytes(out, c.Post)
	}
	return out, nil
}

// DecodeMessage parses a payload previously produced by EncodeMessage.
func DecodeMessage(raw []byte) (Message, error) {
	if len(raw) < 12 {
		return Message{}, reifyerr.Format(reifyerr.CodeFormatValue, "cdc wire: message too short")
	}
	version := binary.BigEndian.Uint64(raw[:8])
	raw = raw[8:]
	count := binary.BigEndian.Uint32(raw[:4])
	raw = raw[4:]

	msg := Message{Version: version, Changes: make([]Change, 0, count)}
	for i := uint32(0); i < count; i++ {
		if len(raw) < 1 {
			return Message{}, reifyerr.Format(reifyerr.CodeFormatValue, "cdc wire: truncated change kind")
		}
		kind := ChangeKind(raw[0])
		raw = raw[1:]

		kb, rest, err := takeBytes(raw)
		if err != nil {
			return Message{}, err
		}
		raw = rest
		pre, rest, err := takeBytes(raw)
		if err != nil {
			return Message{}, err
		}
		raw = rest
		post, rest, err := takeBytes(raw)
		if err != nil {
			return Message{}, err
		}
		raw = rest

		msg.Changes = append(msg.Changes, Change{
			Kind: kind,
			Key:  key.KeyFromBytes(kb),
			Pre:  pre,
			Post: post,
		})
	}
	return msg, nil
}
