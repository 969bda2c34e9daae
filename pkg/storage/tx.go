package storage

import (
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/pppplang/ppppl/pkg/ast"
	"github.com/pppplang/ppppl/pkg/parser"
	"github.com/pppplang/ppppl/pkg/value"
)

// Tx is a single ppppl transaction: a live bbolt write transaction plus the
// in-memory decoded root Value. The root is decoded once at Begin and
// re-encoded at Commit only if a WriteMemory call succeeded, mirroring
// the original interpreter's dirty-flag-gated re-encode.
type Tx struct {
	btx *bolt.Tx
	mem value.Value

	memChanged  bool
	codeChanged bool
	newCode     string
}

// ReadCode parses and returns the currently loaded program. An empty store
// (nothing ever loaded) parses as a module with no blocks.
func (tx *Tx) ReadCode() (ast.Module, error) {
	raw := tx.btx.Bucket(bucketCode).Get(codeKey)
	if raw == nil {
		return ast.Module{}, nil
	}
	mod, err := parser.ParseModule(string(raw))
	if err != nil {
		return ast.Module{}, fmt.Errorf("storage: loaded program is corrupt: %w", err)
	}
	return mod, nil
}

// ReplaceCode stages new program source text for writing at Commit. The
// caller is expected to have parse-checked src already (the CLI's load
// subcommand does); ReplaceCode itself does not parse, matching the
// original's storage-layer contract of storing text, not validating it.
func (tx *Tx) ReplaceCode(src string) {
	tx.newCode = src
	tx.codeChanged = true
}

// ReadMemory resolves path (a sequence of Dict keys from the root) against
// the transaction's in-memory root snapshot. Returns (_, false, nil) if any
// path element is absent or steps through a non-Dict value.
func (tx *Tx) ReadMemory(path []value.Value) (value.Value, bool, error) {
	cur := tx.mem
	for _, key := range path {
		if cur.Kind != value.KindDict {
			return value.Value{}, false, nil
		}
		v, ok := cur.Get(key)
		if !ok {
			return value.Value{}, false, nil
		}
		cur = v
	}
	return cur, true, nil
}

// WriteMemory writes newVal at path, auto-vivifying intermediate Dicts that
// don't yet exist. If path steps through a value that exists but is not a
// Dict, the write is silently dropped (returns false, nil) rather than
// erroring: this matches the original interpreter, which never treats a
// failed write_memory as a hard error in exec_block.
func (tx *Tx) WriteMemory(path []value.Value, newVal value.Value) (bool, error) {
	if len(path) == 0 {
		tx.mem = newVal
		tx.memChanged = true
		return true, nil
	}

	newRoot, ok := writeAt(tx.mem, path, newVal)
	if !ok {
		return false, nil
	}
	tx.mem = newRoot
	tx.memChanged = true
	return true, nil
}

// writeAt returns a new tree with newVal written at path under cur,
// creating empty Dicts for any missing intermediate key. ok is false if an
// existing intermediate is a non-Dict value.
func writeAt(cur value.Value, path []value.Value, newVal value.Value) (value.Value, bool) {
	if len(path) == 0 {
		return newVal, true
	}
	if cur.Kind != value.KindDict {
		if !isZero(cur) {
			return value.Value{}, false
		}
		cur = value.EmptyDict()
	}
	key := path[0]
	child, ok := cur.Get(key)
	if !ok {
		child = value.EmptyDict()
	}
	newChild, ok := writeAt(child, path[1:], newVal)
	if !ok {
		return value.Value{}, false
	}
	return cur.With(key, newChild), true
}

// isZero reports whether v is the unpopulated zero value.Value, as opposed
// to a real KindInt zero. writeAt's own callers never pass one in today
// (missing keys are substituted with EmptyDict before recursing), but
// writeAt takes cur as a plain parameter, not solely through that path, so
// this stays a guard against a nil/zero intermediate rather than relying on
// callers to uphold the invariant.
func isZero(v value.Value) bool {
	return v.Kind == value.KindInt && v.Int == nil && v.Blob == nil && v.Dict == nil && !v.Bool
}

// Commit persists any staged code/memory changes and commits the
// underlying bbolt transaction.
func (tx *Tx) Commit() error {
	if tx.codeChanged {
		code := tx.btx.Bucket(bucketCode)
		if err := code.Put(codeKey, []byte(tx.newCode)); err != nil {
			return fmt.Errorf("storage: writing code: %w", err)
		}
	}
	if tx.memChanged {
		data, err := value.Marshal(tx.mem)
		if err != nil {
			return fmt.Errorf("storage: encoding memory: %w", err)
		}
		mem := tx.btx.Bucket(bucketMem)
		if err := mem.Put(memKey, data); err != nil {
			return fmt.Errorf("storage: writing memory: %w", err)
		}
	}
	if err := tx.btx.Commit(); err != nil {
		return fmt.Errorf("storage: committing transaction: %w", err)
	}
	return nil
}

// Rollback discards the transaction without persisting any staged changes.
func (tx *Tx) Rollback() error {
	return tx.btx.Rollback()
}
