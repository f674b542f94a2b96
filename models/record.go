package models

import "strconv"

// Reserved record attribute names. The three sync-control flags are
// maintained exclusively by the sync engine; callers must treat them as
// read-only projections of sync state.
const (
	FieldID          = "id"
	FieldCreatedAt   = "createdAt"
	FieldUpdatedAt   = "updatedAt"
	FieldIsLocal     = "isLocal"
	FieldPendingSync = "pendingSync"
	FieldSynced      = "synced"
)

// Record is an opaque business entity: a mapping of string keys to
// JSON-compatible values. Every record carries a stable string identity
// under the "id" key; collection-specific shape validation belongs to the
// business layer, not the engine.
type Record map[string]any

// ID returns the record's identity. Numeric ids (a server may hand out
// integer primary keys) are normalized to their decimal string form.
func (r Record) ID() string {
	switch id := r[FieldID].(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	default:
		return ""
	}
}

// Flag reads one of the boolean sync-control attributes. A missing or
// non-boolean value reads as false.
func (r Record) Flag(key string) bool {
	v, ok := r[key].(bool)
	return ok && v
}

// SetSyncFlags overwrites all three sync-control flags at once so that a
// record is never observed with a partially updated flag set.
func (r Record) SetSyncFlags(isLocal, pendingSync, synced bool) {
	r[FieldIsLocal] = isLocal
	r[FieldPendingSync] = pendingSync
	r[FieldSynced] = synced
}

// Clone returns a deep copy of the record. Nested maps and slices produced
// by encoding/json are copied recursively; scalar values are shared.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	default:
		return v
	}
}
