// Package conflict resolves divergence between the local and the remote
// version of a record. Everything here is pure: no I/O, no clock, no store
// access, which is what makes the strategies testable in isolation.
package conflict

import (
	"encoding/json"

	"github.com/binarjoin/syncengine/models"
)

// Strategy selects how a detected conflict is resolved.
type Strategy string

const (
	StrategyLastWriteWins Strategy = "last-write-wins"
	StrategyServerWins    Strategy = "server-wins"
	StrategyClientWins    Strategy = "client-wins"
	StrategyMerge         Strategy = "merge"

	// DefaultStrategy is merge: field-level resolution loses less data
	// than whole-record last-write-wins.
	DefaultStrategy = StrategyMerge
)

// Data is the (local, remote) pair under resolution with the timestamps the
// two sides were last written at, in Unix milliseconds.
type Data struct {
	Local           models.Record
	Remote          models.Record
	LocalTimestamp  int64
	RemoteTimestamp int64
}

// LastWriteWins returns the record with the greater timestamp. Ties favor
// remote: the server is the source of truth when nothing else decides.
func LastWriteWins(local, remote models.Record, localTs, remoteTs int64) models.Record {
	if localTs > remoteTs {
		return local
	}
	return remote
}

// ServerWins always keeps the remote version.
func ServerWins(_, remote models.Record) models.Record {
	return remote
}

// ClientWins always keeps the local version.
func ClientWins(local, _ models.Record) models.Record {
	return local
}

// Merge starts from the remote record, copies in every key present only
// locally, and resolves keys present on both sides with differing values
// field by field in favor of the side with the greater timestamp. Identical
// fields are left untouched.
func Merge(local, remote models.Record, localTs, remoteTs int64) models.Record {
	merged := remote.Clone()
	localNewer := localTs > remoteTs

	for key, localValue := range local {
		remoteValue, inRemote := remote[key]
		switch {
		case !inRemote:
			merged[key] = cloneJSON(localValue)
		case equalJSON(localValue, remoteValue):
			// no divergence on this field
		case localNewer:
			merged[key] = cloneJSON(localValue)
		}
	}

	return merged
}

// DetectConflict reports whether any key's JSON-serialized value differs
// between the two records. A key missing on one side counts as differing.
func DetectConflict(local, remote models.Record) bool {
	return len(ConflictingFields(local, remote)) > 0
}

// ConflictingFields lists every key whose value differs between the two
// records.
func ConflictingFields(local, remote models.Record) []string {
	var fields []string
	seen := make(map[string]struct{}, len(local)+len(remote))

	for key := range local {
		seen[key] = struct{}{}
		if !equalJSON(local[key], remote[key]) {
			fields = append(fields, key)
		}
	}
	for key := range remote {
		if _, done := seen[key]; done {
			continue
		}
		if !equalJSON(local[key], remote[key]) {
			fields = append(fields, key)
		}
	}
	return fields
}

// Resolve dispatches to the configured strategy. A nil side short-circuits
// to the other side without invoking any strategy, as does an empty diff.
// Should strategy evaluation fail internally, the safe fallback is always
// the server's version rather than possibly-bad local data.
func Resolve(data Data, strategy Strategy) (resolved models.Record) {
	if data.Local == nil && data.Remote == nil {
		return nil
	}
	if data.Local == nil {
		return data.Remote
	}
	if data.Remote == nil {
		return data.Local
	}

	if !DetectConflict(data.Local, data.Remote) {
		return data.Remote
	}

	defer func() {
		if r := recover(); r != nil {
			resolved = data.Remote
		}
	}()

	switch strategy {
	case StrategyLastWriteWins:
		return LastWriteWins(data.Local, data.Remote, data.LocalTimestamp, data.RemoteTimestamp)
	case StrategyServerWins:
		return ServerWins(data.Local, data.Remote)
	case StrategyClientWins:
		return ClientWins(data.Local, data.Remote)
	case StrategyMerge:
		return Merge(data.Local, data.Remote, data.LocalTimestamp, data.RemoteTimestamp)
	default:
		return Merge(data.Local, data.Remote, data.LocalTimestamp, data.RemoteTimestamp)
	}
}

func equalJSON(a, b any) bool {
	rawA, errA := json.Marshal(a)
	rawB, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return errA != nil && errB != nil
	}
	return string(rawA) == string(rawB)
}

func cloneJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneJSON(vv)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneJSON(vv)
		}
		return s
	default:
		return v
	}
}
