package score

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Patch maps a part name (a top-level key of the patched payload) to a set of
// full measure replacements keyed by zero-based measure index in decimal.
//
//	{"soprano": {"2": ["C4", "D4"]}, "figures": {"0": [["6"], []]}}
//
// A nil edit map for a part marks a part whose edits were not a JSON object;
// ApplyPatch drops it with a diagnostic.
type Patch map[string]map[string]json.RawMessage

// Empty reports whether the patch contains no parts.
func (p Patch) Empty() bool {
	return len(p) == 0
}

// UnmarshalJSON accepts an object, null, or a list of objects (which are
// merged in order). Scalars such as "", false or "none" decode as no patch.
// Parts whose edits are not an object are kept with a nil edit map, and list
// entries that are not objects are kept under an entry key ("[1]"), so both
// surface as dropped edits instead of failing the review.
func (p *Patch) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		*p = nil
		return nil
	}

	out := Patch{}
	var objects []map[string]json.RawMessage
	if trimmed[0] == '[' {
		var entries []json.RawMessage
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return fmt.Errorf("patch list: %w", err)
		}
		for i, entry := range entries {
			entry = bytes.TrimSpace(entry)
			if bytes.Equal(entry, []byte("null")) {
				continue
			}
			var obj map[string]json.RawMessage
			if entry[0] != '{' || json.Unmarshal(entry, &obj) != nil {
				out[entryKey(i)] = nil
				continue
			}
			objects = append(objects, obj)
		}
	} else {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return fmt.Errorf("patch: %w", err)
		}
		objects = append(objects, obj)
	}

	for _, obj := range objects {
		for part, raw := range obj {
			var edits map[string]json.RawMessage
			if err := json.Unmarshal(raw, &edits); err != nil || edits == nil {
				if _, seen := out[part]; !seen {
					out[part] = nil
				}
				continue
			}
			if out[part] == nil {
				out[part] = map[string]json.RawMessage{}
			}
			for idx, measure := range edits {
				out[part][idx] = measure
			}
		}
	}
	if len(out) == 0 {
		out = nil
	}
	*p = out
	return nil
}

func entryKey(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

func isEntryKey(part string) bool {
	if len(part) < 3 || part[0] != '[' || part[len(part)-1] != ']' {
		return false
	}
	_, err := strconv.Atoi(part[1 : len(part)-1])
	return err == nil
}

// Payload is the generic form of a partimento or realization: part name to
// raw JSON value. Keys other than measure sequences (title, key, ...) are
// carried through untouched.
type Payload map[string]json.RawMessage

// ToPayload converts a typed value into a Payload.
func ToPayload(v any) (Payload, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	return p, nil
}

// Decode unmarshals the payload into v.
func (p Payload) Decode(v any) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// DropReason explains why a single patch edit was not applied.
type DropReason string

const (
	DropUnknownPart   DropReason = "unknown part"
	DropLockedPart    DropReason = "locked part"
	DropMalformedPart DropReason = "part edits are not an object"
	DropNotObject     DropReason = "patch entry is not an object"
	DropNotSequence   DropReason = "part is not a measure sequence"
	DropBadIndex      DropReason = "measure index is not a non-negative integer"
	DropOutOfRange    DropReason = "measure index out of range"
	DropNotMeasure    DropReason = "replacement is not a list"
)

// DroppedEdit identifies a patch edit that ApplyPatch skipped.
type DroppedEdit struct {
	Part    string     `json:"part"`
	Measure string     `json:"measure,omitempty"`
	Reason  DropReason `json:"reason"`
}

// PatchResult summarises one ApplyPatch call.
type PatchResult struct {
	Applied int
	Dropped []DroppedEdit
}

type patchOptions struct {
	locked map[string]bool
}

// PatchOption customises ApplyPatch.
type PatchOption func(*patchOptions)

// WithLockedParts makes edits to the named parts drop instead of apply.
func WithLockedParts(parts ...string) PatchOption {
	return func(o *patchOptions) {
		for _, p := range parts {
			o.locked[p] = true
		}
	}
}

// ApplyPatch replaces every addressed measure of data wholesale with the
// patch's replacement and returns the mutated payload. Malformed edits
// (unknown or locked parts, unparsable or out-of-range indices, non-list
// replacements) never fail the call; they are reported in PatchResult.Dropped
// in part and index order.
func ApplyPatch(data Payload, patch Patch, opts ...PatchOption) (Payload, PatchResult) {
	o := patchOptions{locked: map[string]bool{}}
	for _, opt := range opts {
		opt(&o)
	}

	var result PatchResult
	for _, part := range sortedKeys(patch) {
		edits := patch[part]
		raw, ok := data[part]
		switch {
		case edits == nil && isEntryKey(part):
			result.Dropped = append(result.Dropped, DroppedEdit{Part: part, Reason: DropNotObject})
			continue
		case !ok:
			result.Dropped = append(result.Dropped, DroppedEdit{Part: part, Reason: DropUnknownPart})
			continue
		case o.locked[part]:
			result.Dropped = append(result.Dropped, DroppedEdit{Part: part, Reason: DropLockedPart})
			continue
		case edits == nil:
			result.Dropped = append(result.Dropped, DroppedEdit{Part: part, Reason: DropMalformedPart})
			continue
		}

		var measures []json.RawMessage
		if err := json.Unmarshal(raw, &measures); err != nil {
			result.Dropped = append(result.Dropped, DroppedEdit{Part: part, Reason: DropNotSequence})
			continue
		}

		changed := false
		for _, key := range sortedMeasureKeys(edits) {
			replacement := bytes.TrimSpace(edits[key])
			idx, err := strconv.Atoi(strings.TrimSpace(key))
			switch {
			case err != nil || idx < 0:
				result.Dropped = append(result.Dropped, DroppedEdit{Part: part, Measure: key, Reason: DropBadIndex})
				continue
			case idx >= len(measures):
				result.Dropped = append(result.Dropped, DroppedEdit{Part: part, Measure: key, Reason: DropOutOfRange})
				continue
			case len(replacement) == 0 || replacement[0] != '[' || !json.Valid(replacement):
				result.Dropped = append(result.Dropped, DroppedEdit{Part: part, Measure: key, Reason: DropNotMeasure})
				continue
			}
			measures[idx] = json.RawMessage(replacement)
			result.Applied++
			changed = true
		}

		if changed {
			encoded, err := json.Marshal(measures)
			if err != nil {
				continue
			}
			data[part] = encoded
		}
	}
	return data, result
}

func sortedKeys(p Patch) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sortedMeasureKeys orders numeric keys numerically and puts anything else last.
func sortedMeasureKeys(edits map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(edits))
	for k := range edits {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(strings.TrimSpace(keys[i]))
		b, errB := strconv.Atoi(strings.TrimSpace(keys[j]))
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}
