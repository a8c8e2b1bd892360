package domain

import (
	"fmt"
	"sort"
)

// KeyAttribute is the attribute carrying a flag's identity.
const KeyAttribute = "key"

// RawFlag is the attribute bundle of one flag exactly as the flag-delivery
// service sent it. The evaluation layer interprets it; this module does not.
type RawFlag map[string]interface{}

// Key returns the flag key embedded in the attributes.
func (f RawFlag) Key() (string, error) {
	raw, ok := f[KeyAttribute]
	if !ok {
		return "", NewValidationError("flag attributes have no key")
	}
	key, ok := raw.(string)
	if !ok || key == "" {
		return "", NewValidationError(fmt.Sprintf("flag key must be a non-empty string, got %T", raw))
	}
	return key, nil
}

// Clone returns a shallow copy so a stored record never aliases the caller's map.
func (f RawFlag) Clone() RawFlag {
	if f == nil {
		return nil
	}
	out := make(RawFlag, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Snapshot is a point-in-time copy of every cached flag, keyed by flag key.
type Snapshot map[string]RawFlag

// Keys returns the snapshot's flag keys in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
