package cbor

import (
	"bytes"
	"hash/maphash"

	"github.com/aristanetworks/gomap"
)

// keyTracker enforces the duplicate-key and canonical-ordering rules that
// CborConformanceMode names (ConformanceStrict and above) but that raw
// container bookkeeping alone cannot check: it only ever sees decoded
// values, not the encoded bytes a map key round-trips to.
//
// It is deliberately minimal compared to the Python-dict-shaped Dict type
// it borrows gomap.Map from: a map key here is only ever compared by its
// raw encoded bytes, never by decoded-value equality.
type keyTracker struct {
	mode    CborConformanceMode
	seen    *gomap.Map[string, struct{}]
	prevKey []byte
}

func newKeyTracker(mode CborConformanceMode) *keyTracker {
	if mode < ConformanceStrict {
		return nil
	}
	return &keyTracker{
		mode: mode,
		seen: gomap.NewHint[string, struct{}](0, keyStringsEqual, keyStringHash),
	}
}

// observe records the raw encoded bytes of a just-produced (read or
// written) map key and reports a conformance violation, if any.
func (t *keyTracker) observe(key []byte) error {
	if t == nil {
		return nil
	}

	if t.mode >= ConformanceStrict {
		k := string(key)
		if _, ok := t.seen.Get(k); ok {
			return ErrDuplicateKey
		}
		t.seen.Set(k, struct{}{})
	}

	if t.mode == ConformanceCanonical || t.mode == ConformanceCtap2Canonical {
		if t.prevKey != nil && !canonicalKeyLess(t.prevKey, key) {
			return ErrUnsortedKeys
		}
	}

	t.prevKey = append(t.prevKey[:0], key...)
	return nil
}

// canonicalKeyLess reports whether a sorts strictly before b under CBOR's
// canonical map-key ordering: shorter encodings first, ties broken
// bytewise. See DESIGN.md for why this module applies the shortest-first
// rule to both ConformanceCanonical and ConformanceCtap2Canonical.
func canonicalKeyLess(a, b []byte) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return bytes.Compare(a, b) < 0
}

func keyStringsEqual(a, b string) bool {
	return a == b
}

func keyStringHash(seed maphash.Seed, s string) uint64 {
	return maphash.String(seed, s)
}
