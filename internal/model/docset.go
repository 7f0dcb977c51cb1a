package model

// DocumentSet maps document keys to snapshots for one deal. A missing key or
// nil snapshot means the document has not been generated yet. The set is
// owned by the caller; engine operations never retain or mutate it, they
// return fresh sets instead.
type DocumentSet map[DocKey]*DocumentSnapshot

// Clone returns a deep copy of the set.
func (d DocumentSet) Clone() DocumentSet {
	out := make(DocumentSet, len(d))
	for key, snap := range d {
		out[key] = snap.Clone()
	}
	return out
}

// Present returns the keys with a non-nil snapshot, in canonical order.
func (d DocumentSet) Present() []DocKey {
	var keys []DocKey
	for _, key := range AllDocKeys() {
		if snap, ok := d[key]; ok && snap != nil {
			keys = append(keys, key)
		}
	}
	return keys
}

// Get returns the snapshot for a key, or nil if absent.
func (d DocumentSet) Get(key DocKey) *DocumentSnapshot {
	snap, ok := d[key]
	if !ok {
		return nil
	}
	return snap
}
