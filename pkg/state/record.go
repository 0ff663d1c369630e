package state

// Record is a mapping from keys to state values.
type Record map[string]any

// Clone returns a shallow copy of r. A nil record clones to an empty one.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge returns a copy of r with every key of partial applied over it.
func (r Record) Merge(partial Record) Record {
	out := make(Record, len(r)+len(partial))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = v
	}
	return out
}

// Value returns r[key] as a T.
func Value[T any](r Record, key string) (T, bool) {
	v, ok := r[key].(T)
	return v, ok
}

// ValueOr returns r[key] as a T, or fallback when the key is absent or holds
// another type.
func ValueOr[T any](r Record, key string, fallback T) T {
	if v, ok := Value[T](r, key); ok {
		return v
	}
	return fallback
}
