// Package dedup collapses concurrent identical in-flight fetches into
// a single call whose result all waiters share.
package dedup

import "golang.org/x/sync/singleflight"

// Deduplicator keys in-flight operations of one result type.
type Deduplicator[T any] struct {
	group singleflight.Group
}

// New creates an empty deduplicator.
func New[T any]() *Deduplicator[T] {
	return &Deduplicator[T]{}
}

// Do runs fn once per concurrent key, handing every concurrent caller
// the same result. shared reports whether the result was given to more
// than one caller.
func (d *Deduplicator[T]) Do(key string, fn func() (T, error)) (v T, shared bool, err error) {
	res, err, shared := d.group.Do(key, func() (interface{}, error) {
		return fn()
	})
	if res != nil {
		v = res.(T)
	}
	return v, shared, err
}

// Forget drops the in-flight entry for key so the next Do starts its
// own call instead of joining one already known to be stale.
func (d *Deduplicator[T]) Forget(key string) {
	d.group.Forget(key)
}
