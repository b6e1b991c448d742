// Package ring implements a minimal intrusive circular doubly-linked list,
// generic over the element's payload type.
//
// Unlike container/list (which keeps a sentinel root element) this ring has
// no distinguished head: any element can serve as the entry point, and a
// ring of exactly one element points to itself. Concat splices two rings
// together; Isolate removes a single element and hands back whatever
// remains of its ring (or nil, if it was alone). That shape fits composing
// and decomposing wait sets: one element per condition, spliced into one
// ring per call to wait on them together.
package ring

// Elem is one node of a ring. The zero value is not usable; construct with
// New.
type Elem[T any] struct {
	next, prev *Elem[T]
	Value      T
}

// New returns a new ring of exactly one element, pointing to itself.
func New[T any](v T) *Elem[T] {
	e := &Elem[T]{Value: v}
	e.next = e
	e.prev = e
	return e
}

// Next returns the next element in the ring, wrapping around.
func (e *Elem[T]) Next() *Elem[T] { return e.next }

// Prev returns the previous element in the ring, wrapping around.
func (e *Elem[T]) Prev() *Elem[T] { return e.prev }

// Concat splices the ring containing b into the ring containing a,
// immediately after a, and returns a. Either argument may be nil, in which
// case the other is returned unchanged. If both are part of the same ring
// already, Concat panics is avoided by callers (Isolate first).
func Concat[T any](a, b *Elem[T]) *Elem[T] {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	aNext, bNext := a.next, b.next
	a.next = bNext
	bNext.prev = a
	b.next = aNext
	aNext.prev = b
	return a
}

// Isolate removes e from whatever ring it belongs to and returns the
// remainder of that ring (nil if e was the sole element). e itself becomes
// a singleton ring pointing to itself.
func Isolate[T any](e *Elem[T]) *Elem[T] {
	if e == nil {
		return nil
	}
	if e.next == e {
		return nil
	}
	prev, next := e.prev, e.next
	prev.next = next
	next.prev = prev
	e.next = e
	e.prev = e
	return next
}

// Direction selects which way Walk moves.
type Direction int

const (
	Next Direction = iota
	Prev
)

// Walk returns the element adjacent to e in the given direction. It never
// returns nil for a non-nil e (rings are always circular), so callers that
// want to stop after a full traversal must track the starting element
// themselves, or use Do.
func Walk[T any](e *Elem[T], dir Direction) *Elem[T] {
	if e == nil {
		return nil
	}
	if dir == Prev {
		return e.prev
	}
	return e.next
}

// Do calls f for every element of the ring starting at e, in Next order,
// stopping once the ring has been fully traversed. f may not mutate the
// ring's linkage (remove elements via a separate pass).
func Do[T any](e *Elem[T], f func(*Elem[T])) {
	if e == nil {
		return
	}
	cur := e
	for {
		f(cur)
		cur = cur.next
		if cur == e {
			return
		}
	}
}

// Len counts the elements in the ring containing e. O(n).
func Len[T any](e *Elem[T]) int {
	if e == nil {
		return 0
	}
	n := 0
	Do(e, func(*Elem[T]) { n++ })
	return n
}

// Contains reports whether target is reachable from start by walking Next.
// O(n).
func Contains[T any](start, target *Elem[T]) bool {
	if start == nil || target == nil {
		return false
	}
	found := false
	Do(start, func(e *Elem[T]) {
		if e == target {
			found = true
		}
	})
	return found
}
