// Package pqueue implements a delta-encoded circular priority queue: an
// intrusive circular doubly-linked list where every node stores only the
// priority *delta* from its predecessor, except the head,
// whose delta is its absolute effective priority. That makes remove-max O(1)
// (pop the head, fold its delta into the new head) at the cost of O(n)
// insert (walk until the right slot is found).
//
// The effective priority of the k-th node from the head is
// head.delta - sum(delta_1..delta_k), i.e. it strictly decreases walking
// away from the head; popping always returns the maximum.
package pqueue

// Elem is one node of a queue, carrying an arbitrary payload. The zero
// value is not usable outside of being embedded un-initialized in a larger
// struct before first use.
type Elem[T any] struct {
	next, prev *Elem[T]
	delta      int
	inQueue    bool
	Value      T
}

// Queue is a priority queue of *Elem[T]. The zero value is an empty queue.
type Queue[T any] struct {
	head *Elem[T]
	n    int
}

// Len returns the number of elements in the queue. O(1).
func (q *Queue[T]) Len() int { return q.n }

// Head returns the maximum-priority element without removing it, or nil if
// the queue is empty.
func (q *Queue[T]) Head() *Elem[T] { return q.head }

// Tail returns the minimum-priority element (walking q_prev from the head),
// or nil if the queue is empty. O(1): it's the head's predecessor.
func (q *Queue[T]) Tail() *Elem[T] {
	if q.head == nil {
		return nil
	}
	return q.head.prev
}

func effPrio[T any](q *Queue[T], e *Elem[T]) int {
	p := q.head.delta
	for c := q.head; c != e; c = c.next {
		p -= c.next.delta
	}
	return p
}

// Insert adds e to the queue at the given effective priority. O(n).
func (q *Queue[T]) Insert(prio int, e *Elem[T]) {
	if e.inQueue {
		panic("pqueue: insert: element already queued")
	}
	e.inQueue = true
	switch {
	case q.head == nil:
		e.next, e.prev, e.delta = e, e, prio
		q.head = e
	case q.head.delta < prio:
		// new head
		e.prev = q.head.prev
		e.next = q.head
		e.prev.next = e
		e.next.prev = e
		e.delta = prio
		e.next.delta = prio - q.head.delta
		q.head = e
	default:
		c := q.head
		p := c.delta
		for p-c.next.delta >= prio && c.next != q.head {
			c = c.next
			p -= c.delta
		}
		e.prev = c
		e.next = c.next
		e.prev.next = e
		e.next.prev = e
		e.delta = p - prio
		if e.next != q.head {
			e.next.delta -= e.delta
		}
	}
	q.n++
}

// Delmax removes and returns the maximum-priority element. O(1). Returns
// nil if the queue is empty.
func (q *Queue[T]) Delmax() *Elem[T] {
	if q.head == nil {
		return nil
	}
	return q.Delete(q.head)
}

// Delete removes e from the queue. e must currently be in this queue. O(1)
// if e is the head, else O(n) only insofar as callers must already know
// e's location (the unlink itself is O(1); this queue does not do a
// membership scan).
func (q *Queue[T]) Delete(e *Elem[T]) *Elem[T] {
	if !e.inQueue {
		panic("pqueue: delete: element not queued")
	}
	if e.next == e {
		q.head = nil
	} else {
		e.prev.next = e.next
		e.next.prev = e.prev
		if e == q.head {
			e.next.delta = e.delta - e.next.delta
			q.head = e.next
		} else if e.next != q.head {
			e.next.delta += e.delta
		}
	}
	e.next, e.prev, e.delta = nil, nil, 0
	e.inQueue = false
	q.n--
	return e
}

// Favorite re-inserts t at one above the current head's effective
// priority, so it becomes the new head (runs next). O(n) (a delete plus an
// insert).
func (q *Queue[T]) Favorite(e *Elem[T]) {
	if q.head == nil || q.n == 1 {
		return
	}
	prio := q.head.delta + 1
	q.Delete(e)
	q.Insert(prio, e)
}

// Increase ages every element in the queue by incrementing the head's
// delta by one, preserving all relative orderings. O(1). Used to prevent
// starvation: repeated calls monotonically raise every node's effective
// priority until it is eventually popped.
func (q *Queue[T]) Increase() {
	if q.head == nil {
		return
	}
	q.head.delta++
}

// Walk returns the element adjacent to e within this queue, or nil past
// either end (unlike ring.Walk, a PQ walk is not meant to loop forever).
func Walk[T any](q *Queue[T], e *Elem[T], next bool) *Elem[T] {
	if e == nil {
		return nil
	}
	if next {
		if e.next == q.head {
			return nil
		}
		return e.next
	}
	if e == q.head {
		return nil
	}
	return e.prev
}

// Contains reports whether e is currently linked into this queue. O(n).
func (q *Queue[T]) Contains(e *Elem[T]) bool {
	if q.head == nil || e == nil {
		return false
	}
	for c := q.head; ; c = c.next {
		if c == e {
			return true
		}
		if c.next == q.head {
			return false
		}
	}
}

// Elements returns every element currently in the queue, head first. O(n).
func (q *Queue[T]) Elements() []*Elem[T] {
	if q.head == nil {
		return nil
	}
	out := make([]*Elem[T], 0, q.n)
	for c := q.head; ; c = c.next {
		out = append(out, c)
		if c.next == q.head {
			break
		}
	}
	return out
}

// EffectivePriority recomputes (O(n)) the effective priority of e, which
// must belong to this queue. It's provided for diagnostics and tests, not
// the hot path.
func (q *Queue[T]) EffectivePriority(e *Elem[T]) int {
	if !q.Contains(e) {
		panic("pqueue: effective priority: element not queued")
	}
	return effPrio(q, e)
}
