package cothread

import "github.com/joeycumines/go-cothread/internal/ring"

// Port is a named or anonymous message queue that green threads Put to and
// Get from. Ports double as a simple RPC mechanism via Envelope: a request
// carries its own reply port, and the handler Replies on it.
type Port struct {
	name    string
	queue   []any
	regLink *ring.Elem[*Port]
}

// Envelope wraps a request body together with the port the sender expects
// a reply on.
type Envelope struct {
	Body    any
	ReplyTo *Port
}

// PortCreate registers a new port. An empty name creates an anonymous port
// that can only be reached via the handle returned here (never through
// PortFind).
func (rt *Runtime) PortCreate(name string) (*Port, error) {
	if name != "" {
		if _, err := rt.PortFind(name); err == nil {
			return nil, ErrInvalid
		}
	}
	p := &Port{name: name}
	p.regLink = ring.New(p)
	rt.portRegistry = ring.Concat(rt.portRegistry, p.regLink)
	return p, nil
}

// PortDestroy unregisters p. Threads already blocked in Get(p) are left
// waiting forever; callers are expected to drain or cancel them first.
func (rt *Runtime) PortDestroy(p *Port) error {
	if p == nil || p.regLink == nil {
		return ErrInvalid
	}
	rt.portRegistry = ring.Isolate(p.regLink)
	p.regLink = nil
	return nil
}

// PortFind looks up a named port registered with PortCreate.
func (rt *Runtime) PortFind(name string) (*Port, error) {
	if name == "" || rt.portRegistry == nil {
		return nil, ErrNoSuchPort
	}
	var found *Port
	ring.Do(rt.portRegistry, func(e *ring.Elem[*Port]) {
		if found == nil && e.Value.name == name {
			found = e.Value
		}
	})
	if found == nil {
		return nil, ErrNoSuchPort
	}
	return found, nil
}

func (p *Port) pendingCount() int { return len(p.queue) }

// Pending reports how many messages are queued on p without consuming any.
func (rt *Runtime) Pending(p *Port) int { return p.pendingCount() }

// Put enqueues msg on p. Never blocks: the queue is unbounded.
func (rt *Runtime) Put(p *Port, msg any) error {
	if p == nil {
		return ErrInvalid
	}
	p.queue = append(p.queue, msg)
	return nil
}

// Get blocks until p has a pending message, then dequeues and returns it.
func (rt *Runtime) Get(p *Port) (any, error) {
	if p == nil {
		return nil, ErrInvalid
	}
	for len(p.queue) == 0 {
		e, err := NewMsgEvent(p)
		if err != nil {
			return nil, err
		}
		if _, err := rt.Wait(e); err != nil {
			return nil, err
		}
	}
	msg := p.queue[0]
	p.queue = p.queue[1:]
	return msg, nil
}

// Reply is a convenience for the request/reply pattern: it Puts body on
// env's reply port.
func (rt *Runtime) Reply(env Envelope, body any) error {
	if env.ReplyTo == nil {
		return ErrInvalid
	}
	return rt.Put(env.ReplyTo, body)
}
