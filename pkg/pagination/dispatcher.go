package pagination

import "sync"

type subscriber[T any] struct {
	id uint64
	fn func(Snapshot[T])
}

type delivery[T any] struct {
	snap Snapshot[T]
	// target 0 means every subscriber
	target uint64
}

// dispatcher delivers snapshots to subscribers in publication order on a
// single goroutine. The queue is unbounded so publishing never blocks the
// Pager; callbacks run without any lock held and may call back into it.
// Once unsubscribe returns no further callback starts for that subscriber; a
// callback already running when it is called runs to completion.
type dispatcher[T any] struct {
	mu     sync.Mutex
	queue  []delivery[T]
	subs   []subscriber[T]
	nextID uint64
	closed bool

	signal chan struct{}
	done   chan struct{}
}

func newDispatcher[T any]() *dispatcher[T] {
	d := &dispatcher[T]{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher[T]) run() {
	for {
		select {
		case <-d.signal:
			d.drain()
		case <-d.done:
			d.drain()
			return
		}
	}
}

func (d *dispatcher[T]) drain() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		next := d.queue[0]
		d.queue[0] = delivery[T]{}
		d.queue = d.queue[1:]

		var targets []uint64
		for _, s := range d.subs {
			if next.target == 0 || next.target == s.id {
				targets = append(targets, s.id)
			}
		}
		d.mu.Unlock()

		for _, id := range targets {
			// An earlier callback may have unsubscribed this one
			if fn, ok := d.lookup(id); ok {
				fn(next.snap)
			}
		}
	}
}

func (d *dispatcher[T]) lookup(id uint64) (func(Snapshot[T]), bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.subs {
		if s.id == id {
			return s.fn, true
		}
	}
	return nil, false
}

func (d *dispatcher[T]) publish(snap Snapshot[T], target uint64) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, delivery[T]{snap: snap, target: target})
	d.mu.Unlock()

	select {
	case d.signal <- struct{}{}:
	default:
	}
}

func (d *dispatcher[T]) subscribe(fn func(Snapshot[T])) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.subs = append(d.subs, subscriber[T]{id: d.nextID, fn: fn})
	return d.nextID
}

func (d *dispatcher[T]) unsubscribe(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, s := range d.subs {
		if s.id == id {
			d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
			return
		}
	}
}

// close stops the dispatcher after already queued snapshots are delivered.
// Safe to call from a subscriber callback.
func (d *dispatcher[T]) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.done)
}
