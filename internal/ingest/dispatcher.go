// Package ingest implements the connector + worker-pool concurrency
// model: one long-lived connector per upstream protocol feeding a
// sharded pool of decoder workers over bounded queues, with a sender
// that blocks (not drops) when a shard's queue is full.
package ingest

import (
	"context"
	"hash/fnv"
)

// Dispatcher runs a fixed number of worker goroutines, each draining its
// own bounded queue, and routes work items to a queue by a hash of a
// caller-supplied key so that every item sharing a key is always handled
// by the same worker — the mechanism that preserves per-aircraft (and
// per-receiver) ordering.
type Dispatcher[T any] struct {
	queues  []chan T
	handler func(context.Context, T)
}

// NewDispatcher builds a Dispatcher with workerCount shards, each with a
// queue of the given capacity, and starts the worker goroutines
// immediately against ctx.
func NewDispatcher[T any](ctx context.Context, workerCount, queueCapacity int, handler func(context.Context, T)) *Dispatcher[T] {
	d := &Dispatcher[T]{
		queues:  make([]chan T, workerCount),
		handler: handler,
	}
	for i := range d.queues {
		d.queues[i] = make(chan T, queueCapacity)
		go d.run(ctx, d.queues[i])
	}
	return d
}

func (d *Dispatcher[T]) run(ctx context.Context, q chan T) {
	for {
		select {
		case item := <-q:
			d.handler(ctx, item)
		case <-ctx.Done():
			return
		}
	}
}

// Send routes item to the shard selected by key, blocking until there is
// room (never dropping, only stalling the producer) or ctx is
// cancelled.
func (d *Dispatcher[T]) Send(ctx context.Context, key string, item T) error {
	q := d.queues[shardIndex(key, len(d.queues))]
	select {
	case q <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendUint32 is a convenience for ICAO-keyed work (Beast/SBS), avoiding a
// string conversion on the hot path.
func (d *Dispatcher[T]) SendUint32(ctx context.Context, key uint32, item T) error {
	q := d.queues[int(key)%len(d.queues)]
	select {
	case q <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Depth reports the current occupancy of one shard's queue, for the
// queue_depth gauge.
func (d *Dispatcher[T]) Depth(shard int) int {
	return len(d.queues[shard])
}

// Shards returns the number of worker shards.
func (d *Dispatcher[T]) Shards() int { return len(d.queues) }

func shardIndex(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32()) % n
}
