package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/bnema/taskwatch/internal/domain"
	"github.com/bnema/taskwatch/internal/ports"
)

type flushRun struct {
	done  chan struct{}
	count int
	err   error
}

type ingestBody struct {
	Data string `json:"data"`
}

// Outbox holds captured records under numeric keys until they are sent.
type Outbox struct {
	mu        sync.Mutex
	running   *flushRun
	enqueueMu sync.Mutex
	store     ports.KeyValueStore
	sessions  *SessionStore
	pipeline  *RequestPipeline
	endpoints Endpoints
	clock     ports.Clock
	logger    *slog.Logger
}

func NewOutbox(store ports.KeyValueStore, sessions *SessionStore, pipeline *RequestPipeline, endpoints Endpoints, clock ports.Clock, logger *slog.Logger) *Outbox {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Outbox{
		store:     store,
		sessions:  sessions,
		pipeline:  pipeline,
		endpoints: endpoints.withDefaults(),
		clock:     clock,
		logger:    logger,
	}
}

// Flush sends every queued item concurrently and removes the ones whose
// delivery was attempted. A Flush started while another runs waits for it and
// returns its result.
func (o *Outbox) Flush(ctx context.Context) (int, error) {
	o.mu.Lock()
	run := o.running
	if run == nil {
		run = &flushRun{done: make(chan struct{})}
		o.running = run
		o.mu.Unlock()

		func() {
			defer func() {
				o.mu.Lock()
				o.running = nil
				o.mu.Unlock()
				close(run.done)
			}()
			run.count, run.err = o.flush(ctx)
		}()
		return run.count, run.err
	}
	o.mu.Unlock()

	select {
	case <-run.done:
		return run.count, run.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (o *Outbox) flush(ctx context.Context) (int, error) {
	loggedIn, err := o.sessions.LoggedIn(ctx)
	if err != nil {
		return 0, err
	}
	if !loggedIn {
		o.logger.Debug("outbox flush skipped, not logged in")
		return 0, nil
	}

	items, err := o.Pending(ctx)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	attempted := make([]bool, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			attempted[i] = o.send(ctx, item)
		}()
	}
	wg.Wait()

	var keys []string
	for i, item := range items {
		if attempted[i] {
			keys = append(keys, domain.OutboxKey(item.Key))
		}
	}
	if len(keys) == 0 {
		return 0, ctx.Err()
	}
	if err := o.store.Remove(ctx, keys...); err != nil {
		return 0, fmt.Errorf("remove flushed items: %w", err)
	}
	o.logger.Info("outbox flushed", "sent", len(keys), "kept", len(items)-len(keys))
	return len(keys), nil
}

// send reports whether the item's delivery was attempted to completion. An
// authentication failure or a cancelled context leaves the item queued.
func (o *Outbox) send(ctx context.Context, item domain.OutboxItem) bool {
	resp, err := o.pipeline.Execute(ctx, Request{
		Method: http.MethodPost,
		Path:   o.endpoints.Ingest,
		Body:   ingestBody{Data: item.Data},
	})
	switch {
	case err == nil && resp.Soft:
		o.logger.Warn("outbox item rejected", "key", item.Key, "status", resp.Status)
		return true
	case err == nil:
		return true
	case IsAuthFailure(err), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		o.logger.Warn("outbox item not delivered", "key", item.Key, "error", err)
		return true
	}
}

// Pending lists queued items in key order.
func (o *Outbox) Pending(ctx context.Context) ([]domain.OutboxItem, error) {
	keys, err := o.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}

	numeric := make([]int, 0, len(keys))
	for _, key := range keys {
		if n, ok := domain.ParseOutboxKey(key); ok {
			numeric = append(numeric, n)
		}
	}
	sort.Ints(numeric)

	items := make([]domain.OutboxItem, 0, len(numeric))
	for _, n := range numeric {
		raw, err := o.store.Get(ctx, domain.OutboxKey(n))
		if err != nil {
			if errors.Is(err, domain.ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("get outbox item %d: %w", n, err)
		}
		items = append(items, domain.DecodeOutboxItem(n, raw))
	}
	return items, nil
}

// Enqueue stores data under the next free numeric key. A zero ttl never
// expires.
func (o *Outbox) Enqueue(ctx context.Context, data string, ttl time.Duration) (int, error) {
	o.enqueueMu.Lock()
	defer o.enqueueMu.Unlock()

	keys, err := o.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list keys: %w", err)
	}
	next := 0
	for _, key := range keys {
		if n, ok := domain.ParseOutboxKey(key); ok && n >= next {
			next = n + 1
		}
	}

	item := domain.OutboxItem{Key: next, Data: data}
	if ttl > 0 {
		item.Expiry = o.clock.Now().Add(ttl)
	}
	encoded, err := domain.EncodeOutboxItem(item)
	if err != nil {
		return 0, fmt.Errorf("encode outbox item: %w", err)
	}
	if err := o.store.Set(ctx, domain.OutboxKey(next), encoded); err != nil {
		return 0, fmt.Errorf("store outbox item: %w", err)
	}
	return next, nil
}

// SweepExpired removes every stored value whose expiry has passed, whatever
// its key.
func (o *Outbox) SweepExpired(ctx context.Context) (int, error) {
	keys, err := o.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list keys: %w", err)
	}

	now := o.clock.Now()
	var expired []string
	for _, key := range keys {
		raw, err := o.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, domain.ErrKeyNotFound) {
				continue
			}
			return 0, fmt.Errorf("get %s: %w", key, err)
		}
		if expiry, ok := domain.ExpiryOf(raw); ok && expiry.Before(now) {
			expired = append(expired, key)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}
	if err := o.store.Remove(ctx, expired...); err != nil {
		return 0, fmt.Errorf("remove expired keys: %w", err)
	}
	o.logger.Info("expired entries swept", "count", len(expired))
	return len(expired), nil
}
