package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/noah-isme/prepdeck-marketing-api/internal/models"
	"github.com/noah-isme/prepdeck-marketing-api/internal/repository"
	appErrors "github.com/noah-isme/prepdeck-marketing-api/pkg/errors"
)

// subscribeStep scripts one Subscribe call: either it fails, or the subscription delivers
// snaps in order and then fails with failWith. A nil failWith blocks until stopped.
type subscribeStep struct {
	err      error
	snaps    [][]models.Document
	failWith error
}

type fakeSource struct {
	mu         sync.Mutex
	script     []subscribeStep
	queries    []models.Query
	subscribed chan models.Query
}

func newFakeSource(steps ...subscribeStep) *fakeSource {
	return &fakeSource{script: steps, subscribed: make(chan models.Query, 32)}
}

func (f *fakeSource) Subscribe(ctx context.Context, q models.Query) (repository.Subscription, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	var step subscribeStep
	if len(f.script) > 0 {
		step = f.script[0]
		f.script = f.script[1:]
	}
	f.mu.Unlock()

	f.subscribed <- q
	if step.err != nil {
		return nil, step.err
	}
	return &fakeSubscription{ctx: ctx, snaps: step.snaps, failWith: step.failWith, stopped: make(chan struct{})}, nil
}

func (f *fakeSource) Queries() []models.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Query(nil), f.queries...)
}

type fakeSubscription struct {
	ctx      context.Context
	snaps    [][]models.Document
	failWith error
	stopped  chan struct{}
	once     sync.Once
}

func (s *fakeSubscription) Next() ([]models.Document, error) {
	if len(s.snaps) > 0 {
		docs := s.snaps[0]
		s.snaps = s.snaps[1:]
		return docs, nil
	}
	if s.failWith != nil {
		err := s.failWith
		s.failWith = nil
		return nil, err
	}
	select {
	case <-s.ctx.Done():
	case <-s.stopped:
	}
	return nil, repository.ErrSubscriptionClosed
}

func (s *fakeSubscription) Stop() {
	s.once.Do(func() { close(s.stopped) })
}

// docOf builds a document that decodes to v and exposes fields for client-side sorting.
func docOf[T any](id string, v T, fields map[string]any) models.Document {
	return models.NewDocument(id, fields, func(dst any) error {
		p, ok := dst.(*T)
		if !ok {
			return fmt.Errorf("cannot decode %T into %T", v, dst)
		}
		*p = v
		return nil
	})
}

// memoryCacheRepo is an in-memory CacheRepository that round-trips values through JSON.
type memoryCacheRepo struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCacheRepo) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memoryCacheRepo) snapshot(t *testing.T, key string) (models.CachedSnapshot, bool) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return models.CachedSnapshot{}, false
	}
	var snap models.CachedSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap, true
}

func (m *memoryCacheRepo) put(t *testing.T, key string, data any, ts time.Time) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := m.Set(context.Background(), key, models.CachedSnapshot{Data: raw, Timestamp: ts.UnixMilli()}, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
}

func expectQuery(t *testing.T, src *fakeSource) models.Query {
	t.Helper()
	select {
	case q := <-src.subscribed:
		return q
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscribe")
	}
	return models.Query{}
}

func expectNoQuery(t *testing.T, src *fakeSource) {
	t.Helper()
	select {
	case q := <-src.subscribed:
		t.Fatalf("unexpected subscribe: %s", q)
	case <-time.After(50 * time.Millisecond):
	}
}

// waitForState reads watch updates until one satisfies match.
func waitForState[T any](t *testing.T, ch <-chan LoaderState[T], match func(LoaderState[T]) bool) LoaderState[T] {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				t.Fatal("watch channel closed")
			}
			if match(st) {
				return st
			}
		case <-deadline:
			t.Fatal("timed out waiting for loader state")
		}
	}
}

func boolPtr(b bool) *bool {
	return &b
}
