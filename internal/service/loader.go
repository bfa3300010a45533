package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/noah-isme/prepdeck-marketing-api/internal/models"
	"github.com/noah-isme/prepdeck-marketing-api/internal/repository"
)

// Loader defaults.
const (
	DefaultLoaderMaxRetries = 3
	DefaultLoaderRetryBase  = time.Second
)

// Where the current loader state came from.
const (
	SourceNone  = ""
	SourceCache = "cache"
	SourceLive  = "live"
	SourceEmpty = "empty"
)

// DocumentSource opens live queries.
type DocumentSource interface {
	Subscribe(ctx context.Context, q models.Query) (repository.Subscription, error)
}

// LoaderState is an immutable view of a loader's data.
type LoaderState[T any] struct {
	Items     []T
	Loading   bool
	Source    string
	UpdatedAt time.Time
}

// LoaderParams configures a Loader. Cache freshness is owned by Cache.
type LoaderParams[T any] struct {
	Key    string
	Query  models.Query
	Decode func(models.Document) (T, error)
	// Filter keeps items for which it returns true. Nil keeps everything.
	Filter func(T) bool
	// Less sorts items client-side (stable). Nil keeps source order, except after the
	// unsorted fallback where the original OrderBy is applied by field.
	Less func(a, b T) bool

	// MaxRetries bounds reopen attempts after failures; zero means the default of 3.
	MaxRetries int
	RetryBase  time.Duration

	Source  DocumentSource
	Cache   *CacheService
	Clock   clockwork.Clock
	Metrics *MetricsService
	Logger  *zap.Logger
}

// Loader keeps one cached live subscription to a resource: it paints from a fresh cache entry,
// then applies every live snapshot, retrying failed subscriptions with linear backoff.
type Loader[T any] struct {
	p LoaderParams[T]

	mu       sync.Mutex
	state    LoaderState[T]
	watchers map[int]chan LoaderState[T]
	nextID   int
	started  bool
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

type loaderItem[T any] struct {
	value  T
	fields map[string]any
}

// NewLoader builds a loader. It does nothing until Start.
func NewLoader[T any](p LoaderParams[T]) *Loader[T] {
	if p.MaxRetries <= 0 {
		p.MaxRetries = DefaultLoaderMaxRetries
	}
	if p.RetryBase <= 0 {
		p.RetryBase = DefaultLoaderRetryBase
	}
	if p.Clock == nil {
		p.Clock = clockwork.NewRealClock()
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Decode == nil {
		p.Decode = func(doc models.Document) (T, error) { return decodeDocument[T](doc, nil) }
	}
	p.Logger = p.Logger.With(zap.String("resource", p.Key))
	return &Loader[T]{
		p:        p,
		state:    LoaderState[T]{Loading: true},
		watchers: make(map[int]chan LoaderState[T]),
		done:     make(chan struct{}),
	}
}

// Key returns the logical resource name.
func (l *Loader[T]) Key() string {
	return l.p.Key
}

// Start runs the loader in its own goroutine. Subsequent calls are no-ops.
func (l *Loader[T]) Start(ctx context.Context) {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	ctx, l.cancel = context.WithCancel(ctx)
	l.mu.Unlock()

	go l.run(ctx)
}

// Stop cancels the subscription and any pending retry, waits for the loader to exit and closes
// every watch channel. It is idempotent.
func (l *Loader[T]) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		started := l.started
		cancel := l.cancel
		l.mu.Unlock()

		if started {
			cancel()
			<-l.done
		}

		l.mu.Lock()
		for id, ch := range l.watchers {
			delete(l.watchers, id)
			close(ch)
		}
		l.mu.Unlock()
	})
}

// Done is closed once the loader has exited.
func (l *Loader[T]) Done() <-chan struct{} {
	return l.done
}

// State returns a copy of the current state.
func (l *Loader[T]) State() LoaderState[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.copyState()
}

// Watch returns a channel carrying the current state followed by every update. Slow receivers only
// see the latest state. The returned cancel func is idempotent.
func (l *Loader[T]) Watch() (<-chan LoaderState[T], func()) {
	ch := make(chan LoaderState[T], 1)

	l.mu.Lock()
	id := l.nextID
	l.nextID++
	ch <- l.copyState()
	select {
	case <-l.done:
		close(ch)
		l.mu.Unlock()
		return ch, func() {}
	default:
	}
	l.watchers[id] = ch
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if w, ok := l.watchers[id]; ok {
				delete(l.watchers, id)
				close(w)
			}
		})
	}
}

// run executes the loader until ctx is done or retries are exhausted.
func (l *Loader[T]) run(ctx context.Context) {
	defer close(l.done)

	var cached []T
	if ts, ok := l.p.Cache.LoadFresh(ctx, l.p.Key, &cached); ok {
		l.publish(LoaderState[T]{Items: cached, Loading: true, Source: SourceCache, UpdatedAt: ts})
	}

	query := l.p.Query
	var fallbackOrder *models.Order
	fallbackUsed := false
	backoff := l.newBackoff()

	for {
		err := l.consume(ctx, query, fallbackOrder, func() { backoff = l.newBackoff() })
		if ctx.Err() != nil {
			return
		}

		if !fallbackUsed && query.OrderBy != nil && repository.IsFallbackEligible(err) {
			fallbackUsed = true
			fallbackOrder = query.OrderBy
			query = query.Unsorted()
			l.p.Metrics.RecordLoaderFallback(l.p.Key)
			l.p.Logger.Warn("sorted query rejected, falling back to client-side sort",
				zap.String("order_by", fallbackOrder.Field),
				zap.Error(err),
			)
			continue
		}

		delay, stop := backoff.Next()
		if stop {
			l.p.Metrics.RecordLoaderGiveUp(l.p.Key)
			l.p.Logger.Error("subscription retries exhausted", zap.Int("max_retries", l.p.MaxRetries), zap.Error(err))
			l.publish(LoaderState[T]{Loading: false, Source: SourceEmpty, UpdatedAt: l.p.Clock.Now()})
			return
		}

		l.p.Metrics.RecordLoaderRetry(l.p.Key)
		l.p.Logger.Warn("subscription failed, retrying", zap.Duration("delay", delay), zap.Error(err))

		timer := l.p.Clock.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}
	}
}

func (l *Loader[T]) newBackoff() retry.Backoff {
	return LinearBackoff(l.p.RetryBase, l.p.MaxRetries)
}

// consume applies snapshots from one subscription until it fails.
func (l *Loader[T]) consume(ctx context.Context, q models.Query, fallbackOrder *models.Order, onSnapshot func()) error {
	if l.p.Source == nil {
		return errNoSource
	}
	sub, err := l.p.Source.Subscribe(ctx, q)
	if err != nil {
		return err
	}
	defer sub.Stop()

	for {
		docs, err := sub.Next()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		items := l.apply(docs, fallbackOrder)
		now := l.p.Clock.Now()
		l.publish(LoaderState[T]{Items: items, Loading: false, Source: SourceLive, UpdatedAt: now})
		l.p.Cache.Store(ctx, l.p.Key, items)
		l.p.Metrics.RecordLoaderSnapshot(l.p.Key)
		onSnapshot()
	}
}

// apply decodes, filters and sorts a snapshot.
func (l *Loader[T]) apply(docs []models.Document, fallbackOrder *models.Order) []T {
	decoded := make([]loaderItem[T], 0, len(docs))
	for _, doc := range docs {
		value, err := l.p.Decode(doc)
		if err != nil {
			l.p.Logger.Warn("skipping undecodable document", zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		if l.p.Filter != nil && !l.p.Filter(value) {
			continue
		}
		decoded = append(decoded, loaderItem[T]{value: value, fields: doc.Fields})
	}

	switch {
	case l.p.Less != nil:
		sort.SliceStable(decoded, func(i, j int) bool { return l.p.Less(decoded[i].value, decoded[j].value) })
	case fallbackOrder != nil:
		field := fallbackOrder.Field
		desc := fallbackOrder.Direction == models.Desc
		sort.SliceStable(decoded, func(i, j int) bool {
			c := compareFieldValues(decoded[i].fields[field], decoded[j].fields[field])
			if desc {
				return c > 0
			}
			return c < 0
		})
	}

	items := make([]T, len(decoded))
	for i, d := range decoded {
		items[i] = d.value
	}
	return items
}

func (l *Loader[T]) publish(st LoaderState[T]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = st
	snapshot := l.copyState()
	for _, ch := range l.watchers {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

// copyState must be called with l.mu held.
func (l *Loader[T]) copyState() LoaderState[T] {
	st := l.state
	if st.Items != nil {
		st.Items = append([]T(nil), st.Items...)
	}
	return st
}

// compareFieldValues orders raw document values: nil first, then by natural order of the type.
// Strings that parse as RFC 3339 timestamps compare as times.
func compareFieldValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	if at, ok := asTime(a); ok {
		if bt, ok := asTime(b); ok {
			return at.Compare(bt)
		}
	}
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// decodeDocument is the default Decode: it fills a T from the document and keeps the ID.
func decodeDocument[T any](doc models.Document, setID func(*T, string)) (T, error) {
	var v T
	if err := doc.DataTo(&v); err != nil {
		return v, err
	}
	if setID != nil {
		setID(&v, doc.ID)
	}
	return v, nil
}

var errNoSource = errors.New("no document source configured")
