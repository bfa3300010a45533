package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/prepdeck-marketing-api/internal/models"
)

// DocumentsChannel is the NOTIFY channel the documents trigger publishes collection names on.
const DocumentsChannel = "documents_changed"

const (
	pqInsufficientPrivilege = "42501"
	pqUniqueViolation       = "23505"
)

// Notifier is the part of *pq.Listener the source depends on.
type Notifier interface {
	NotificationChannel() <-chan *pq.Notification
}

// PostgresSource serves live queries from a jsonb documents table. Each subscription re-runs its
// query whenever a NOTIFY names its collection, or after the listener reconnects.
type PostgresSource struct {
	db       *sqlx.DB
	notifier Notifier
	logger   *zap.Logger

	mu   sync.Mutex
	subs map[*pgSubscription]struct{}
}

// NewPostgresSource constructs the source. Call Run to start dispatching notifications.
func NewPostgresSource(db *sqlx.DB, notifier Notifier, logger *zap.Logger) *PostgresSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresSource{db: db, notifier: notifier, logger: logger, subs: make(map[*pgSubscription]struct{})}
}

// Run fans notifications out to subscriptions until ctx is done.
func (s *PostgresSource) Run(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	ch := s.notifier.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			// A nil notification means the connection was re-established and events may have been lost.
			collection := ""
			if n != nil {
				collection = n.Extra
			}
			s.dispatch(collection)
		}
	}
}

func (s *PostgresSource) dispatch(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		if collection == "" || sub.collection == collection {
			sub.signal()
		}
	}
}

// Subscribe registers a live query.
func (s *PostgresSource) Subscribe(ctx context.Context, q models.Query) (Subscription, error) {
	query, args, err := buildDocumentsQuery(q)
	if err != nil {
		return nil, err
	}
	collection := q.Collection
	if q.DocumentPath != "" {
		collection, _, _ = strings.Cut(q.DocumentPath, "/")
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &pgSubscription{
		source:     s,
		collection: collection,
		query:      query,
		args:       args,
		ctx:        ctx,
		cancel:     cancel,
		changed:    make(chan struct{}, 1),
	}
	sub.changed <- struct{}{}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	return sub, nil
}

func (s *PostgresSource) remove(sub *pgSubscription) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

type documentRow struct {
	ID   string `db:"id"`
	Data []byte `db:"data"`
}

type pgSubscription struct {
	source     *PostgresSource
	collection string
	query      string
	args       []interface{}

	ctx     context.Context
	cancel  context.CancelFunc
	changed chan struct{}
	once    sync.Once
}

func (s *pgSubscription) signal() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *pgSubscription) Next() ([]models.Document, error) {
	select {
	case <-s.ctx.Done():
		return nil, ErrSubscriptionClosed
	case <-s.changed:
	}

	var rows []documentRow
	if err := s.source.db.SelectContext(s.ctx, &rows, s.query, s.args...); err != nil {
		if s.ctx.Err() != nil {
			return nil, ErrSubscriptionClosed
		}
		return nil, classifyPostgresError(err)
	}

	docs := make([]models.Document, 0, len(rows))
	for _, row := range rows {
		fields := make(map[string]any)
		if err := json.Unmarshal(row.Data, &fields); err != nil {
			s.source.logger.Warn("skipping undecodable document",
				zap.String("collection", s.collection),
				zap.String("id", row.ID),
				zap.Error(err),
			)
			continue
		}
		docs = append(docs, models.NewDocument(row.ID, fields, decodeTagged(fields)))
	}
	return docs, nil
}

func (s *pgSubscription) Stop() {
	s.once.Do(func() {
		s.cancel()
		s.source.remove(s)
	})
}

// buildDocumentsQuery renders q as SQL over documents(collection, id, data jsonb, updated_at).
// Only equality filters are supported.
func buildDocumentsQuery(q models.Query) (string, []interface{}, error) {
	if q.DocumentPath != "" {
		collection, id, ok := strings.Cut(q.DocumentPath, "/")
		if !ok || collection == "" || id == "" || strings.Contains(id, "/") {
			return "", nil, fmt.Errorf("%w: invalid document path %q", ErrUnsupportedQuery, q.DocumentPath)
		}
		return "SELECT id, data FROM documents WHERE collection = $1 AND id = $2", []interface{}{collection, id}, nil
	}
	if q.Collection == "" {
		return "", nil, fmt.Errorf("%w: collection is required", ErrUnsupportedQuery)
	}

	var sb strings.Builder
	args := []interface{}{q.Collection}
	sb.WriteString("SELECT id, data FROM documents WHERE collection = $1")

	for _, f := range q.Filters {
		if f.Op != "" && f.Op != "==" {
			return "", nil, fmt.Errorf("%w: operator %q", ErrUnsupportedQuery, f.Op)
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return "", nil, fmt.Errorf("encode filter %s: %w", f.Field, err)
		}
		args = append(args, f.Field, string(value))
		fmt.Fprintf(&sb, " AND data -> $%d::text = $%d::jsonb", len(args)-1, len(args))
	}

	if q.OrderBy != nil {
		args = append(args, q.OrderBy.Field)
		dir := "ASC"
		if q.OrderBy.Direction == models.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY data -> $%d::text %s, id", len(args), dir)
	} else {
		sb.WriteString(" ORDER BY id")
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	return sb.String(), args, nil
}

func classifyPostgresError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case pqInsufficientPrivilege:
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case pqUniqueViolation:
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	}
	return err
}

// PostgresReviewRepository stores reviews as rows of the documents table.
type PostgresReviewRepository struct {
	db *sqlx.DB
}

func NewPostgresReviewRepository(db *sqlx.DB) *PostgresReviewRepository {
	return &PostgresReviewRepository{db: db}
}

// HasReviewed reports whether userID has any review, approved or not.
func (r *PostgresReviewRepository) HasReviewed(ctx context.Context, userID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND data ->> 'userId' = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, ReviewsCollection, userID); err != nil {
		return false, fmt.Errorf("query reviews for %s: %w", userID, classifyPostgresError(err))
	}
	return exists, nil
}

// Create inserts review with the database clock as createdAt and fills in ID and CreatedAt.
// The unique index on the author's user ID turns a second review into ErrAlreadyExists.
func (r *PostgresReviewRepository) Create(ctx context.Context, review *models.Review) error {
	const query = `INSERT INTO documents (collection, id, data, updated_at)
VALUES ($1, $2, jsonb_set($3::jsonb, '{createdAt}', to_jsonb(NOW())), NOW())
RETURNING updated_at`

	payload, err := json.Marshal(reviewFields(review))
	if err != nil {
		return fmt.Errorf("encode review: %w", err)
	}
	id := uuid.NewString()

	var createdAt time.Time
	if err := r.db.QueryRowxContext(ctx, query, ReviewsCollection, id, string(payload)).Scan(&createdAt); err != nil {
		return fmt.Errorf("create review: %w", classifyPostgresError(err))
	}
	review.ID = id
	review.CreatedAt = createdAt
	return nil
}
