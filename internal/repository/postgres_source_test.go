package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/prepdeck-marketing-api/internal/models"
)

type fakeNotifier struct {
	ch chan *pq.Notification
}

func (f *fakeNotifier) NotificationChannel() <-chan *pq.Notification { return f.ch }

func newDocumentsRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestBuildDocumentsQuery(t *testing.T) {
	query, args, err := buildDocumentsQuery(models.Query{
		Collection: "posts",
		Filters:    []models.Filter{{Field: "isNews", Op: "==", Value: true}},
		OrderBy:    &models.Order{Field: "createdAt", Direction: models.Desc},
		Limit:      20,
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, data FROM documents WHERE collection = $1 AND data -> $2::text = $3::jsonb ORDER BY data -> $4::text DESC, id LIMIT $5", query)
	assert.Equal(t, []interface{}{"posts", "isNews", "true", "createdAt", 20}, args)

	query, args, err = buildDocumentsQuery(models.Query{DocumentPath: "config/popupBanner"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, data FROM documents WHERE collection = $1 AND id = $2", query)
	assert.Equal(t, []interface{}{"config", "popupBanner"}, args)

	_, _, err = buildDocumentsQuery(models.Query{Collection: "courses", Filters: []models.Filter{{Field: "price", Op: ">", Value: 1}}})
	assert.ErrorIs(t, err, ErrUnsupportedQuery)

	_, _, err = buildDocumentsQuery(models.Query{DocumentPath: "config"})
	assert.ErrorIs(t, err, ErrUnsupportedQuery)
}

func TestPostgresSourceRequeriesOnNotify(t *testing.T) {
	db, mock, cleanup := newDocumentsRepoMock(t)
	defer cleanup()

	notifier := &fakeNotifier{ch: make(chan *pq.Notification, 2)}
	source := NewPostgresSource(db, notifier, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go source.Run(ctx)

	q := models.Query{Collection: "homeBanners", Filters: []models.Filter{{Field: "active", Value: true}}}
	sub, err := source.Subscribe(ctx, q)
	require.NoError(t, err)
	defer sub.Stop()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, data FROM documents WHERE collection = $1")).
		WithArgs("homeBanners", "active", "true").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data"}).
			AddRow("b1", []byte(`{"imageUrl":"a.png","order":1}`)).
			AddRow("bad", []byte(`not-json`)))

	docs, err := sub.Next()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b1", docs[0].ID)
	var banner models.Banner
	require.NoError(t, docs[0].DataTo(&banner))
	assert.Equal(t, "a.png", banner.ImageURL)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, data FROM documents WHERE collection = $1")).
		WithArgs("homeBanners", "active", "true").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data"}))

	notifier.ch <- &pq.Notification{Channel: DocumentsChannel, Extra: "courses"}
	notifier.ch <- &pq.Notification{Channel: DocumentsChannel, Extra: "homeBanners"}

	docs, err = sub.Next()
	require.NoError(t, err)
	assert.Empty(t, docs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSubscriptionStop(t *testing.T) {
	db, _, cleanup := newDocumentsRepoMock(t)
	defer cleanup()

	source := NewPostgresSource(db, nil, nil)
	sub, err := source.Subscribe(context.Background(), models.Query{Collection: "reviews"})
	require.NoError(t, err)

	sub.Stop()
	sub.Stop()

	done := make(chan error, 1)
	go func() {
		_, err := sub.Next()
		done <- err
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSubscriptionClosed)
	case <-time.After(time.Second):
		t.Fatal("Next did not return after Stop")
	}
	assert.Empty(t, source.subs)
}

func TestPostgresSourcePermissionDenied(t *testing.T) {
	db, mock, cleanup := newDocumentsRepoMock(t)
	defer cleanup()

	source := NewPostgresSource(db, nil, nil)
	sub, err := source.Subscribe(context.Background(), models.Query{
		Collection: "reviews",
		OrderBy:    &models.Order{Field: "createdAt", Direction: models.Desc},
	})
	require.NoError(t, err)
	defer sub.Stop()

	mock.ExpectQuery("SELECT id, data FROM documents").
		WillReturnError(&pq.Error{Code: "42501", Message: "permission denied for table documents"})

	_, err = sub.Next()
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestPostgresReviewRepository(t *testing.T) {
	db, mock, cleanup := newDocumentsRepoMock(t)
	defer cleanup()
	repo := NewPostgresReviewRepository(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(ReviewsCollection, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	reviewed, err := repo.HasReviewed(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, reviewed)

	createdAt := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(ReviewsCollection, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(createdAt))

	review := &models.Review{UserID: "user-1", UserName: "Ana", Rating: 5, Comment: "Great decks"}
	require.NoError(t, repo.Create(ctx, review))
	assert.NotEmpty(t, review.ID)
	assert.Equal(t, createdAt, review.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReviewRepositorySecondReviewConflicts(t *testing.T) {
	db, mock, cleanup := newDocumentsRepoMock(t)
	defer cleanup()
	repo := NewPostgresReviewRepository(db)

	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(ReviewsCollection, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505", Message: `duplicate key value violates unique constraint "uq_documents_reviews_user"`})

	review := &models.Review{UserID: "user-1", Rating: 4, Comment: "again"}
	err := repo.Create(context.Background(), review)
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Empty(t, review.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
