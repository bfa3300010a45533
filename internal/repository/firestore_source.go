package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/noah-isme/prepdeck-marketing-api/internal/models"
)

// FirestoreSource opens live queries against Cloud Firestore.
type FirestoreSource struct {
	client *firestore.Client
}

func NewFirestoreSource(client *firestore.Client) *FirestoreSource {
	return &FirestoreSource{client: client}
}

// Subscribe starts a snapshot listener for q.
func (s *FirestoreSource) Subscribe(ctx context.Context, q models.Query) (Subscription, error) {
	if q.DocumentPath != "" {
		ref := s.client.Doc(q.DocumentPath)
		if ref == nil {
			return nil, fmt.Errorf("%w: invalid document path %q", ErrUnsupportedQuery, q.DocumentPath)
		}
		return &firestoreDocSubscription{it: ref.Snapshots(ctx)}, nil
	}

	query, err := buildFirestoreQuery(s.client.Collection(q.Collection).Query, q)
	if err != nil {
		return nil, err
	}
	return &firestoreQuerySubscription{it: query.Snapshots(ctx)}, nil
}

func buildFirestoreQuery(query firestore.Query, q models.Query) (firestore.Query, error) {
	for _, f := range q.Filters {
		op := f.Op
		if op == "" {
			op = "=="
		}
		query = query.Where(f.Field, op, f.Value)
	}
	if q.OrderBy != nil {
		dir := firestore.Asc
		if q.OrderBy.Direction == models.Desc {
			dir = firestore.Desc
		}
		query = query.OrderBy(q.OrderBy.Field, dir)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	return query, nil
}

type firestoreQuerySubscription struct {
	it   *firestore.QuerySnapshotIterator
	once sync.Once
}

func (s *firestoreQuerySubscription) Next() ([]models.Document, error) {
	snap, err := s.it.Next()
	if err != nil {
		return nil, classifyFirestoreError(err)
	}
	docs, err := snap.Documents.GetAll()
	if err != nil {
		return nil, classifyFirestoreError(err)
	}
	out := make([]models.Document, 0, len(docs))
	for _, doc := range docs {
		out = append(out, models.NewDocument(doc.Ref.ID, doc.Data(), doc.DataTo))
	}
	return out, nil
}

func (s *firestoreQuerySubscription) Stop() {
	s.once.Do(s.it.Stop)
}

type firestoreDocSubscription struct {
	it   *firestore.DocumentSnapshotIterator
	once sync.Once
}

// Next yields a single document, or none when the document does not exist.
func (s *firestoreDocSubscription) Next() ([]models.Document, error) {
	snap, err := s.it.Next()
	if err != nil {
		return nil, classifyFirestoreError(err)
	}
	if !snap.Exists() {
		return []models.Document{}, nil
	}
	return []models.Document{models.NewDocument(snap.Ref.ID, snap.Data(), snap.DataTo)}, nil
}

func (s *firestoreDocSubscription) Stop() {
	s.once.Do(s.it.Stop)
}

// classifyFirestoreError maps gRPC status codes onto the repository sentinels.
func classifyFirestoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, iterator.Done) {
		return ErrSubscriptionClosed
	}
	switch status.Code(err) {
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %v", ErrIndexMissing, err)
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case codes.Canceled:
		return fmt.Errorf("%w: %v", ErrSubscriptionClosed, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	}
	return err
}

// FirestoreReviewRepository reads and writes the reviews collection.
type FirestoreReviewRepository struct {
	client *firestore.Client
}

func NewFirestoreReviewRepository(client *firestore.Client) *FirestoreReviewRepository {
	return &FirestoreReviewRepository{client: client}
}

// HasReviewed reports whether userID has any review, approved or not.
func (r *FirestoreReviewRepository) HasReviewed(ctx context.Context, userID string) (bool, error) {
	it := r.client.Collection(ReviewsCollection).Where("userId", "==", userID).Limit(1).Documents(ctx)
	defer it.Stop()
	if _, err := it.Next(); err != nil {
		if errors.Is(err, iterator.Done) {
			return false, nil
		}
		return false, fmt.Errorf("query reviews for %s: %w", userID, classifyFirestoreError(err))
	}
	return true, nil
}

// Create stores review under its author's user ID with a server-assigned createdAt. A second
// review by the same user fails with ErrAlreadyExists.
func (r *FirestoreReviewRepository) Create(ctx context.Context, review *models.Review) error {
	id, err := reviewDocumentID(review.UserID)
	if err != nil {
		return err
	}
	fields := reviewFields(review)
	fields["createdAt"] = firestore.ServerTimestamp
	if _, err := r.client.Collection(ReviewsCollection).Doc(id).Create(ctx, fields); err != nil {
		return fmt.Errorf("create review: %w", classifyFirestoreError(err))
	}
	review.ID = id
	return nil
}

// reviewDocumentID maps a user ID to the review's document ID.
func reviewDocumentID(userID string) (string, error) {
	if userID == "" || userID == "." || userID == ".." || strings.Contains(userID, "/") ||
		(strings.HasPrefix(userID, "__") && strings.HasSuffix(userID, "__")) {
		return "", fmt.Errorf("user id %q cannot name a review document", userID)
	}
	return userID, nil
}
