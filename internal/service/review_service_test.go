package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/prepdeck-marketing-api/internal/dto"
	"github.com/noah-isme/prepdeck-marketing-api/internal/models"
	"github.com/noah-isme/prepdeck-marketing-api/internal/repository"
	appErrors "github.com/noah-isme/prepdeck-marketing-api/pkg/errors"
)

type mockReviewRepo struct {
	reviewed    map[string]bool
	created     []*models.Review
	hasErr      error
	createErr   error
	hasCalls    int
	createCalls int
}

func (m *mockReviewRepo) HasReviewed(_ context.Context, userID string) (bool, error) {
	m.hasCalls++
	if m.hasErr != nil {
		return false, m.hasErr
	}
	return m.reviewed[userID], nil
}

func (m *mockReviewRepo) Create(_ context.Context, review *models.Review) error {
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	review.ID = "rev-1"
	m.created = append(m.created, review)
	return nil
}

func learner() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Email: "ana@example.com"}
}

func TestReviewServiceSubmit(t *testing.T) {
	repo := &mockReviewRepo{}
	svc := NewReviewService(repo, nil, nil)

	review, err := svc.Submit(context.Background(), learner(), dto.CreateReviewRequest{Rating: 5, Comment: "  Passed my boards!  "})
	require.NoError(t, err)

	require.Len(t, repo.created, 1)
	assert.Equal(t, "rev-1", review.ID)
	assert.Equal(t, "user-1", review.UserID)
	assert.Equal(t, "ana", review.UserName)
	assert.Equal(t, "Passed my boards!", review.Comment)
	require.NotNil(t, review.Approved)
	assert.False(t, *review.Approved)
	assert.False(t, review.IsApproved())
}

func TestReviewServiceRejectsInvalidInputWithoutWriting(t *testing.T) {
	cases := []struct {
		name string
		req  dto.CreateReviewRequest
	}{
		{"zero rating", dto.CreateReviewRequest{Rating: 0, Comment: "good"}},
		{"rating too high", dto.CreateReviewRequest{Rating: 6, Comment: "good"}},
		{"empty comment", dto.CreateReviewRequest{Rating: 4, Comment: ""}},
		{"blank comment", dto.CreateReviewRequest{Rating: 4, Comment: " \n\t "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockReviewRepo{}
			svc := NewReviewService(repo, nil, nil)

			_, err := svc.Submit(context.Background(), learner(), tc.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrValidation))
			assert.Zero(t, repo.hasCalls)
			assert.Zero(t, repo.createCalls)
		})
	}
}

func TestReviewServiceRequiresSignIn(t *testing.T) {
	repo := &mockReviewRepo{}
	svc := NewReviewService(repo, nil, nil)

	_, err := svc.Submit(context.Background(), nil, dto.CreateReviewRequest{Rating: 5, Comment: "hi"})
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
	_, err = svc.Status(context.Background(), &models.JWTClaims{})
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
	assert.Zero(t, repo.createCalls)
}

func TestReviewServiceOneReviewPerUser(t *testing.T) {
	repo := &mockReviewRepo{reviewed: map[string]bool{"user-1": true}}
	svc := NewReviewService(repo, nil, nil)

	_, err := svc.Submit(context.Background(), learner(), dto.CreateReviewRequest{Rating: 3, Comment: "again"})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.Zero(t, repo.createCalls)

	status, err := svc.Status(context.Background(), learner())
	require.NoError(t, err)
	assert.True(t, status.HasReviewed)
	assert.False(t, status.CanReview)
}

// uniqueReviewRepo always reads a stale "not reviewed" and enforces uniqueness only on write.
type uniqueReviewRepo struct {
	mu      sync.Mutex
	reviews map[string]*models.Review
}

func (r *uniqueReviewRepo) HasReviewed(context.Context, string) (bool, error) {
	return false, nil
}

func (r *uniqueReviewRepo) Create(_ context.Context, review *models.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reviews[review.UserID]; ok {
		return fmt.Errorf("create review: %w", repository.ErrAlreadyExists)
	}
	review.ID = review.UserID
	r.reviews[review.UserID] = review
	return nil
}

func TestReviewServiceConcurrentSubmitsStoreOneReview(t *testing.T) {
	repo := &uniqueReviewRepo{reviews: map[string]*models.Review{}}
	svc := NewReviewService(repo, nil, nil)

	const submits = 4
	errs := make(chan error, submits)
	var wg sync.WaitGroup
	for i := 0; i < submits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(context.Background(), learner(), dto.CreateReviewRequest{Rating: 4, Comment: "double click"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded, conflicts := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, appErrors.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, submits-1, conflicts)
	assert.Len(t, repo.reviews, 1)
}

func TestReviewServiceRepositoryFailures(t *testing.T) {
	repo := &mockReviewRepo{createErr: errors.New("write failed")}
	svc := NewReviewService(repo, nil, nil)
	_, err := svc.Submit(context.Background(), learner(), dto.CreateReviewRequest{Rating: 5, Comment: "ok"})
	assert.True(t, errors.Is(err, appErrors.ErrInternal))

	repo = &mockReviewRepo{hasErr: errors.New("read failed")}
	svc = NewReviewService(repo, nil, nil)
	_, err = svc.Status(context.Background(), learner())
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ana Lopez", displayName(&models.JWTClaims{FullName: " Ana Lopez ", Email: "a@x.io"}))
	assert.Equal(t, "a", displayName(&models.JWTClaims{Email: "a@x.io"}))
	assert.Equal(t, "Learner", displayName(&models.JWTClaims{}))
}
