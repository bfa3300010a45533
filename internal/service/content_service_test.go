package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/prepdeck-marketing-api/internal/models"
	"github.com/noah-isme/prepdeck-marketing-api/internal/repository"
	appErrors "github.com/noah-isme/prepdeck-marketing-api/pkg/errors"
)

// routedSource serves one snapshot per collection or document path.
type routedSource struct {
	mu      sync.Mutex
	docs    map[string][]models.Document
	queries map[string]models.Query
}

func (r *routedSource) Subscribe(ctx context.Context, q models.Query) (repository.Subscription, error) {
	key := q.Collection
	if q.DocumentPath != "" {
		key = q.DocumentPath
	}
	r.mu.Lock()
	r.queries[key] = q
	docs := r.docs[key]
	r.mu.Unlock()
	return &fakeSubscription{ctx: ctx, snaps: [][]models.Document{docs}, stopped: make(chan struct{})}, nil
}

func (r *routedSource) query(key string) models.Query {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queries[key]
}

var contentNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newContentFixture(t *testing.T) (*ContentService, *routedSource) {
	t.Helper()
	end := contentNow.Add(90 * time.Second)
	src := &routedSource{
		queries: map[string]models.Query{},
		docs: map[string][]models.Document{
			CollectionBanners: {
				docOf("b1", models.Banner{ImageURL: "/b1.png", Order: 0}, nil),
				docOf("b2", models.Banner{ImageURL: "/b2.png", Order: 1, Active: boolPtr(false)}, nil),
				docOf("b3", models.Banner{ImageURL: "/b3.png", Order: 2, Duration: 8000}, nil),
			},
			CollectionHero: {
				docOf("h0", models.HeroConfig{Title: "Old", Active: boolPtr(false)}, nil),
				docOf("h1", models.HeroConfig{Title: "Spring sale", TimerEndDate: &end, Images: []string{"/1.png", "/2.png"}}, nil),
			},
			CollectionPosts: {
				docOf("n1", models.NewsItem{Text: "New pharmacology deck", CreatedAt: contentNow.Add(-2 * time.Hour), IsNews: true}, nil),
				docOf("n2", models.NewsItem{Text: "Exam tips", AuthorName: "Dr. Reyes", CreatedAt: contentNow.Add(-time.Hour), IsNews: true}, nil),
			},
			CollectionReviews: {
				docOf("r1", models.Review{UserName: "A", Rating: 5, CreatedAt: contentNow.Add(-3 * time.Hour)}, nil),
				docOf("r2", models.Review{UserName: "B", Rating: 4, Approved: boolPtr(false), CreatedAt: contentNow}, nil),
				docOf("r3", models.Review{UserName: "C", Rating: 9, Approved: boolPtr(true), CreatedAt: contentNow.Add(-time.Hour)}, nil),
			},
			CollectionCourses: {
				docOf("c1", models.Course{Name: "Basics", Price: 10}, nil),
				docOf("c2", models.Course{Name: "Boards bundle", Price: 60, OriginalPrice: 80, Featured: true}, nil),
			},
			PopupDocumentPath: {
				docOf("popupBanner", models.PopupBanner{ImageURL: "/promo.png", Link: "/sale"}, nil),
			},
		},
	}
	svc := NewContentService(ContentOptions{
		Source:          src,
		Clock:           clockwork.NewFakeClockAt(contentNow),
		DefaultDuration: 5 * time.Second,
	})
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	require.Eventually(t, svc.Ready, 2*time.Second, 5*time.Millisecond)
	return svc, src
}

func TestContentServiceSections(t *testing.T) {
	svc, src := newContentFixture(t)

	banners, meta := svc.Banners()
	require.Len(t, banners, 2)
	assert.Equal(t, "b1", banners[0].ID)
	assert.Equal(t, 5000, banners[0].Duration)
	assert.Equal(t, 8000, banners[1].Duration)
	assert.Equal(t, SourceLive, meta.Source)
	assert.False(t, meta.Loading)
	require.NotNil(t, meta.UpdatedAt)
	bannerQuery := src.query(CollectionBanners)
	require.NotNil(t, bannerQuery.OrderBy)
	assert.Equal(t, "order", bannerQuery.OrderBy.Field)

	hero, _ := svc.Hero()
	require.NotNil(t, hero)
	assert.Equal(t, "h1", hero.ID)
	assert.Equal(t, models.DefaultHeroCTAText, hero.CTAText)
	assert.Equal(t, int64(90), hero.CountdownSeconds)

	reviews, _ := svc.Reviews()
	require.Len(t, reviews, 2)
	assert.Equal(t, "r3", reviews[0].ID)
	assert.Equal(t, models.MaxRating, reviews[0].Rating)
	assert.Equal(t, "r1", reviews[1].ID)

	courses, _ := svc.Courses()
	require.Len(t, courses, 2)
	assert.Equal(t, "c2", courses[0].ID)
	assert.Equal(t, 25, courses[0].DiscountPercent)
	assert.Equal(t, 0, courses[1].DiscountPercent)

	news, _ := svc.News("")
	require.Len(t, news, 2)
	assert.Equal(t, "n2", news[0].ID)
	filtered, _ := svc.News("reyes")
	require.Len(t, filtered, 1)
	assert.Equal(t, "n2", filtered[0].ID)
	assert.Equal(t, []models.Filter{{Field: "isNews", Op: "==", Value: true}}, src.query(CollectionPosts).Filters)

	popup, _ := svc.Popup()
	require.NotNil(t, popup)
	assert.Equal(t, "/sale", popup.Link)

	home := svc.Home()
	assert.Len(t, home.Banners.Data, 2)
	assert.Equal(t, SourceLive, home.Reviews.Meta.Source)
}

func TestContentServiceWatch(t *testing.T) {
	svc, _ := newContentFixture(t)

	updates, cancel, err := svc.Watch(SectionBanners)
	require.NoError(t, err)
	defer cancel()

	select {
	case update := <-updates:
		assert.Equal(t, SectionBanners, update.Section)
		assert.Equal(t, 2, update.Count)
		assert.Equal(t, []int{5000, 8000}, update.Durations)
	case <-time.After(2 * time.Second):
		t.Fatal("no banner update")
	}

	hero, cancelHero, err := svc.Watch(SectionHero)
	require.NoError(t, err)
	defer cancelHero()
	select {
	case update := <-hero:
		assert.Equal(t, 2, update.Count)
	case <-time.After(2 * time.Second):
		t.Fatal("no hero update")
	}

	_, _, err = svc.Watch("unknown")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestContentServiceWithoutData(t *testing.T) {
	src := &routedSource{queries: map[string]models.Query{}, docs: map[string][]models.Document{}}
	svc := NewContentService(ContentOptions{Source: src})
	svc.Start(context.Background())
	defer svc.Stop()
	require.Eventually(t, svc.Ready, 2*time.Second, 5*time.Millisecond)

	banners, _ := svc.Banners()
	assert.NotNil(t, banners)
	assert.Empty(t, banners)
	hero, _ := svc.Hero()
	assert.Nil(t, hero)
	popup, _ := svc.Popup()
	assert.Nil(t, popup)
}
