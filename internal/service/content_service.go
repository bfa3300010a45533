package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/prepdeck-marketing-api/internal/dto"
	"github.com/noah-isme/prepdeck-marketing-api/internal/models"
	appErrors "github.com/noah-isme/prepdeck-marketing-api/pkg/errors"
)

// ContentOptions wires the shared dependencies of every content loader.
type ContentOptions struct {
	Source          DocumentSource
	Cache           *CacheService
	Clock           clockwork.Clock
	Metrics         *MetricsService
	Logger          *zap.Logger
	MaxRetries      int
	RetryBase       time.Duration
	DefaultDuration time.Duration
}

// ContentService owns one loader per home page section.
type ContentService struct {
	clock   clockwork.Clock
	banners *Loader[models.Banner]
	hero    *Loader[models.HeroConfig]
	news    *Loader[models.NewsItem]
	reviews *Loader[models.Review]
	courses *Loader[models.Course]
	popup   *Loader[models.PopupBanner]
}

// NewContentService builds the section loaders. Call Start to open subscriptions.
func NewContentService(opts ContentOptions) *ContentService {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	defaultMs := int(opts.DefaultDuration / time.Millisecond)

	return &ContentService{
		clock:   opts.Clock,
		banners: NewLoader(withShared(bannerParams(defaultMs), opts)),
		hero:    NewLoader(withShared(heroParams(), opts)),
		news:    NewLoader(withShared(newsParams(), opts)),
		reviews: NewLoader(withShared(reviewParams(), opts)),
		courses: NewLoader(withShared(courseParams(), opts)),
		popup:   NewLoader(withShared(popupParams(), opts)),
	}
}

func withShared[T any](p LoaderParams[T], opts ContentOptions) LoaderParams[T] {
	p.Source = opts.Source
	p.Cache = opts.Cache
	p.Clock = opts.Clock
	p.Metrics = opts.Metrics
	p.Logger = opts.Logger
	p.MaxRetries = opts.MaxRetries
	p.RetryBase = opts.RetryBase
	return p
}

// Start opens every subscription.
func (s *ContentService) Start(ctx context.Context) {
	s.banners.Start(ctx)
	s.hero.Start(ctx)
	s.news.Start(ctx)
	s.reviews.Start(ctx)
	s.courses.Start(ctx)
	s.popup.Start(ctx)
}

// Stop tears down every subscription and pending retry.
func (s *ContentService) Stop() {
	s.banners.Stop()
	s.hero.Stop()
	s.news.Stop()
	s.reviews.Stop()
	s.courses.Stop()
	s.popup.Stop()
}

// Ready reports whether every section has settled at least once.
func (s *ContentService) Ready() bool {
	return !s.banners.State().Loading &&
		!s.hero.State().Loading &&
		!s.news.State().Loading &&
		!s.reviews.State().Loading &&
		!s.courses.State().Loading &&
		!s.popup.State().Loading
}

// Banners returns active banners in display order.
func (s *ContentService) Banners() ([]models.Banner, dto.SectionMeta) {
	st := s.banners.State()
	return orEmpty(st.Items), metaOf(st)
}

// Hero returns the first active hero config, or nil.
func (s *ContentService) Hero() (*dto.HeroView, dto.SectionMeta) {
	st := s.hero.State()
	return s.heroView(st.Items), metaOf(st)
}

func (s *ContentService) heroView(items []models.HeroConfig) *dto.HeroView {
	if len(items) == 0 {
		return nil
	}
	hero := items[0]
	return &dto.HeroView{
		HeroConfig:       hero,
		CountdownSeconds: int64(hero.Countdown(s.clock.Now()) / time.Second),
	}
}

// Courses returns active courses, featured first.
func (s *ContentService) Courses() ([]dto.CourseView, dto.SectionMeta) {
	st := s.courses.State()
	return courseViews(st.Items), metaOf(st)
}

func courseViews(items []models.Course) []dto.CourseView {
	return lo.Map(orEmpty(items), func(c models.Course, _ int) dto.CourseView {
		return dto.CourseView{Course: c, DiscountPercent: c.Discount()}
	})
}

// Reviews returns approved reviews, newest first.
func (s *ContentService) Reviews() ([]models.Review, dto.SectionMeta) {
	st := s.reviews.State()
	return orEmpty(st.Items), metaOf(st)
}

// News returns news items, newest first, narrowed by search when it is non-blank.
func (s *ContentService) News(search string) ([]models.NewsItem, dto.SectionMeta) {
	st := s.news.State()
	items := lo.Filter(orEmpty(st.Items), func(n models.NewsItem, _ int) bool { return n.Matches(search) })
	return items, metaOf(st)
}

// Popup returns the popup banner when it is displayable.
func (s *ContentService) Popup() (*models.PopupBanner, dto.SectionMeta) {
	st := s.popup.State()
	if len(st.Items) == 0 || !st.Items[0].Displayable() {
		return nil, metaOf(st)
	}
	popup := st.Items[0]
	return &popup, metaOf(st)
}

// Home aggregates every section.
func (s *ContentService) Home() dto.HomeResponse {
	banners, bannersMeta := s.Banners()
	hero, heroMeta := s.Hero()
	courses, coursesMeta := s.Courses()
	reviews, reviewsMeta := s.Reviews()
	news, newsMeta := s.News("")
	return dto.HomeResponse{
		Banners: dto.HomeSection{Data: banners, Meta: bannersMeta},
		Hero:    dto.HomeSection{Data: hero, Meta: heroMeta},
		Courses: dto.HomeSection{Data: courses, Meta: coursesMeta},
		Reviews: dto.HomeSection{Data: reviews, Meta: reviewsMeta},
		News:    dto.HomeSection{Data: news, Meta: newsMeta},
	}
}

// Sections lists the sections a stream session subscribes to.
func (s *ContentService) Sections() []string {
	return []string{SectionBanners, SectionHero, SectionCourses, SectionReviews, SectionNews}
}

// Watch streams updates for section until cancel is called or the service stops.
func (s *ContentService) Watch(section string) (<-chan dto.SectionUpdate, func(), error) {
	switch section {
	case SectionBanners:
		ch, cancel := watchSection(s.banners, section, func(items []models.Banner) dto.SectionUpdate {
			items = orEmpty(items)
			return dto.SectionUpdate{
				Data:      items,
				Count:     len(items),
				Durations: lo.Map(items, func(b models.Banner, _ int) int { return b.Duration }),
			}
		})
		return ch, cancel, nil
	case SectionHero:
		ch, cancel := watchSection(s.hero, section, func(items []models.HeroConfig) dto.SectionUpdate {
			view := s.heroView(items)
			count := 0
			if view != nil {
				count = len(view.Images)
			}
			return dto.SectionUpdate{Data: view, Count: count}
		})
		return ch, cancel, nil
	case SectionCourses:
		ch, cancel := watchSection(s.courses, section, func(items []models.Course) dto.SectionUpdate {
			views := courseViews(items)
			return dto.SectionUpdate{Data: views, Count: len(views)}
		})
		return ch, cancel, nil
	case SectionReviews:
		ch, cancel := watchSection(s.reviews, section, func(items []models.Review) dto.SectionUpdate {
			items = orEmpty(items)
			return dto.SectionUpdate{Data: items, Count: len(items)}
		})
		return ch, cancel, nil
	case SectionNews:
		ch, cancel := watchSection(s.news, section, func(items []models.NewsItem) dto.SectionUpdate {
			items = orEmpty(items)
			return dto.SectionUpdate{Data: items, Count: len(items)}
		})
		return ch, cancel, nil
	case SectionPopup:
		ch, cancel := watchSection(s.popup, section, func(items []models.PopupBanner) dto.SectionUpdate {
			var popup *models.PopupBanner
			if len(items) > 0 && items[0].Displayable() {
				popup = &items[0]
			}
			return dto.SectionUpdate{Data: popup}
		})
		return ch, cancel, nil
	}
	return nil, nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown section %q", section))
}

// watchSection projects a loader's watch channel into section updates.
func watchSection[T any](l *Loader[T], section string, project func([]T) dto.SectionUpdate) (<-chan dto.SectionUpdate, func()) {
	in, cancel := l.Watch()
	out := make(chan dto.SectionUpdate, 1)
	go func() {
		defer close(out)
		for st := range in {
			update := project(st.Items)
			update.Section = section
			update.Meta = metaOf(st)
			select {
			case out <- update:
			default:
				select {
				case <-out:
				default:
				}
				out <- update
			}
		}
	}()
	return out, cancel
}

func metaOf[T any](st LoaderState[T]) dto.SectionMeta {
	meta := dto.SectionMeta{Loading: st.Loading, Source: st.Source}
	if !st.UpdatedAt.IsZero() {
		ts := st.UpdatedAt.UTC()
		meta.UpdatedAt = &ts
	}
	return meta
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
