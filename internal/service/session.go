package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/noah-isme/prepdeck-marketing-api/internal/dto"
	appErrors "github.com/noah-isme/prepdeck-marketing-api/pkg/errors"
)

const sessionOutboxSize = 64

// SectionWatcher is the part of ContentService a session consumes.
type SectionWatcher interface {
	Sections() []string
	Watch(section string) (<-chan dto.SectionUpdate, func(), error)
}

// SessionOptions configures a stream session.
type SessionOptions struct {
	Content         SectionWatcher
	Images          *ImageLoader
	Clock           clockwork.Clock
	DefaultDuration time.Duration
	Metrics         *MetricsService
	Logger          *zap.Logger
}

// Session is the server side of one connected page. It forwards section updates, drives the page's
// carousels and services its lazy image loads. Close releases every timer, watch and pending load.
type Session struct {
	id        string
	content   SectionWatcher
	images    *ImageLoader
	metrics   *MetricsService
	logger    *zap.Logger
	carousels map[string]*Carousel
	// carouselSections maps a content section to the carousel it drives.
	carouselSections map[string]string

	out chan any

	mu         sync.Mutex
	visibility map[string]chan ViewportEvent

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
	opened    bool
}

// NewSession builds a session bound to ctx.
func NewSession(ctx context.Context, opts SessionOptions) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:      id,
		content: opts.Content,
		images:  opts.Images,
		metrics: opts.Metrics,
		logger:  opts.Logger.With(zap.String("session_id", id)),
		carousels: map[string]*Carousel{
			CarouselBanners: NewCarousel(CarouselBanners, opts.Clock, opts.DefaultDuration),
			CarouselHero:    NewCarousel(CarouselHero, opts.Clock, opts.DefaultDuration),
			CarouselReviews: NewCarousel(CarouselReviews, opts.Clock, opts.DefaultDuration),
		},
		carouselSections: map[string]string{
			SectionBanners: CarouselBanners,
			SectionHero:    CarouselHero,
			SectionReviews: CarouselReviews,
		},
		out:        make(chan any, sessionOutboxSize),
		visibility: make(map[string]chan ViewportEvent),
		ctx:        ctx,
		cancel:     cancel,
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Outbox carries messages to write to the page.
func (s *Session) Outbox() <-chan any {
	return s.out
}

// Done is closed when the session is closing.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Carousel returns the named carousel, or nil.
func (s *Session) Carousel(name string) *Carousel {
	return s.carousels[name]
}

// Start subscribes to every section and starts the carousels.
func (s *Session) Start() error {
	var startErr error
	s.startOnce.Do(func() {
		s.metrics.SessionOpened()
		s.opened = true
		for _, section := range s.content.Sections() {
			updates, cancel, err := s.content.Watch(section)
			if err != nil {
				startErr = err
				return
			}
			s.wg.Add(1)
			go s.forward(updates, cancel)
		}
		for _, c := range s.carousels {
			c := c
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				c.Run(s.ctx, func(index, count int) {
					s.emit(dto.StreamCarouselMessage{Type: dto.StreamMessageCarousel, Carousel: c.Name(), Index: index, Count: count})
				})
			}()
		}
	})
	return startErr
}

func (s *Session) forward(updates <-chan dto.SectionUpdate, cancel func()) {
	defer s.wg.Done()
	defer cancel()
	for {
		select {
		case <-s.ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.emit(dto.StreamSectionMessage{
				Type:    dto.StreamMessageSection,
				Section: update.Section,
				Data:    update.Data,
				Meta:    update.Meta,
			})
			if name, ok := s.carouselSections[update.Section]; ok {
				c := s.carousels[name]
				index := c.SetItems(update.Count, update.Durations)
				s.emit(dto.StreamCarouselMessage{Type: dto.StreamMessageCarousel, Carousel: name, Index: index, Count: update.Count})
			}
		}
	}
}

// Handle applies a client message.
func (s *Session) Handle(msg dto.StreamClientMessage) error {
	switch msg.Type {
	case dto.StreamMessageCarousel:
		return s.navigate(msg)
	case dto.StreamMessageImage:
		return s.loadImage(msg)
	case dto.StreamMessageVisibility:
		s.reportVisibility(msg.ID, msg.Distance)
		return nil
	}
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown message type %q", msg.Type))
}

func (s *Session) navigate(msg dto.StreamClientMessage) error {
	c, ok := s.carousels[msg.Carousel]
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown carousel %q", msg.Carousel))
	}
	var index int
	switch msg.Action {
	case dto.CarouselActionNext:
		index = c.Next()
	case dto.CarouselActionPrev:
		index = c.Prev()
	case dto.CarouselActionSelect:
		index = c.Select(msg.Index)
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown carousel action %q", msg.Action))
	}
	_, count := c.Position()
	s.emit(dto.StreamCarouselMessage{Type: dto.StreamMessageCarousel, Carousel: msg.Carousel, Index: index, Count: count})
	return nil
}

// loadImage starts a lazy load. A new request for the same ID cancels the previous one.
func (s *Session) loadImage(msg dto.StreamClientMessage) error {
	if msg.ID == "" || msg.Src == "" {
		return appErrors.Clone(appErrors.ErrValidation, "image messages need id and src")
	}
	if s.images == nil {
		return appErrors.Clone(appErrors.ErrUnavailable, "image loading is disabled")
	}
	if s.ctx.Err() != nil {
		return appErrors.Clone(appErrors.ErrUnavailable, "session closed")
	}

	var vis chan ViewportEvent
	s.mu.Lock()
	if prev, ok := s.visibility[msg.ID]; ok {
		close(prev)
		delete(s.visibility, msg.ID)
	}
	if !msg.Priority {
		vis = make(chan ViewportEvent, 4)
		s.visibility[msg.ID] = vis
	}
	s.mu.Unlock()

	req := ImageRequest{ID: msg.ID, Src: msg.Src, Priority: msg.Priority}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		var visibility <-chan ViewportEvent
		if vis != nil {
			visibility = vis
		}
		result := s.images.Load(s.ctx, req, visibility, func(f ImageFailure) {
			s.logger.Info("image replaced by placeholder", zap.String("image_id", f.ID), zap.Int("attempts", f.Attempts))
		})
		s.releaseVisibility(msg.ID, vis)
		if result.Status == ImageCancelled {
			return
		}
		s.emit(dto.StreamImageMessage{Type: dto.StreamMessageImage, ID: msg.ID, Status: result.Status, Src: result.Src})
	}()
	return nil
}

func (s *Session) releaseVisibility(id string, vis chan ViewportEvent) {
	if vis == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.visibility[id]; ok && current == vis {
		delete(s.visibility, id)
		close(vis)
	}
}

func (s *Session) reportVisibility(id string, distance int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vis, ok := s.visibility[id]
	if !ok {
		return
	}
	select {
	case vis <- ViewportEvent{Distance: distance}:
	default:
	}
}

// Emit queues a message for the page unless the session is closing.
func (s *Session) Emit(msg any) {
	s.emit(msg)
}

func (s *Session) emit(msg any) {
	select {
	case <-s.ctx.Done():
	case s.out <- msg:
	}
}

// Close stops every carousel, watch and image load and waits for them to exit.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.mu.Lock()
		for id, vis := range s.visibility {
			delete(s.visibility, id)
			close(vis)
		}
		s.mu.Unlock()
		if s.opened {
			s.metrics.SessionClosed()
		}
	})
}
