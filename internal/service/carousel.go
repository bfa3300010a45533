package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Carousels driven per stream session.
const (
	CarouselBanners = "banners"
	CarouselHero    = "hero"
	CarouselReviews = "reviews"
)

// DefaultSlideDuration applies to slides without their own duration.
const DefaultSlideDuration = 5 * time.Second

// Carousel tracks the displayed slide of a rotating list and auto-advances it.
// The advance timer restarts on every index or count change, manual or automatic.
type Carousel struct {
	name            string
	clock           clockwork.Clock
	defaultDuration time.Duration

	mu        sync.Mutex
	index     int
	count     int
	durations []int

	changed chan struct{}
}

// NewCarousel returns an empty carousel.
func NewCarousel(name string, clock clockwork.Clock, defaultDuration time.Duration) *Carousel {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if defaultDuration <= 0 {
		defaultDuration = DefaultSlideDuration
	}
	return &Carousel{
		name:            name,
		clock:           clock,
		defaultDuration: defaultDuration,
		changed:         make(chan struct{}, 1),
	}
}

func (c *Carousel) Name() string {
	return c.name
}

// Position returns the current index and item count.
func (c *Carousel) Position() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index, c.count
}

// SetItems replaces the slide count and optional per-slide durations in milliseconds,
// clamping the index into range. A running timer is re-armed when any of them changed.
func (c *Carousel) SetItems(count int, durations []int) int {
	c.mu.Lock()
	if count < 0 {
		count = 0
	}
	prevCount, prevIndex, prevDurations := c.count, c.index, c.durations
	c.count = count
	c.durations = append([]int(nil), durations...)
	switch {
	case count == 0:
		c.index = 0
	case c.index >= count:
		c.index = count - 1
	}
	index := c.index
	changed := prevCount != count || prevIndex != index || !slices.Equal(prevDurations, c.durations)
	c.mu.Unlock()

	if changed {
		c.signal()
	}
	return index
}

// Next advances one slide, wrapping to the first.
func (c *Carousel) Next() int {
	return c.move(func(index, count int) int { return (index + 1) % count })
}

// Prev goes back one slide, wrapping to the last.
func (c *Carousel) Prev() int {
	return c.move(func(index, count int) int { return (index - 1 + count) % count })
}

// Select jumps to i, taken modulo the count.
func (c *Carousel) Select(i int) int {
	return c.move(func(_, count int) int { return ((i % count) + count) % count })
}

func (c *Carousel) move(next func(index, count int) int) int {
	c.mu.Lock()
	if c.count == 0 {
		c.mu.Unlock()
		return 0
	}
	c.index = next(c.index, c.count)
	index := c.index
	c.mu.Unlock()

	c.signal()
	return index
}

func (c *Carousel) signal() {
	select {
	case c.changed <- struct{}{}:
	default:
	}
}

// duration must be called with c.mu held.
func (c *Carousel) duration() time.Duration {
	if c.index < len(c.durations) && c.durations[c.index] > 0 {
		return time.Duration(c.durations[c.index]) * time.Millisecond
	}
	return c.defaultDuration
}

// Run auto-advances until ctx is done, calling onChange after every automatic step.
// No timer is armed while the carousel has one slide or none.
func (c *Carousel) Run(ctx context.Context, onChange func(index, count int)) {
	// Changes made before Run are already reflected in the state read below.
	select {
	case <-c.changed:
	default:
	}
	for {
		c.mu.Lock()
		count := c.count
		period := c.duration()
		c.mu.Unlock()

		var timer clockwork.Timer
		var tick <-chan time.Time
		if count > 1 {
			timer = c.clock.NewTimer(period)
			tick = timer.Chan()
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-c.changed:
			if timer != nil {
				timer.Stop()
			}
		case <-tick:
			c.mu.Lock()
			if c.count > 1 {
				c.index = (c.index + 1) % c.count
			}
			index, n := c.index, c.count
			c.mu.Unlock()
			if onChange != nil {
				onChange(index, n)
			}
		}
	}
}
