package service

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// PopupDateLayout is the format of the last-shown flag.
const PopupDateLayout = "2006-01-02"

// PopupService gates the promotional popup to at most one display per calendar day.
type PopupService struct {
	clock    clockwork.Clock
	location *time.Location
}

// NewPopupService uses timezone to decide where calendar days start; unknown zones fall back to UTC.
func NewPopupService(clock clockwork.Clock, timezone string) *PopupService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil || timezone == "" {
		loc = time.UTC
	}
	return &PopupService{clock: clock, location: loc}
}

// Today returns the current calendar day in the flag format.
func (s *PopupService) Today() string {
	return s.clock.Now().In(s.location).Format(PopupDateLayout)
}

// ShouldShow reports whether the popup may be shown given the last-shown flag.
func (s *PopupService) ShouldShow(lastShown string) bool {
	return lastShown != s.Today()
}

// EndOfDay returns how long until the current calendar day ends.
func (s *PopupService) EndOfDay() time.Duration {
	now := s.clock.Now().In(s.location)
	y, m, d := now.Date()
	midnight := time.Date(y, m, d+1, 0, 0, 0, 0, s.location)
	return midnight.Sub(now)
}
