package repository

import (
	"errors"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/noah-isme/prepdeck-marketing-api/internal/models"
)

// Classified backend failures. Sources wrap backend errors with these so callers can decide on
// the unsorted fallback with errors.Is. ErrAlreadyExists marks writes rejected by a uniqueness rule.
var (
	ErrIndexMissing       = errors.New("query requires an index that does not exist")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrSubscriptionClosed = errors.New("subscription closed")
	ErrUnsupportedQuery   = errors.New("unsupported query")
	ErrAlreadyExists      = errors.New("document already exists")
)

// Subscription delivers successive snapshots of a live query.
type Subscription interface {
	// Next blocks until the next snapshot is available.
	Next() ([]models.Document, error)
	// Stop releases the subscription. It is safe to call more than once.
	Stop()
}

// IsFallbackEligible reports whether err allows retrying a sorted query without its sort.
func IsFallbackEligible(err error) bool {
	return errors.Is(err, ErrIndexMissing) || errors.Is(err, ErrPermissionDenied)
}

// decodeTagged decodes a field map keyed by firestore names into dst. Numbers are converted
// weakly so jsonb float64 values fill int fields, and RFC 3339 strings fill time fields.
func decodeTagged(fields map[string]any) func(any) error {
	return func(dst any) error {
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "firestore",
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
			Result:           dst,
		})
		if err != nil {
			return err
		}
		return decoder.Decode(fields)
	}
}
