package service

import (
	"errors"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const tracerName = "github.com/noah-isme/brainboost-api/internal/service"

// civilDate returns the calendar date of at in loc, expressed as midnight UTC so stored
// dates compare by year, month and day only.
func civilDate(at time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := at.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

func asCivilDate(stored time.Time) time.Time {
	return time.Date(stored.Year(), stored.Month(), stored.Day(), 0, 0, 0, 0, time.UTC)
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

func failSpan(span trace.Span, err error, status string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, status)
}

// plainText strips every tag from authored short strings such as titles and option texts.
func plainText(policy *bluemonday.Policy, value string) string {
	return strings.TrimSpace(policy.Sanitize(strings.TrimSpace(value)))
}
