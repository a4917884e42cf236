package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewStampsIdentifierAndUTC(t *testing.T) {
	loc := time.FixedZone("WIB", 7*60*60)
	evt := New(LessonCompleted, 3, time.Date(2024, 3, 1, 8, 0, 0, 0, loc))

	require.NotEmpty(t, evt.ID)
	require.Equal(t, time.UTC, evt.OccurredAt.Location())
	require.Equal(t, 1, evt.OccurredAt.Hour())
}

func TestEventEncodingOmitsEmptyReferences(t *testing.T) {
	evt := New(BadgeUnlocked, 3, time.Now())
	evt.BadgeID = 9

	raw, err := json.Marshal(evt)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "badge.unlocked", decoded["type"])
	require.Equal(t, float64(9), decoded["badge_id"])
	require.NotContains(t, decoded, "course_id")
}

func TestSubject(t *testing.T) {
	require.Equal(t, "brainboost.progress.course.completed", Subject("brainboost.progress", CourseCompleted))
}

func TestPublisherWithoutConnectionDropsEvents(t *testing.T) {
	publisher := NewNATSPublisher(nil, "brainboost.progress", zerolog.Nop())
	require.NoError(t, publisher.Publish(context.Background(), New(LessonCompleted, 1, time.Now())))
	require.NoError(t, Nop{}.Publish(context.Background(), Event{}))
}
