package cloudinary

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestBuildPublicIDKeepsExtensionForRawFiles(t *testing.T) {
	at := time.Unix(1700000000, 0)

	require.Equal(t, "week-1-intro-1700000000.pdf", buildPublicID("Week 1 Intro.PDF", "application/pdf", at))
	require.Equal(t, "demo-1700000000", buildPublicID("demo.mp4", "video/mp4", at))
	require.Equal(t, "lesson-1700000000", buildPublicID("???.webm", "video/webm", at))
}

func TestResourceType(t *testing.T) {
	require.Equal(t, "video", resourceType("video/webm"))
	require.Equal(t, "raw", resourceType("application/pdf"))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
}
