package identifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt_multi_account/internal/domain"
)

func TestNormalizeVideoID(t *testing.T) {
	const want = domain.VideoID("dQw4w9WgXcQ")

	inputs := []string{
		"dQw4w9WgXcQ",
		"  dQw4w9WgXcQ  ",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ&t=42s",
		"https://m.youtube.com/watch?v=dQw4w9WgXcQ&lc=Ugx123",
		"www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ?si=abc",
		"youtu.be/dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ",
		"https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ?start=3",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			got, err := NormalizeVideoID(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestNormalizeVideoIDQueryTakesPrecedence(t *testing.T) {
	got, err := NormalizeVideoID("https://www.youtube.com/embed/AAAAAAAAAAA?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, domain.VideoID("dQw4w9WgXcQ"), got)
}

func TestNormalizeVideoIDInvalid(t *testing.T) {
	inputs := []string{
		"",
		"not-a-url",
		"dQw4w9WgXc",
		"dQw4w9WgXcQQ",
		"dQw4w9WgX!Q",
		"https://www.youtube.com/watch?v=short",
		"https://www.youtube.com/channel/UCxxxxxxxxxx",
		"https://youtu.be/",
		"https://example.com/",
		"hello world dQw4w9WgXcQ",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := NormalizeVideoID(in)
			require.ErrorIs(t, err, domain.ErrInvalidIdentifier)
		})
	}
}

func TestNormalizeCommentID(t *testing.T) {
	tests := []struct {
		in   string
		want domain.CommentID
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&lc=Ugx123", "Ugx123"},
		{"www.youtube.com/watch?v=dQw4w9WgXcQ&lc=Ugx123", "Ugx123"},
		{"https://www.youtube.com/watch?lc=UgzReply.8xYz_-&v=dQw4w9WgXcQ", "UgzReply.8xYz_-"},
		{"https://youtu.be/dQw4w9WgXcQ?lc=UgyABC", "UgyABC"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeCommentID(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeCommentIDInvalid(t *testing.T) {
	inputs := []string{
		"",
		"Ugx123",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&lc=",
		"https://www.youtube.com/watch?lc=bad%22id",
		"://broken",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := NormalizeCommentID(in)
			require.ErrorIs(t, err, domain.ErrInvalidIdentifier)
		})
	}
}

func TestCommentURL(t *testing.T) {
	assert.Equal(t,
		"https://www.youtube.com/watch?lc=Ugx123&v=dQw4w9WgXcQ",
		CommentURL("dQw4w9WgXcQ", "Ugx123"))
}

func TestCanonicalCommentURL(t *testing.T) {
	assert.Equal(t,
		"https://www.youtube.com/watch?lc=Ugx123&v=dQw4w9WgXcQ",
		CanonicalCommentURL("https://youtu.be/dQw4w9WgXcQ?lc=Ugx123", "Ugx123"))

	assert.Equal(t,
		"https://www.youtube.com/post/abc?lc=Ugx123",
		CanonicalCommentURL(" https://www.youtube.com/post/abc?lc=Ugx123 ", "Ugx123"))
}
