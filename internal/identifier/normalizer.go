// Package identifier maps user-entered video and comment inputs to canonical IDs.
// It is the only place in the module that parses those inputs.
package identifier

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"yt_multi_account/internal/domain"
)

var (
	videoIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	commentIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// Hosts serving the short-link form.
var shortHosts = map[string]bool{
	"youtu.be":     true,
	"www.youtu.be": true,
}

// Path prefixes whose next segment is the video ID.
var pathPrefixes = []string{"embed", "shorts", "live", "v"}

const watchURLBase = "https://www.youtube.com/watch"

// NormalizeVideoID returns the video ID embedded in input.
// Precedence: v= query parameter, then path-segment forms, then a bare ID.
func NormalizeVideoID(input string) (domain.VideoID, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", fmt.Errorf("%w: empty video input", domain.ErrInvalidIdentifier)
	}

	if u, ok := parseURL(s); ok {
		if v := u.Query().Get("v"); videoIDPattern.MatchString(v) {
			return domain.VideoID(v), nil
		}
		if id, ok := videoIDFromPath(u); ok {
			return id, nil
		}
	}

	if videoIDPattern.MatchString(s) {
		return domain.VideoID(s), nil
	}
	return "", fmt.Errorf("%w: %q is not a video ID or URL", domain.ErrInvalidIdentifier, input)
}

// NormalizeCommentID returns the comment ID carried by the lc parameter of a URL.
func NormalizeCommentID(input string) (domain.CommentID, error) {
	s := strings.TrimSpace(input)
	u, ok := parseURL(s)
	if !ok {
		return "", fmt.Errorf("%w: %q is not a comment URL", domain.ErrInvalidIdentifier, input)
	}
	lc := u.Query().Get("lc")
	if lc == "" {
		return "", fmt.Errorf("%w: %q has no lc parameter", domain.ErrInvalidIdentifier, input)
	}
	if !commentIDPattern.MatchString(lc) {
		return "", fmt.Errorf("%w: malformed comment ID %q", domain.ErrInvalidIdentifier, lc)
	}
	return domain.CommentID(lc), nil
}

// CommentURL builds the canonical highlight URL for a comment on a video.
func CommentURL(video domain.VideoID, comment domain.CommentID) string {
	q := url.Values{}
	q.Set("v", string(video))
	q.Set("lc", string(comment))
	return watchURLBase + "?" + q.Encode()
}

// CanonicalCommentURL rewrites a comment URL into the highlight form when the
// video ID can be recovered; otherwise the trimmed input is returned.
func CanonicalCommentURL(input string, comment domain.CommentID) string {
	if video, err := NormalizeVideoID(input); err == nil {
		return CommentURL(video, comment)
	}
	return strings.TrimSpace(input)
}

// parseURL accepts absolute URLs and scheme-less host/path forms.
func parseURL(s string) (*url.URL, bool) {
	if strings.ContainsAny(s, " \t\n") {
		return nil, false
	}
	if !strings.Contains(s, "://") {
		if !strings.Contains(s, "/") && !strings.Contains(s, "?") {
			return nil, false
		}
		s = "https://" + strings.TrimPrefix(s, "//")
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return nil, false
	}
	return u, true
}

func videoIDFromPath(u *url.URL) (domain.VideoID, bool) {
	segments := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "", false
	}

	if shortHosts[strings.ToLower(u.Hostname())] {
		if videoIDPattern.MatchString(segments[0]) {
			return domain.VideoID(segments[0]), true
		}
		return "", false
	}

	if len(segments) < 2 {
		return "", false
	}
	for _, prefix := range pathPrefixes {
		if segments[0] == prefix && videoIDPattern.MatchString(segments[1]) {
			return domain.VideoID(segments[1]), true
		}
	}
	return "", false
}
