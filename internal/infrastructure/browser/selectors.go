package browser

import (
	"fmt"
	"net/http"
	"strings"

	"yt_multi_account/internal/domain"
)

// Page contract for youtube.com. Every DOM and network assumption the like
// flow makes lives in this file.
const (
	// SignInURL opens Google sign-in and returns to YouTube afterwards
	SignInURL = "https://accounts.google.com/ServiceLogin?service=youtube&continue=https%3A%2F%2Fwww.youtube.com%2F"

	// SignedInIndicator is the account avatar shown in the masthead once signed in
	SignedInIndicator = "#avatar-btn"

	// LikeActionPath is the internal endpoint the page calls when a comment is liked
	LikeActionPath = "/youtubei/v1/comment/perform_comment_action"

	commentContainer = ":is(ytd-comment-renderer, ytd-comment-view-model)"
	likeControl      = ":is(#like-button, like-button-view-model) button"
	pressedState     = `[aria-pressed="true"]`
)

// HighlightedLikeButton selects the like control of the comment YouTube marks
// as linked when the page is opened with ?lc=<id>.
func HighlightedLikeButton(id domain.CommentID) string {
	return fmt.Sprintf("%s[linked]:has(%s) %s", commentContainer, permalink(id), likeControl)
}

// ThreadLikeButton selects the like control of the rendered comment whose
// timestamp permalink points at id.
func ThreadLikeButton(id domain.CommentID) string {
	return fmt.Sprintf("%s:has(#published-time-text %s) %s", commentContainer, permalink(id), likeControl)
}

// Pressed narrows a like-control selector to its pressed state.
func Pressed(selector string) string {
	return selector + pressedState
}

// IsLikeConfirmation reports whether r is a successful like call.
func IsLikeConfirmation(r NetworkResponse) bool {
	return r.Status == http.StatusOK && strings.Contains(r.URL, LikeActionPath)
}

// permalink matches an anchor whose query carries lc=<id> as a whole value.
func permalink(id domain.CommentID) string {
	v := cssString("lc=" + string(id))
	w := cssString("lc=" + string(id) + "&")
	return fmt.Sprintf(":is(a[href$=%s], a[href*=%s])", v, w)
}

func cssString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `)
	return `"` + r.Replace(s) + `"`
}
