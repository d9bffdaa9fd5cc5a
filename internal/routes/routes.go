// Package routes defines the remote API and channel path constants.
package routes

import (
	"fmt"
	"net/url"
)

// REST
const (
	DraftCollaborators = "/drafts/%s/collaborators"
	DraftCollaborator  = "/drafts/%s/collaborators/%s"
	DraftComments      = "/drafts/%s/comments"
	DraftComment       = "/drafts/%s/comments/%s"

	PostDrafts      = "/posts/drafts"
	PostDraft       = "/posts/drafts/%s"
	PostDraftReview = "/posts/drafts/%s/review"

	NotificationsSend = "/notifications/send"

	AuthRefresh = "/auth/refresh"
)

// Channel
const ChannelPath = "/drafts"

// Path fills a route template, escaping each segment.
func Path(template string, segments ...string) string {
	args := make([]any, len(segments))
	for i, s := range segments {
		args[i] = url.PathEscape(s)
	}
	return fmt.Sprintf(template, args...)
}
