// Package model defines the drafts, collaborators and comments shared by the
// REST client, the event channel and the local autosave store.
package model

import (
	"strings"
	"time"
)

type DraftID string

type PlatformID string

type Status string

const (
	StatusDraft    Status = "draft"
	StatusInReview Status = "in_review"
	StatusApproved Status = "approved"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusInReview, StatusApproved:
		return true
	}
	return false
}

// CanTransitionTo reports whether a draft may move from s to next.
// The lifecycle only moves forward: draft -> in_review -> approved.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusInReview
	case StatusInReview:
		return next == StatusApproved
	}
	return false
}

// Draft is a durable post composition owned by the remote API.
type Draft struct {
	ID           DraftID    `json:"id,omitempty"`
	Platform     PlatformID `json:"platform"`
	Content      string     `json:"content"`
	MediaURLs    []string   `json:"mediaUrls,omitempty"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
	Status       Status     `json:"status,omitempty"`
	LastModified time.Time  `json:"lastModified"`
}

// AutosaveDraft is the local-only shadow of a composition, keyed by platform.
// It has no identifier until it is promoted to a Draft.
type AutosaveDraft struct {
	Platform     PlatformID `json:"platform"`
	Content      string     `json:"content"`
	MediaURLs    []string   `json:"mediaUrls,omitempty"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
	LastModified time.Time  `json:"lastModified"`
}

// Empty reports whether there is nothing worth persisting.
func (a *AutosaveDraft) Empty() bool {
	return strings.TrimSpace(a.Content) == "" && len(a.MediaURLs) == 0
}

// Promote turns the autosave buffer into a durable draft body. Status is left
// empty so an update never moves the draft back in its lifecycle.
func (a *AutosaveDraft) Promote(id DraftID) *Draft {
	return &Draft{
		ID:           id,
		Platform:     a.Platform,
		Content:      a.Content,
		MediaURLs:    append([]string(nil), a.MediaURLs...),
		ScheduledFor: a.ScheduledFor,
		LastModified: a.LastModified,
	}
}
