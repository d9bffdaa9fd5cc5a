// Package mention resolves @name tokens in comment text against a draft's
// collaborators.
package mention

import (
	"regexp"

	"github.com/debemdeboas/draftroom/internal/model"
)

var tokenPattern = regexp.MustCompile(`@(\w+)`)

// Segment is a run of comment text. Mention segments keep the leading @ in Text.
type Segment struct {
	Text    string
	Mention bool
	// Linked is set only when the token resolved to a collaborator.
	Linked bool
	UserID model.UserID
}

func byName(collaborators []model.Collaborator) map[string]model.UserID {
	names := make(map[string]model.UserID, len(collaborators))
	for _, c := range collaborators {
		if _, taken := names[c.Name]; !taken {
			names[c.Name] = c.ID
		}
	}
	return names
}

// Extract returns the ids of mentioned collaborators in order of first
// appearance. Tokens that match no collaborator name exactly are ignored.
func Extract(content string, collaborators []model.Collaborator) []model.UserID {
	names := byName(collaborators)

	var ids []model.UserID
	seen := make(map[model.UserID]bool)
	for _, m := range tokenPattern.FindAllStringSubmatch(content, -1) {
		id, ok := names[m[1]]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// Segments splits content for rendering. Adjacent plain text is merged, so an
// unresolved token becomes part of the surrounding text.
func Segments(content string, collaborators []model.Collaborator) []Segment {
	names := byName(collaborators)

	var out []Segment
	appendText := func(s string) {
		if s == "" {
			return
		}
		if n := len(out); n > 0 && !out[n-1].Mention {
			out[n-1].Text += s
			return
		}
		out = append(out, Segment{Text: s})
	}

	last := 0
	for _, loc := range tokenPattern.FindAllStringSubmatchIndex(content, -1) {
		appendText(content[last:loc[0]])
		token := content[loc[0]:loc[1]]
		if id, ok := names[content[loc[2]:loc[3]]]; ok {
			out = append(out, Segment{Text: token, Mention: true, Linked: true, UserID: id})
		} else {
			appendText(token)
		}
		last = loc[1]
	}
	appendText(content[last:])
	return out
}

// Recipients filters mentions down to the collaborators that should be
// notified: known ids other than self.
func Recipients(mentions []model.UserID, collaborators []model.Collaborator, self model.UserID) []model.Collaborator {
	known := make(map[model.UserID]model.Collaborator, len(collaborators))
	for _, c := range collaborators {
		known[c.ID] = c
	}

	var out []model.Collaborator
	seen := make(map[model.UserID]bool)
	for _, id := range mentions {
		c, ok := known[id]
		if !ok || id == self || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, c)
	}
	return out
}

// NewRecipients returns the mentions in current that were not in previous.
func NewRecipients(previous, current []model.UserID) []model.UserID {
	old := make(map[model.UserID]bool, len(previous))
	for _, id := range previous {
		old[id] = true
	}

	var added []model.UserID
	for _, id := range current {
		if !old[id] {
			added = append(added, id)
		}
	}
	return added
}
