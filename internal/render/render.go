// Package render draws collaboration threads and autosave prompts for the terminal.
package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/debemdeboas/draftroom/internal/collab"
	"github.com/debemdeboas/draftroom/internal/config"
	"github.com/debemdeboas/draftroom/internal/mention"
	"github.com/debemdeboas/draftroom/internal/model"
	"github.com/debemdeboas/draftroom/internal/theme"
)

const timeLayout = "2006-01-02 15:04"

type Renderer struct {
	width int

	title    lipgloss.Style
	author   lipgloss.Style
	muted    lipgloss.Style
	text     lipgloss.Style
	mention  lipgloss.Style
	warning  lipgloss.Style
	errStyle lipgloss.Style
	card     lipgloss.Style
}

func New(th theme.Theme, width int) *Renderer {
	if width <= 0 {
		width = 80
	}
	return &Renderer{
		width:    width,
		title:    lipgloss.NewStyle().Foreground(th.Accent).Bold(true),
		author:   lipgloss.NewStyle().Foreground(th.Accent).Bold(true),
		muted:    lipgloss.NewStyle().Foreground(th.Muted),
		text:     lipgloss.NewStyle().Foreground(th.Text),
		mention:  lipgloss.NewStyle().Foreground(th.Mention).Bold(true),
		warning:  lipgloss.NewStyle().Foreground(th.Warning).Italic(true),
		errStyle: lipgloss.NewStyle().Foreground(th.Error),
		card: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(th.Border).
			PaddingLeft(1),
	}
}

// Thread renders the collaborators and comments of a draft.
func (r *Renderer) Thread(s collab.Snapshot, paused bool) string {
	var b strings.Builder
	b.WriteString(r.title.Render("Draft " + string(s.DraftID)))
	b.WriteString("\n")
	if paused {
		b.WriteString(r.Paused())
		b.WriteString("\n")
	}
	b.WriteString(r.Collaborators(s.Collaborators))
	b.WriteString("\n\n")

	if len(s.Comments) == 0 {
		b.WriteString(r.muted.Render("No comments yet"))
		return b.String()
	}
	for i, c := range s.Comments {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(r.Comment(c, s.Collaborators))
	}
	return b.String()
}

func (r *Renderer) Collaborators(collaborators []model.Collaborator) string {
	if len(collaborators) == 0 {
		return r.muted.Render("No collaborators")
	}
	parts := make([]string, 0, len(collaborators))
	for _, c := range collaborators {
		parts = append(parts, r.text.Render(c.Name)+" "+r.muted.Render("("+string(c.Role)+")"))
	}
	return r.muted.Render("With ") + strings.Join(parts, r.muted.Render(", "))
}

// Comment renders one comment. Mentions that resolve to a collaborator are
// highlighted, anything else stays plain text.
func (r *Renderer) Comment(c model.Comment, collaborators []model.Collaborator) string {
	header := r.author.Render(c.UserName) + " " + r.muted.Render(c.CreatedAt.Local().Format(timeLayout))
	if c.UpdatedAt != nil {
		header += " " + r.muted.Render("(edited)")
	}

	var body strings.Builder
	for _, seg := range mention.Segments(c.Content, collaborators) {
		if seg.Linked {
			body.WriteString(r.mention.Render(seg.Text))
			continue
		}
		body.WriteString(r.text.Render(seg.Text))
	}

	return r.card.Width(r.width).Render(header + "\n" + body.String())
}

func (r *Renderer) Paused() string {
	return r.warning.Render(config.MsgLiveUpdatesPaused)
}

// Error renders err as the short message a user should see.
func (r *Renderer) Error(err error) string {
	var actionErr *collab.ActionError
	if errors.As(err, &actionErr) {
		return r.errStyle.Render(actionErr.UserMessage())
	}
	return r.errStyle.Render(err.Error())
}

// PendingPrompt offers to restore an autosaved composition.
func (r *Renderer) PendingPrompt(d *model.AutosaveDraft) string {
	preview := d.Content
	if runes := []rune(preview); len(runes) > 60 {
		preview = string(runes[:60]) + "..."
	}
	lines := []string{
		r.title.Render(fmt.Sprintf("Unsaved %s draft from %s", d.Platform, d.LastModified.Local().Format(timeLayout))),
		r.card.Render(r.text.Render(preview)),
		r.muted.Render("Restore it? [y/N]"),
	}
	return strings.Join(lines, "\n")
}
