package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/debemdeboas/draftroom/internal/auth"
	"github.com/debemdeboas/draftroom/internal/autosave"
	"github.com/debemdeboas/draftroom/internal/channel"
	"github.com/debemdeboas/draftroom/internal/collab"
	"github.com/debemdeboas/draftroom/internal/drafts"
	"github.com/debemdeboas/draftroom/internal/model"
	"github.com/debemdeboas/draftroom/internal/render"
	"github.com/debemdeboas/draftroom/internal/repository"
	"github.com/debemdeboas/draftroom/internal/repository/editor"
)

// stringsFlag collects a repeatable flag.
type stringsFlag []string

func (f *stringsFlag) String() string {
	return strings.Join(*f, ",")
}

func (f *stringsFlag) Set(v string) error {
	if v = strings.TrimSpace(v); v != "" {
		*f = append(*f, v)
	}
	return nil
}

// readLines feeds r line by line. The channel closes at EOF.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func nextLine(ctx context.Context, lines <-chan string) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-lines:
		return line, ok
	}
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s", errUsage, err)
	}
	return nil
}

// watch follows one or more drafts until interrupted. ":reconnect" revives a
// dormant channel and ":reload" refetches every draft.
func (a *app) watch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	var draftIDs stringsFlag
	fs.Var(&draftIDs, "draft", "Draft to watch, repeatable")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if len(draftIDs) == 0 {
		return fmt.Errorf("%w: -draft is required", errUsage)
	}

	token, err := a.tokens.Token(ctx)
	if err != nil {
		return err
	}

	states := make(chan channel.State, 16)
	ch := a.newChannel(func(s channel.State) {
		select {
		case states <- s:
		default:
		}
	})
	defer ch.Disconnect()

	dispatcher := a.newDispatcher()
	defer dispatcher.Close()

	coord := collab.NewCoordinator(a.client, ch, dispatcher, a.self)

	var views []*collab.View
	for _, id := range draftIDs {
		v, err := coord.Activate(ctx, model.DraftID(id))
		if err != nil {
			a.print(a.renderer.Error(err))
			continue
		}
		defer v.Deactivate()

		v.OnChange(func(s collab.Snapshot) {
			a.print(a.renderer.Thread(s, coord.LiveUpdatesPaused()))
		})
		a.print(a.renderer.Thread(v.Snapshot(), coord.LiveUpdatesPaused()))
		views = append(views, v)
	}
	if len(views) == 0 {
		return fmt.Errorf("no draft could be loaded")
	}
	ch.Connect(token)

	reload := func() {
		for _, v := range views {
			if err := v.Reload(ctx); err != nil {
				a.print(a.renderer.Error(err))
			}
		}
	}

	lines := a.in
	paused := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-states:
			switch {
			case s == channel.Reconnecting || s == channel.Dormant:
				if !paused {
					a.print(a.renderer.Paused())
				}
				paused = true
			case s == channel.Open && paused:
				// Events sent while the socket was down are lost.
				paused = false
				reload()
			}
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			switch strings.TrimSpace(line) {
			case ":reconnect":
				ch.Connect(token)
			case ":reload":
				reload()
			}
		}
	}
}

func (a *app) comment(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("comment", flag.ContinueOnError)
	draftID := fs.String("draft", "", "Draft to comment on")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	text := strings.Join(fs.Args(), " ")
	if *draftID == "" || strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: -draft and a comment are required", errUsage)
	}

	ch := a.newChannel(nil)
	defer ch.Disconnect()
	dispatcher := a.newDispatcher()
	defer dispatcher.Close()

	coord := collab.NewCoordinator(a.client, ch, dispatcher, a.self)
	v, err := coord.Activate(ctx, model.DraftID(*draftID))
	if err != nil {
		a.print(a.renderer.Error(err))
		return err
	}
	defer v.Deactivate()

	c, err := v.AddComment(ctx, text)
	if err != nil {
		a.print(a.renderer.Error(err))
		return err
	}
	a.print(a.renderer.Comment(*c, v.Snapshot().Collaborators))
	return nil
}

func (a *app) compose(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("compose", flag.ContinueOnError)
	platform := fs.String("platform", "", "Platform the post is written for")
	draftID := fs.String("draft", "", "Existing draft to update")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *platform == "" {
		return fmt.Errorf("%w: -platform is required", errUsage)
	}

	store, err := repository.Open(ctx, a.cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	slots := editor.NewSlotRepository(store, a.cfg.Autosave.Namespace)
	scheduler := autosave.New(slots, model.PlatformID(*platform), autosave.Options{Interval: a.cfg.Autosave.Interval})

	if user, ok := auth.UserFromContext(ctx); ok && user.DisplayName() != "" {
		a.print(fmt.Sprintf("Composing for %s as %s", *platform, user.DisplayName()))
	}

	session := &composeSession{
		lines:     a.in,
		out:       a.out,
		renderer:  a.renderer,
		scheduler: scheduler,
		service:   drafts.NewService(a.client, slotClearer{scheduler: scheduler, fallback: slots}),
		draftID:   model.DraftID(*draftID),
	}
	return session.run(ctx)
}

// slotClearer routes clears of the composing platform through its scheduler
// so the scheduler does not write the slot back.
type slotClearer struct {
	scheduler *autosave.Scheduler
	fallback  drafts.SlotClearer
}

func (c slotClearer) Clear(ctx context.Context, platform model.PlatformID) error {
	if platform == c.scheduler.Platform() {
		return c.scheduler.Clear(ctx)
	}
	return c.fallback.Clear(ctx, platform)
}

type composeSession struct {
	lines     <-chan string
	out       io.Writer
	renderer  *render.Renderer
	scheduler *autosave.Scheduler
	service   *drafts.Service
	draftID   model.DraftID
}

func (s *composeSession) print(v string) {
	fmt.Fprintln(s.out, v)
}

// run reads the composition line by line. Lines starting with ':' are
// commands; the session ends on :save, :submit, :discard or end of input.
func (s *composeSession) run(ctx context.Context) error {
	if s.draftID == "" {
		s.offerRestore(ctx)
	}

	runCtx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	go func() {
		s.scheduler.Run(runCtx)
		close(stopped)
	}()
	defer func() {
		cancel()
		<-stopped
	}()

	for {
		line, ok := nextLine(ctx, s.lines)
		if !ok {
			// Keep whatever was typed for the next session.
			_ = s.scheduler.Tick(context.WithoutCancel(ctx))
			return nil
		}

		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		switch cmd {
		case ":save":
			if _, err := s.save(ctx); err != nil {
				s.print(s.renderer.Error(err))
				continue
			}
			return nil
		case ":submit":
			id, err := s.save(ctx)
			if err == nil {
				err = s.service.Submit(ctx, id)
			}
			if err != nil {
				s.print(s.renderer.Error(err))
				continue
			}
			s.print(fmt.Sprintf("Draft %s submitted for review", id))
			return nil
		case ":discard":
			return s.scheduler.Discard(ctx)
		case ":media":
			media := append(s.scheduler.Composition().MediaURLs, strings.Fields(arg)...)
			s.scheduler.SetMedia(media)
		case ":schedule":
			at, err := time.Parse(time.RFC3339, strings.TrimSpace(arg))
			if err != nil {
				s.print(s.renderer.Error(fmt.Errorf("invalid schedule time: %w", err)))
				continue
			}
			s.scheduler.SetSchedule(&at)
		default:
			content := s.scheduler.Composition().Content
			if content != "" {
				content += "\n"
			}
			s.scheduler.SetContent(content + line)
		}
	}
}

func (s *composeSession) offerRestore(ctx context.Context) {
	pending := s.scheduler.Pending(ctx)
	if pending == nil {
		return
	}
	s.print(s.renderer.PendingPrompt(pending))

	answer, _ := nextLine(ctx, s.lines)
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		s.scheduler.Restore(pending)
	default:
		if err := s.scheduler.Discard(ctx); err != nil {
			s.print(s.renderer.Error(err))
		}
	}
}

func (s *composeSession) save(ctx context.Context) (model.DraftID, error) {
	composition := s.scheduler.Composition()
	id, err := s.service.Save(ctx, s.draftID, &composition)
	if err != nil {
		return "", err
	}
	s.draftID = id
	s.print(fmt.Sprintf("Draft %s saved", id))
	return id, nil
}
