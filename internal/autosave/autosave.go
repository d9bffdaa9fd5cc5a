// Package autosave periodically writes the composition being edited to its
// platform's local slot.
package autosave

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/draftroom/internal/model"
	"github.com/debemdeboas/draftroom/internal/repository/editor"
)

var autosaveLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	autosaveLogger = l
}

const DefaultInterval = 30 * time.Second

// SlotStore is the platform-keyed slot the scheduler writes to.
type SlotStore = editor.Repository

// State is the lifecycle of one platform slot as seen by the scheduler.
type State int

const (
	Empty State = iota
	DirtyUnsaved
	Persisted
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case DirtyUnsaved:
		return "dirty-unsaved"
	case Persisted:
		return "persisted"
	}
	return "unknown"
}

type Options struct {
	Interval time.Duration
}

// Scheduler owns the composition of one platform. Mutators only flip the
// dirty flag; writes happen on Tick.
type Scheduler struct {
	slots    SlotStore
	platform model.PlatformID
	interval time.Duration

	// tick serializes writes so two ticks never overlap.
	tick sync.Mutex

	mu          sync.Mutex
	composition model.AutosaveDraft
	dirty       bool
	generation  uint64
	state       State
}

func New(slots SlotStore, platform model.PlatformID, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Scheduler{
		slots:       slots,
		platform:    platform,
		interval:    opts.Interval,
		composition: model.AutosaveDraft{Platform: platform},
	}
}

func (s *Scheduler) Platform() model.PlatformID {
	return s.platform
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Composition returns a copy of the current composition.
func (s *Scheduler) Composition() model.AutosaveDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyDraft(s.composition)
}

func (s *Scheduler) mutate(fn func(*model.AutosaveDraft)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.composition)
	s.dirty = true
	s.generation++
	s.state = DirtyUnsaved
}

func (s *Scheduler) SetContent(content string) {
	s.mutate(func(d *model.AutosaveDraft) { d.Content = content })
}

func (s *Scheduler) SetMedia(urls []string) {
	s.mutate(func(d *model.AutosaveDraft) { d.MediaURLs = append([]string(nil), urls...) })
}

func (s *Scheduler) SetSchedule(at *time.Time) {
	s.mutate(func(d *model.AutosaveDraft) {
		if at == nil {
			d.ScheduledFor = nil
			return
		}
		t := *at
		d.ScheduledFor = &t
	})
}

// Tick writes the composition when it changed since the last successful
// write. An empty composition is never written and stays dirty. The dirty
// flag is cleared only when the write succeeded and no edit raced it.
func (s *Scheduler) Tick(ctx context.Context) error {
	s.tick.Lock()
	defer s.tick.Unlock()

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	if s.composition.Empty() {
		s.mu.Unlock()
		autosaveLogger.Debug().Str("platform", string(s.platform)).Msg("Skipping autosave of empty composition")
		return nil
	}
	snapshot := copyDraft(s.composition)
	generation := s.generation
	s.mu.Unlock()

	if err := s.slots.Save(ctx, &snapshot); err != nil {
		autosaveLogger.Warn().Err(err).Str("platform", string(s.platform)).Msg("Autosave failed, will retry on next tick")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.composition.LastModified = snapshot.LastModified
	if s.generation == generation {
		s.dirty = false
		s.state = Persisted
	}
	autosaveLogger.Debug().Str("platform", string(s.platform)).Bool("dirty", s.dirty).Msg("Autosaved composition")
	return nil
}

// Run ticks every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	autosaveLogger.Info().Str("platform", string(s.platform)).Dur("interval", s.interval).Msg("Autosave started")
	for {
		select {
		case <-ctx.Done():
			autosaveLogger.Info().Str("platform", string(s.platform)).Msg("Autosave stopped")
			return
		case <-ticker.C:
			_ = s.Tick(ctx)
		}
	}
}

// Pending returns the slot left over from an earlier session, or nil. Read
// failures are logged and reported as no slot.
func (s *Scheduler) Pending(ctx context.Context) *model.AutosaveDraft {
	draft, err := s.slots.Load(ctx, s.platform)
	if err != nil {
		autosaveLogger.Warn().Err(err).Str("platform", string(s.platform)).Msg("Error reading autosave slot")
		return nil
	}
	return draft
}

// Restore hydrates the composition from a pending slot. The slot itself is
// kept until the next write or an explicit Clear.
func (s *Scheduler) Restore(draft *model.AutosaveDraft) {
	if draft == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.composition = copyDraft(*draft)
	s.composition.Platform = s.platform
	s.dirty = false
	s.generation++
	s.state = Empty
	autosaveLogger.Info().Str("platform", string(s.platform)).Time("last_modified", draft.LastModified).Msg("Restored autosaved composition")
}

// Discard drops a pending slot the user chose not to restore.
func (s *Scheduler) Discard(ctx context.Context) error {
	return s.clear(ctx, "Discarded autosave slot")
}

// Clear removes the slot after a successful save or submit.
func (s *Scheduler) Clear(ctx context.Context) error {
	return s.clear(ctx, "Cleared autosave slot")
}

func (s *Scheduler) clear(ctx context.Context, msg string) error {
	s.tick.Lock()
	defer s.tick.Unlock()

	if err := s.slots.Clear(ctx, s.platform); err != nil {
		autosaveLogger.Error().Err(err).Str("platform", string(s.platform)).Msg("Error clearing autosave slot")
		return err
	}

	s.mu.Lock()
	s.dirty = false
	s.generation++
	s.state = Empty
	s.mu.Unlock()

	autosaveLogger.Info().Str("platform", string(s.platform)).Msg(msg)
	return nil
}

func copyDraft(d model.AutosaveDraft) model.AutosaveDraft {
	d.MediaURLs = append([]string(nil), d.MediaURLs...)
	if d.ScheduledFor != nil {
		t := *d.ScheduledFor
		d.ScheduledFor = &t
	}
	return d
}
