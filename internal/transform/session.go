package transform

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pixelift/pixelift/internal/model"
)

// DefaultDebounce is the window within which successive edits to the same
// field collapse to the last value.
const DefaultDebounce = time.Second

// Session errors.
var (
	ErrSessionClosed      = errors.New("form session is closed")
	ErrFieldNotEditable   = errors.New("field is not editable for this kind")
	ErrNotFillKind        = errors.New("aspect ratio applies only to fill")
	ErrUnknownAspectRatio = errors.New("unknown aspect ratio")
)

// Session holds the form state for one in-progress transformation: a pending
// descriptor (edits not yet applied) and an active descriptor (last applied
// and rendered). Free-text edits are staged through per-field debounce timers;
// only the most recent edit within the window survives.
type Session struct {
	mu      sync.Mutex
	kind    model.TransformationKind
	window  time.Duration
	pending *Descriptor
	active  *Descriptor
	staged  map[string]string
	timers  map[string]*time.Timer
	closed  bool

	publicID  string
	secureURL string
	width     int
	height    int
}

// NewSession creates a form session for the given kind. A window of zero
// selects DefaultDebounce.
func NewSession(kind model.TransformationKind, window time.Duration) (*Session, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("invalid transformation kind %q", kind)
	}
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Session{
		kind:   kind,
		window: window,
		staged: make(map[string]string),
		timers: make(map[string]*time.Timer),
	}, nil
}

// Kind returns the session's transformation kind.
func (s *Session) Kind() model.TransformationKind { return s.kind }

// AttachAsset records the uploaded source asset. For restore and
// removeBackground the descriptor is fixed, so attaching the asset
// auto-populates the pending descriptor.
func (s *Session) AttachAsset(publicID, secureURL string, width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.publicID = publicID
	s.secureURL = secureURL
	s.width = width
	s.height = height
	if s.kind.Fixed() && s.pending == nil && s.active == nil {
		s.pending = DefaultFor(s.kind)
	}
	return nil
}

// SeedActive installs a previously stored descriptor as the active one.
// Used when editing an already saved image.
func (s *Session) SeedActive(d *Descriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = d.Clone()
}

// StageFieldEdit stages a free-text field edit for kinds that accept one
// (remove: prompt; recolor: prompt, to). The edit is applied to the pending
// descriptor after the debounce window elapses with no newer edit.
func (s *Session) StageFieldEdit(field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if !s.fieldEditable(field) {
		return fmt.Errorf("%w: %s/%s", ErrFieldNotEditable, s.kind, field)
	}

	s.staged[field] = value
	if t, ok := s.timers[field]; ok {
		t.Stop()
	}
	s.timers[field] = time.AfterFunc(s.window, func() {
		s.flushField(field)
	})
	return nil
}

func (s *Session) fieldEditable(field string) bool {
	switch s.kind {
	case model.KindRemove:
		return field == "prompt"
	case model.KindRecolor:
		return field == "prompt" || field == "to"
	}
	return false
}

// flushField moves a staged value into the pending descriptor.
func (s *Session) flushField(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyStagedLocked(field)
}

func (s *Session) applyStagedLocked(field string) {
	if s.closed {
		return
	}
	value, ok := s.staged[field]
	if !ok {
		return
	}
	delete(s.staged, field)
	delete(s.timers, field)

	if s.pending == nil {
		s.pending = DefaultFor(s.kind)
	}
	switch s.kind {
	case model.KindRemove:
		s.pending.Remove.Prompt = value
	case model.KindRecolor:
		if field == "prompt" {
			s.pending.Recolor.Prompt = value
		} else {
			s.pending.Recolor.To = value
		}
	}
}

// SelectAspectRatio replaces the pending dimension fields immediately,
// with no debounce. Only valid for kind fill.
func (s *Session) SelectAspectRatio(value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.kind != model.KindFill {
		return ErrNotFillKind
	}
	opt, ok := AspectRatios[value]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAspectRatio, value)
	}
	s.pending = &Descriptor{Fill: &FillSpec{
		Background:  true,
		AspectRatio: value,
		Width:       opt.Width,
		Height:      opt.Height,
	}}
	s.width = opt.Width
	s.height = opt.Height
	return nil
}

// HasPending reports whether a pending descriptor (or an un-flushed staged
// edit) exists.
func (s *Session) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil || len(s.staged) > 0
}

// Pending returns a copy of the pending descriptor, flushing any staged
// edits first.
func (s *Session) Pending() *Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushAllLocked()
	return s.pending.Clone()
}

// Active returns a copy of the active descriptor.
func (s *Session) Active() *Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.Clone()
}

// Commit deep-merges the pending descriptor into the active one and clears
// pending. Staged edits whose debounce window has not yet elapsed are flushed
// before merging so a commit never drops the user's latest input.
func (s *Session) Commit() *Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushAllLocked()
	s.active = Merge(s.active, s.pending)
	s.pending = nil
	return s.active.Clone()
}

// RestorePending reinstates a descriptor as the pending one. A failed apply
// calls this with the descriptor it committed so the next apply can commit it
// again; without it, fixed kinds would have no way to restage. Edits staged
// since the failure win over the restored descriptor.
func (s *Session) RestorePending(d *Descriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || d == nil {
		return
	}
	if s.pending == nil {
		s.pending = d.Clone()
	}
}

func (s *Session) flushAllLocked() {
	for field, t := range s.timers {
		t.Stop()
		delete(s.timers, field)
	}
	for field := range s.staged {
		s.applyStagedLocked(field)
	}
}

// Asset returns the attached source asset reference and dimensions.
func (s *Session) Asset() (publicID, secureURL string, width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publicID, s.secureURL, s.width, s.height
}

// Close cancels outstanding debounce timers and rejects further edits.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for field, t := range s.timers {
		t.Stop()
		delete(s.timers, field)
	}
	s.staged = map[string]string{}
}
