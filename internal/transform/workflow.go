package transform

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pixelift/pixelift/internal/model"
)

// State names the position of a workflow in its lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateEditing   State = "editing"
	StateRendering State = "rendering"
	StateRendered  State = "rendered"
	StateSaving    State = "saving"
	StateSaved     State = "saved"
	StateError     State = "error"
)

// Workflow errors.
var (
	ErrNoSourceAsset       = errors.New("no source asset uploaded")
	ErrNothingStaged       = errors.New("no transformation staged")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrNotRendered         = errors.New("no rendered result to save")
	ErrApplyInProgress     = errors.New("apply already in progress")
	ErrRender              = errors.New("render failed")
)

// Ledger adjusts per-user credit balances. Balance is a plain read; it does
// not reserve anything.
type Ledger interface {
	Balance(ctx context.Context, userID string) (int, error)
	AdjustCreditBalance(ctx context.Context, userID string, delta int) (int, error)
}

// Renderer asks the external provider for a rendered-asset URL.
type Renderer interface {
	Render(ctx context.Context, publicID string, d *Descriptor, width, height int) (string, error)
}

// Record is the assembled image record handed to the store on save.
type Record struct {
	ID                string // empty for create, set for update
	Title             string
	Kind              model.TransformationKind
	PublicID          string
	SecureURL         string
	TransformationURL string
	Width             int
	Height            int
	Config            []byte
	AspectRatio       string
	Color             string
	Prompt            string
}

// Store persists assembled records. Save returns the stored record's id.
type Store interface {
	Save(ctx context.Context, rec Record, userID string) (string, error)
}

// Workflow drives one interactive transformation session for one user and
// one image. It is not shared across users or tabs. All transitions are
// serialized by the workflow's mutex; provider calls and the credit debit
// remain independent network operations with no compensating transaction.
type Workflow struct {
	mu       sync.Mutex
	id       string
	userID   string
	fee      int
	session  *Session
	ledger   Ledger
	renderer Renderer
	store    Store

	state       State
	renderedURL string
	imageID     string
}

// WorkflowConfig wires a workflow's collaborators.
type WorkflowConfig struct {
	ID       string
	UserID   string
	Fee      int
	Session  *Session
	Ledger   Ledger
	Renderer Renderer
	Store    Store
	// ImageID, when set, makes Save update the existing record
	// instead of creating a new one.
	ImageID string
}

// NewWorkflow creates a workflow in StateIdle.
func NewWorkflow(cfg WorkflowConfig) *Workflow {
	return &Workflow{
		id:       cfg.ID,
		userID:   cfg.UserID,
		fee:      cfg.Fee,
		session:  cfg.Session,
		ledger:   cfg.Ledger,
		renderer: cfg.Renderer,
		store:    cfg.Store,
		imageID:  cfg.ImageID,
		state:    StateIdle,
	}
}

// ID returns the workflow identifier.
func (w *Workflow) ID() string { return w.id }

// UserID returns the owning user.
func (w *Workflow) UserID() string { return w.userID }

// State returns the current lifecycle state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// RenderedURL returns the last rendered preview URL, if any.
func (w *Workflow) RenderedURL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.renderedURL
}

// ImageID returns the saved record id, set after a successful Save or when
// the workflow was opened for an existing image.
func (w *Workflow) ImageID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.imageID
}

// Session exposes the underlying form session.
func (w *Workflow) Session() *Session { return w.session }

// AttachAsset records the uploaded source asset and moves the workflow
// into editing.
func (w *Workflow) AttachAsset(publicID, secureURL string, width, height int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateRendering || w.state == StateSaving {
		return ErrApplyInProgress
	}
	if err := w.session.AttachAsset(publicID, secureURL, width, height); err != nil {
		return err
	}
	w.state = StateEditing
	return nil
}

// EditField stages a debounced free-text edit and moves the workflow into
// editing. Allowed from any settled state, including Error and Saved, so the
// user can retry after a failed attempt.
func (w *Workflow) EditField(field, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateRendering || w.state == StateSaving {
		return ErrApplyInProgress
	}
	if err := w.session.StageFieldEdit(field, value); err != nil {
		return err
	}
	w.state = StateEditing
	return nil
}

// SelectAspectRatio applies an aspect-ratio choice immediately and moves the
// workflow into editing.
func (w *Workflow) SelectAspectRatio(value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateRendering || w.state == StateSaving {
		return ErrApplyInProgress
	}
	if err := w.session.SelectAspectRatio(value); err != nil {
		return err
	}
	w.state = StateEditing
	return nil
}

// Apply commits the pending descriptor, requests a rendered-asset URL from
// the provider, and debits the fee. Preconditions: a source asset exists,
// the pending descriptor is non-nil, and the balance covers the fee. The
// debit is charged whenever Apply passes its preconditions, regardless of
// whether the render succeeds; there is no reversal on later failure.
//
// Because Apply consumes the pending descriptor, a rapid second invocation
// fails the pending precondition and cannot debit a second fee. A failed
// apply reinstates the committed descriptor as pending, so the user can
// retry without restaging; each retry is a fresh apply and charges its own
// fee.
func (w *Workflow) Apply(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateRendering || w.state == StateSaving {
		return "", ErrApplyInProgress
	}

	publicID, _, width, height := w.session.Asset()
	if publicID == "" {
		return "", ErrNoSourceAsset
	}
	if !w.session.HasPending() {
		return "", ErrNothingStaged
	}

	balance, err := w.ledger.Balance(ctx, w.userID)
	if err != nil {
		return "", fmt.Errorf("read balance: %w", err)
	}
	if balance < w.fee {
		return "", ErrInsufficientCredits
	}

	w.state = StateRendering
	active := w.session.Commit()

	url, renderErr := w.renderer.Render(ctx, publicID, active, width, height)

	// The fee is charged for the apply action itself, not for a successful
	// render. Accepted inconsistency window: the two calls are independent.
	if _, debitErr := w.ledger.AdjustCreditBalance(ctx, w.userID, -w.fee); debitErr != nil {
		w.session.RestorePending(active)
		w.state = StateError
		return "", fmt.Errorf("debit fee: %w", debitErr)
	}

	if renderErr != nil {
		// Reinstate the committed descriptor so the next Apply can commit
		// it again; fixed kinds have no other way to restage.
		w.session.RestorePending(active)
		w.state = StateError
		return "", fmt.Errorf("%w: %v", ErrRender, renderErr)
	}

	w.renderedURL = url
	w.state = StateRendered
	return url, nil
}

// Save assembles the image record from the active descriptor and hands it to
// the store. On failure the workflow stays in Rendered so the user can retry;
// on success it reaches Saved and exposes the stored record id.
func (w *Workflow) Save(ctx context.Context, title string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateRendering || w.state == StateSaving {
		return "", ErrApplyInProgress
	}
	if w.state != StateRendered {
		return "", ErrNotRendered
	}

	publicID, secureURL, width, height := w.session.Asset()
	if publicID == "" {
		return "", ErrNoSourceAsset
	}

	active := w.session.Active()
	config, err := active.Encode()
	if err != nil {
		return "", err
	}

	rec := Record{
		ID:                w.imageID,
		Title:             title,
		Kind:              w.session.Kind(),
		PublicID:          publicID,
		SecureURL:         secureURL,
		TransformationURL: w.renderedURL,
		Width:             width,
		Height:            height,
		Config:            config,
	}
	if active.Fill != nil {
		rec.AspectRatio = active.Fill.AspectRatio
	}
	if active.Remove != nil {
		rec.Prompt = active.Remove.Prompt
	}
	if active.Recolor != nil {
		rec.Prompt = active.Recolor.Prompt
		rec.Color = active.Recolor.To
	}

	w.state = StateSaving
	id, saveErr := w.store.Save(ctx, rec, w.userID)
	if saveErr != nil {
		w.state = StateRendered
		return "", fmt.Errorf("save image: %w", saveErr)
	}

	w.imageID = id
	w.state = StateSaved
	return id, nil
}

// Close releases the underlying session.
func (w *Workflow) Close() {
	w.session.Close()
}
