package dto

// StartSessionRequest starts a transformation session. The asset fields are
// optional; a session for an existing image seeds them from the record.
type StartSessionRequest struct {
	Kind      string `json:"transformation_type"`
	ImageID   string `json:"image_id,omitempty"`
	PublicID  string `json:"public_id,omitempty"`
	SecureURL string `json:"secure_url,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// SessionResponse describes a transformation session's current state.
type SessionResponse struct {
	ID          string `json:"id"`
	Kind        string `json:"transformation_type"`
	State       string `json:"state"`
	RenderedURL string `json:"rendered_url,omitempty"`
	ImageID     string `json:"image_id,omitempty"`
}

// EditFieldRequest stages a debounced free-text edit.
type EditFieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// SelectAspectRatioRequest applies an aspect-ratio choice.
type SelectAspectRatioRequest struct {
	AspectRatio string `json:"aspect_ratio"`
}

// ApplyResponse is returned by a successful apply.
type ApplyResponse struct {
	State       string `json:"state"`
	RenderedURL string `json:"rendered_url"`
	Balance     int    `json:"credit_balance"`
}

// SaveSessionRequest persists the rendered result.
type SaveSessionRequest struct {
	Title string `json:"title"`
}

// SaveSessionResponse is returned by a successful save.
type SaveSessionResponse struct {
	State   string `json:"state"`
	ImageID string `json:"image_id"`
}
