// Package transform implements the transformation-request lifecycle:
// descriptor construction, form-session staging, and the apply/save workflow.
package transform

import (
	"encoding/json"
	"fmt"

	"github.com/pixelift/pixelift/internal/model"
)

// Descriptor holds the provider-specific parameters of one requested
// transformation. It is a tagged union keyed by transformation kind:
// exactly one section is populated for a well-formed descriptor, though
// merging tolerates descriptors carrying several sections.
type Descriptor struct {
	Restore          *RestoreSpec          `json:"restore,omitempty"`
	Fill             *FillSpec             `json:"fill,omitempty"`
	Remove           *RemoveSpec           `json:"remove,omitempty"`
	Recolor          *RecolorSpec          `json:"recolor,omitempty"`
	RemoveBackground *RemoveBackgroundSpec `json:"removeBackground,omitempty"`
}

// RestoreSpec has no user-editable fields; presence of the section is
// the whole configuration.
type RestoreSpec struct{}

// RemoveBackgroundSpec has no user-editable fields.
type RemoveBackgroundSpec struct{}

// FillSpec configures generative fill/expand.
type FillSpec struct {
	Background  bool   `json:"background,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

// RemoveSpec configures generative object removal.
type RemoveSpec struct {
	Prompt       string `json:"prompt,omitempty"`
	RemoveShadow bool   `json:"removeShadow,omitempty"`
}

// RecolorSpec configures generative recoloring.
type RecolorSpec struct {
	Prompt   string `json:"prompt,omitempty"`
	To       string `json:"to,omitempty"`
	Multiple bool   `json:"multiple,omitempty"`
}

// DefaultFor returns the starting descriptor for a kind. For restore and
// removeBackground this is the complete, fixed configuration.
func DefaultFor(kind model.TransformationKind) *Descriptor {
	switch kind {
	case model.KindRestore:
		return &Descriptor{Restore: &RestoreSpec{}}
	case model.KindRemoveBackground:
		return &Descriptor{RemoveBackground: &RemoveBackgroundSpec{}}
	case model.KindFill:
		return &Descriptor{Fill: &FillSpec{Background: true}}
	case model.KindRemove:
		return &Descriptor{Remove: &RemoveSpec{RemoveShadow: true}}
	case model.KindRecolor:
		return &Descriptor{Recolor: &RecolorSpec{Multiple: true}}
	}
	return &Descriptor{}
}

// Merge combines a pending descriptor into an active one without mutating
// either input. Sections present in both are merged field by field with the
// pending value winning wherever it is set; sections absent from pending are
// preserved from active; sections only in pending are taken whole.
func Merge(active, pending *Descriptor) *Descriptor {
	if pending == nil {
		return active.Clone()
	}
	if active == nil {
		return pending.Clone()
	}

	out := &Descriptor{}

	if active.Restore != nil || pending.Restore != nil {
		out.Restore = &RestoreSpec{}
	}
	if active.RemoveBackground != nil || pending.RemoveBackground != nil {
		out.RemoveBackground = &RemoveBackgroundSpec{}
	}
	out.Fill = mergeFill(active.Fill, pending.Fill)
	out.Remove = mergeRemove(active.Remove, pending.Remove)
	out.Recolor = mergeRecolor(active.Recolor, pending.Recolor)

	return out
}

func mergeFill(a, p *FillSpec) *FillSpec {
	switch {
	case a == nil && p == nil:
		return nil
	case a == nil:
		cp := *p
		return &cp
	case p == nil:
		cp := *a
		return &cp
	}
	out := *a
	out.Background = out.Background || p.Background
	if p.AspectRatio != "" {
		out.AspectRatio = p.AspectRatio
	}
	if p.Width != 0 {
		out.Width = p.Width
	}
	if p.Height != 0 {
		out.Height = p.Height
	}
	return &out
}

func mergeRemove(a, p *RemoveSpec) *RemoveSpec {
	switch {
	case a == nil && p == nil:
		return nil
	case a == nil:
		cp := *p
		return &cp
	case p == nil:
		cp := *a
		return &cp
	}
	out := *a
	if p.Prompt != "" {
		out.Prompt = p.Prompt
	}
	out.RemoveShadow = out.RemoveShadow || p.RemoveShadow
	return &out
}

func mergeRecolor(a, p *RecolorSpec) *RecolorSpec {
	switch {
	case a == nil && p == nil:
		return nil
	case a == nil:
		cp := *p
		return &cp
	case p == nil:
		cp := *a
		return &cp
	}
	out := *a
	if p.Prompt != "" {
		out.Prompt = p.Prompt
	}
	if p.To != "" {
		out.To = p.To
	}
	out.Multiple = out.Multiple || p.Multiple
	return &out
}

// Clone returns a deep copy of the descriptor. Safe on nil.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	out := &Descriptor{}
	if d.Restore != nil {
		out.Restore = &RestoreSpec{}
	}
	if d.RemoveBackground != nil {
		out.RemoveBackground = &RemoveBackgroundSpec{}
	}
	if d.Fill != nil {
		cp := *d.Fill
		out.Fill = &cp
	}
	if d.Remove != nil {
		cp := *d.Remove
		out.Remove = &cp
	}
	if d.Recolor != nil {
		cp := *d.Recolor
		out.Recolor = &cp
	}
	return out
}

// IsZero reports whether no section is populated.
func (d *Descriptor) IsZero() bool {
	if d == nil {
		return true
	}
	return d.Restore == nil && d.Fill == nil && d.Remove == nil &&
		d.Recolor == nil && d.RemoveBackground == nil
}

// Encode serializes the descriptor for storage on an image record.
func (d *Descriptor) Encode() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode descriptor: %w", err)
	}
	return data, nil
}

// Decode deserializes a stored descriptor.
func Decode(data []byte) (*Descriptor, error) {
	if len(data) == 0 {
		return &Descriptor{}, nil
	}
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode descriptor: %w", err)
	}
	return &d, nil
}

// AspectRatioOption describes one selectable aspect ratio for fill.
type AspectRatioOption struct {
	Label  string
	Width  int
	Height int
}

// AspectRatios maps the selectable fill aspect ratios to their render sizes.
var AspectRatios = map[string]AspectRatioOption{
	"1:1":  {Label: "Square (1:1)", Width: 1000, Height: 1000},
	"3:4":  {Label: "Standard Portrait (3:4)", Width: 1000, Height: 1334},
	"9:16": {Label: "Phone Portrait (9:16)", Width: 1000, Height: 1778},
}
