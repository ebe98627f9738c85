// Package model defines domain entities for the application.
package model

import "time"

// TransformationKind identifies which provider transformation an image uses.
type TransformationKind string

const (
	KindRestore          TransformationKind = "restore"
	KindFill             TransformationKind = "fill"
	KindRemove           TransformationKind = "remove"
	KindRecolor          TransformationKind = "recolor"
	KindRemoveBackground TransformationKind = "removeBackground"
)

// Kinds lists every supported transformation kind.
var Kinds = []TransformationKind{
	KindRestore,
	KindFill,
	KindRemove,
	KindRecolor,
	KindRemoveBackground,
}

// IsValid checks if the kind is one of the supported transformations.
func (k TransformationKind) IsValid() bool {
	switch k {
	case KindRestore, KindFill, KindRemove, KindRecolor, KindRemoveBackground:
		return true
	}
	return false
}

// AcceptsPrompt reports whether the kind takes free-text parameters.
func (k TransformationKind) AcceptsPrompt() bool {
	return k == KindRemove || k == KindRecolor
}

// Fixed reports whether the kind's descriptor is fixed once an asset exists.
func (k TransformationKind) Fixed() bool {
	return k == KindRestore || k == KindRemoveBackground
}

// Image represents a saved transformation result owned by one user.
// Config holds the serialized transformation descriptor; consumers must
// deserialize it before merging or re-rendering.
type Image struct {
	ID                string             `json:"id"`
	Title             string             `json:"title"`
	OwnerID           string             `json:"owner_id"`
	Kind              TransformationKind `json:"transformation_type"`
	PublicID          string             `json:"public_id"`
	SecureURL         string             `json:"secure_url"`
	TransformationURL string             `json:"transformation_url,omitempty"`
	Width             *int               `json:"width,omitempty"`
	Height            *int               `json:"height,omitempty"`
	Config            []byte             `json:"-"`
	AspectRatio       string             `json:"aspect_ratio,omitempty"`
	Color             string             `json:"color,omitempty"`
	Prompt            string             `json:"prompt,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// ImageOwner carries the display fields of an image's owning user,
// joined in by gallery queries.
type ImageOwner struct {
	ID         string `json:"id"`
	ProviderID string `json:"provider_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

// GalleryImage pairs an image with its owner for listing responses.
type GalleryImage struct {
	Image Image      `json:"image"`
	Owner ImageOwner `json:"owner"`
}
