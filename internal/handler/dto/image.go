// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/pixelift/pixelift/internal/model"
	"github.com/pixelift/pixelift/internal/service"
)

// SaveImageRequest represents the request body for creating or updating an
// image record directly (outside a transformation session).
type SaveImageRequest struct {
	Title             string `json:"title"`
	Kind              string `json:"transformation_type"`
	PublicID          string `json:"public_id"`
	SecureURL         string `json:"secure_url"`
	TransformationURL string `json:"transformation_url,omitempty"`
	Width             int    `json:"width,omitempty"`
	Height            int    `json:"height,omitempty"`
	AspectRatio       string `json:"aspect_ratio,omitempty"`
	Color             string `json:"color,omitempty"`
	Prompt            string `json:"prompt,omitempty"`
}

// OwnerResponse represents an image's owner in API responses.
type OwnerResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ImageResponse represents an image in API responses.
type ImageResponse struct {
	ID                string        `json:"id"`
	Title             string        `json:"title"`
	Kind              string        `json:"transformation_type"`
	PublicID          string        `json:"public_id"`
	SecureURL         string        `json:"secure_url"`
	TransformationURL string        `json:"transformation_url,omitempty"`
	Width             *int          `json:"width,omitempty"`
	Height            *int          `json:"height,omitempty"`
	AspectRatio       string        `json:"aspect_ratio,omitempty"`
	Color             string        `json:"color,omitempty"`
	Prompt            string        `json:"prompt,omitempty"`
	Owner             OwnerResponse `json:"owner"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// GalleryResponse represents a page of the gallery.
type GalleryResponse struct {
	Data       []ImageResponse `json:"data"`
	Page       int             `json:"page"`
	TotalPages int             `json:"total_pages"`
	TotalCount int             `json:"total_count"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToImageResponse converts a GalleryImage model to an ImageResponse DTO.
func ToImageResponse(gi *model.GalleryImage) *ImageResponse {
	return &ImageResponse{
		ID:                gi.Image.ID,
		Title:             gi.Image.Title,
		Kind:              string(gi.Image.Kind),
		PublicID:          gi.Image.PublicID,
		SecureURL:         gi.Image.SecureURL,
		TransformationURL: gi.Image.TransformationURL,
		Width:             gi.Image.Width,
		Height:            gi.Image.Height,
		AspectRatio:       gi.Image.AspectRatio,
		Color:             gi.Image.Color,
		Prompt:            gi.Image.Prompt,
		Owner: OwnerResponse{
			ID:        gi.Owner.ID,
			FirstName: gi.Owner.FirstName,
			LastName:  gi.Owner.LastName,
		},
		CreatedAt: gi.Image.CreatedAt,
		UpdatedAt: gi.Image.UpdatedAt,
	}
}

// ToGalleryResponse converts a service GalleryPage to a GalleryResponse.
func ToGalleryResponse(page *service.GalleryPage) *GalleryResponse {
	data := make([]ImageResponse, len(page.Images))
	for i, gi := range page.Images {
		data[i] = *ToImageResponse(gi)
	}
	return &GalleryResponse{
		Data:       data,
		Page:       page.Page,
		TotalPages: page.TotalPages,
		TotalCount: page.TotalCount,
	}
}
