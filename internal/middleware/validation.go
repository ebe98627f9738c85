// Package middleware provides HTTP middleware for the Pixelift API.
package middleware

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// Validation limits.
const (
	// MaxTitleLength is the maximum length for an image title.
	MaxTitleLength = 120

	// MaxPromptLength is the maximum length for a transformation prompt.
	MaxPromptLength = 500

	// MaxPublicIDLength is the maximum length for a media asset reference.
	MaxPublicIDLength = 255

	// MaxSearchQueryLength is the maximum length for a gallery search query.
	MaxSearchQueryLength = 200
)

// Validation errors.
var (
	ErrTitleTooLong      = errors.New("title exceeds maximum length")
	ErrTitleEmpty        = errors.New("title is required")
	ErrPromptTooLong     = errors.New("prompt exceeds maximum length")
	ErrPromptUnsafe      = errors.New("prompt contains control characters")
	ErrPublicIDTooLong   = errors.New("asset reference exceeds maximum length")
	ErrPublicIDInvalid   = errors.New("asset reference contains invalid characters")
	ErrColorInvalid      = errors.New("color is not a recognized name or hex value")
	ErrSearchQueryTooLong = errors.New("search query exceeds maximum length")
)

// validPublicIDPattern matches media asset public IDs.
// Allowed: letters, digits, hyphen, underscore, slash, dot.
var validPublicIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_/.-]+$`)

// validColorPattern matches CSS color names and hex values.
var validColorPattern = regexp.MustCompile(`^(#[0-9a-fA-F]{3}|#[0-9a-fA-F]{6}|[a-zA-Z]{2,30})$`)

// ValidateTitle validates an image title.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrTitleEmpty
	}
	if len(title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	return nil
}

// ValidatePrompt validates a free-text transformation prompt.
// Empty prompts are valid; the transformation rules decide whether one
// is required.
func ValidatePrompt(prompt string) error {
	if len(prompt) > MaxPromptLength {
		return ErrPromptTooLong
	}
	for _, r := range prompt {
		if unicode.IsControl(r) && r != '\n' {
			return ErrPromptUnsafe
		}
	}
	return nil
}

// ValidatePublicID validates a media asset reference.
func ValidatePublicID(publicID string) error {
	if publicID == "" {
		return nil // Optional at the transport layer; services enforce presence
	}
	if len(publicID) > MaxPublicIDLength {
		return ErrPublicIDTooLong
	}
	if !validPublicIDPattern.MatchString(publicID) {
		return ErrPublicIDInvalid
	}
	return nil
}

// ValidateColor validates a recolor target color.
func ValidateColor(color string) error {
	if color == "" {
		return nil
	}
	if !validColorPattern.MatchString(color) {
		return ErrColorInvalid
	}
	return nil
}

// ValidateSearchQuery validates a gallery search query.
func ValidateSearchQuery(query string) error {
	if len(query) > MaxSearchQueryLength {
		return ErrSearchQueryTooLong
	}
	return nil
}
