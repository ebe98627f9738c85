package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pixelift/pixelift/internal/cache"
	"github.com/pixelift/pixelift/internal/metrics"
	"github.com/pixelift/pixelift/internal/model"
	"github.com/pixelift/pixelift/internal/repository"
	"github.com/pixelift/pixelift/internal/transform"
)

// Image service errors.
var (
	ErrImageNotFound = errors.New("image not found")
	ErrNotOwner      = errors.New("not the image owner")
	ErrUpstream      = errors.New("media provider unavailable")
)

// Gallery pagination bounds.
const (
	DefaultPageSize = 9
	MaxPageSize     = 50
)

// imageRepository is the persistence surface the image service needs.
// *repository.Repository satisfies it.
type imageRepository interface {
	CreateImage(ctx context.Context, image *model.Image) error
	GetImageByID(ctx context.Context, id string) (*model.GalleryImage, error)
	UpdateImage(ctx context.Context, image *model.Image) error
	DeleteImage(ctx context.Context, id string) error
	ListImages(ctx context.Context, filter repository.ImageFilter, skip, limit int) ([]*model.GalleryImage, error)
	CountImages(ctx context.Context, filter repository.ImageFilter) (int, error)
}

// Searcher resolves a free-text query to matching asset public IDs.
type Searcher interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// Notifier fans an image lifecycle event out to the owner's registered
// notification endpoints. *notify.Publisher satisfies it.
type Notifier interface {
	PublishImageEvent(ctx context.Context, eventType model.EventType, image *model.Image) error
}

// galleryCache is the cache surface the image service needs.
// *cache.Cache satisfies it.
type galleryCache interface {
	GalleryGeneration(ctx context.Context) (int64, error)
	GetGalleryPage(ctx context.Context, key string) ([]byte, error)
	SetGalleryPage(ctx context.Context, key string, payload []byte) error
	InvalidateGallery(ctx context.Context) error
}

// ImageService handles image records and the shared gallery.
type ImageService struct {
	repo     imageRepository
	cache    galleryCache
	searcher Searcher
	metrics  metrics.Recorder
	notifier Notifier
}

// NewImageService creates a new ImageService. Cache and searcher may be nil:
// without a cache every read hits the database, without a searcher text
// queries fail with ErrUpstream.
func NewImageService(repo imageRepository, galleryCache galleryCache, searcher Searcher, recorder metrics.Recorder) *ImageService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ImageService{
		repo:     repo,
		cache:    galleryCache,
		searcher: searcher,
		metrics:  recorder,
	}
}

// SetNotifier attaches an outbound notification publisher. Without one,
// image mutations simply do not fan out.
func (s *ImageService) SetNotifier(n Notifier) {
	s.notifier = n
}

// Save persists a workflow result as an image record. An empty record ID
// creates a new image; otherwise the existing record is updated with
// ownership enforced. Satisfies the workflow's store dependency.
func (s *ImageService) Save(ctx context.Context, record transform.Record, userID string) (string, error) {
	if record.ID == "" {
		img, err := s.CreateImage(ctx, record, userID)
		if err != nil {
			return "", err
		}
		return img.ID, nil
	}

	img, err := s.UpdateImage(ctx, record, userID)
	if err != nil {
		return "", err
	}
	return img.ID, nil
}

// CreateImage inserts a new image record owned by userID.
func (s *ImageService) CreateImage(ctx context.Context, record transform.Record, userID string) (*model.Image, error) {
	if record.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if record.PublicID == "" {
		return nil, fmt.Errorf("%w: source asset is required", ErrValidation)
	}
	if !record.Kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown transformation kind", ErrValidation)
	}

	now := time.Now().UTC()
	img := &model.Image{
		ID:                ulid.Make().String(),
		Title:             record.Title,
		OwnerID:           userID,
		Kind:              record.Kind,
		PublicID:          record.PublicID,
		SecureURL:         record.SecureURL,
		TransformationURL: record.TransformationURL,
		Width:             dimension(record.Width),
		Height:            dimension(record.Height),
		Config:            record.Config,
		AspectRatio:       record.AspectRatio,
		Color:             record.Color,
		Prompt:            record.Prompt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.CreateImage(ctx, img); err != nil {
		return nil, fmt.Errorf("failed to create image: %w", err)
	}

	s.metrics.IncImageSaved()
	s.invalidateGallery(ctx)
	s.publishEvent(ctx, model.EventTypeImageCreated, img)

	return img, nil
}

// GetImage retrieves an image with its owner summary.
func (s *ImageService) GetImage(ctx context.Context, id string) (*model.GalleryImage, error) {
	gi, err := s.repo.GetImageByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, err
	}
	return gi, nil
}

// UpdateImage replaces the mutable fields of an image record. The caller
// must be the owner; on ownership mismatch the record is left unchanged.
func (s *ImageService) UpdateImage(ctx context.Context, record transform.Record, userID string) (*model.Image, error) {
	existing, err := s.repo.GetImageByID(ctx, record.ID)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, err
	}

	if existing.Image.OwnerID != userID {
		return nil, ErrNotOwner
	}

	img := existing.Image
	if record.Title != "" {
		img.Title = record.Title
	}
	if record.Kind != "" {
		if !record.Kind.IsValid() {
			return nil, fmt.Errorf("%w: unknown transformation kind", ErrValidation)
		}
		img.Kind = record.Kind
	}
	if record.PublicID != "" {
		img.PublicID = record.PublicID
	}
	if record.SecureURL != "" {
		img.SecureURL = record.SecureURL
	}
	if record.TransformationURL != "" {
		img.TransformationURL = record.TransformationURL
	}
	if record.Width > 0 {
		img.Width = dimension(record.Width)
	}
	if record.Height > 0 {
		img.Height = dimension(record.Height)
	}
	if record.Config != nil {
		img.Config = record.Config
	}
	img.AspectRatio = record.AspectRatio
	img.Color = record.Color
	img.Prompt = record.Prompt
	img.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateImage(ctx, &img); err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to update image: %w", err)
	}

	s.metrics.IncImageUpdated()
	s.invalidateGallery(ctx)
	s.publishEvent(ctx, model.EventTypeImageUpdated, &img)

	return &img, nil
}

// DeleteImage removes an image record. Ownership is enforced here, never
// left to the caller.
func (s *ImageService) DeleteImage(ctx context.Context, id, userID string) error {
	existing, err := s.repo.GetImageByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return ErrImageNotFound
		}
		return err
	}

	if existing.Image.OwnerID != userID {
		return ErrNotOwner
	}

	if err := s.repo.DeleteImage(ctx, id); err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return ErrImageNotFound
		}
		return fmt.Errorf("failed to delete image: %w", err)
	}

	s.metrics.IncImageDeleted()
	s.invalidateGallery(ctx)
	s.publishEvent(ctx, model.EventTypeImageDeleted, &existing.Image)

	return nil
}

// ListGalleryInput defines input for listing the gallery.
type ListGalleryInput struct {
	Page     int
	PageSize int
	Query    string
	OwnerID  string // restrict to one user's images; empty = shared gallery
}

// GalleryPage is one page of gallery results.
type GalleryPage struct {
	Images     []*model.GalleryImage `json:"images"`
	Page       int                   `json:"page"`
	TotalPages int                   `json:"total_pages"`
	TotalCount int                   `json:"total_count"`
}

// ListGallery returns a page of images, newest updated first. A non-empty
// query is resolved through the media search API and restricts results to
// the matching assets.
func (s *ImageService) ListGallery(ctx context.Context, input ListGalleryInput) (*GalleryPage, error) {
	if input.Page < 1 {
		input.Page = 1
	}
	if input.PageSize <= 0 {
		input.PageSize = DefaultPageSize
	}
	if input.PageSize > MaxPageSize {
		input.PageSize = MaxPageSize
	}

	cacheKey := ""
	if s.cache != nil {
		gen, err := s.cache.GalleryGeneration(ctx)
		if err == nil {
			cacheKey = cache.GalleryPageKey(gen, input.Query, input.OwnerID, input.Page, input.PageSize)
			if payload, err := s.cache.GetGalleryPage(ctx, cacheKey); err == nil {
				var page GalleryPage
				if err := json.Unmarshal(payload, &page); err == nil {
					s.metrics.IncGalleryCacheHit()
					return &page, nil
				}
			}
			s.metrics.IncGalleryCacheMiss()
		}
	}

	filter := repository.ImageFilter{OwnerID: input.OwnerID}

	if input.Query != "" {
		if s.searcher == nil {
			return nil, fmt.Errorf("%w: search is not configured", ErrUpstream)
		}
		publicIDs, err := s.searcher.Search(ctx, input.Query)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		// A non-nil empty set means the query matched nothing.
		if publicIDs == nil {
			publicIDs = []string{}
		}
		filter.PublicIDs = publicIDs
	}

	total, err := s.repo.CountImages(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count images: %w", err)
	}

	skip := (input.Page - 1) * input.PageSize
	images, err := s.repo.ListImages(ctx, filter, skip, input.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	page := &GalleryPage{
		Images:     images,
		Page:       input.Page,
		TotalPages: (total + input.PageSize - 1) / input.PageSize,
		TotalCount: total,
	}
	if page.Images == nil {
		page.Images = []*model.GalleryImage{}
	}

	if s.cache != nil && cacheKey != "" {
		if payload, err := json.Marshal(page); err == nil {
			_ = s.cache.SetGalleryPage(ctx, cacheKey, payload)
		}
	}

	return page, nil
}

// dimension converts a pixel size to its nullable column form; zero means
// the provider did not report one.
func dimension(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

// invalidateGallery bumps the gallery cache generation. Failures are
// tolerated; stale pages age out by TTL.
func (s *ImageService) invalidateGallery(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.InvalidateGallery(ctx)
}

// publishEvent fans out to the owner's notification endpoints. A failed
// fan-out never fails the mutation that triggered it.
func (s *ImageService) publishEvent(ctx context.Context, eventType model.EventType, img *model.Image) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.PublishImageEvent(ctx, eventType, img)
}
