package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pixelift/pixelift/internal/model"
)

// Common errors for image repository operations.
var (
	ErrImageNotFound = errors.New("image not found")
)

// ImageFilter restricts image listing.
type ImageFilter struct {
	// OwnerID, when set, limits results to one user's images.
	OwnerID string
	// PublicIDs, when non-nil, limits results to records whose source-asset
	// reference is in the set (used by gallery search).
	PublicIDs []string
}

// CreateImage inserts a new image record.
func (r *Repository) CreateImage(ctx context.Context, image *model.Image) error {
	query := `
		INSERT INTO images (id, title, owner_id, kind, public_id, secure_url, transformation_url,
			width, height, config, aspect_ratio, color, prompt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.pool.Exec(ctx, query,
		image.ID,
		image.Title,
		image.OwnerID,
		image.Kind,
		image.PublicID,
		image.SecureURL,
		image.TransformationURL,
		image.Width,
		image.Height,
		image.Config,
		image.AspectRatio,
		image.Color,
		image.Prompt,
		image.CreatedAt,
		image.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}

	return nil
}

// GetImageByID retrieves an image record with its owner's display fields.
func (r *Repository) GetImageByID(ctx context.Context, id string) (*model.GalleryImage, error) {
	query := `
		SELECT i.id, i.title, i.owner_id, i.kind, i.public_id, i.secure_url, i.transformation_url,
		       i.width, i.height, i.config, i.aspect_ratio, i.color, i.prompt, i.created_at, i.updated_at,
		       u.id, u.provider_id, u.first_name, u.last_name
		FROM images i
		JOIN users u ON u.id = i.owner_id
		WHERE i.id = $1
	`

	item, err := scanGalleryImage(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to get image by ID: %w", err)
	}

	return item, nil
}

// UpdateImage updates an image record's mutable fields.
func (r *Repository) UpdateImage(ctx context.Context, image *model.Image) error {
	query := `
		UPDATE images
		SET title = $2, kind = $3, public_id = $4, secure_url = $5, transformation_url = $6,
		    width = $7, height = $8, config = $9, aspect_ratio = $10, color = $11, prompt = $12,
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		image.ID,
		image.Title,
		image.Kind,
		image.PublicID,
		image.SecureURL,
		image.TransformationURL,
		image.Width,
		image.Height,
		image.Config,
		image.AspectRatio,
		image.Color,
		image.Prompt,
	)
	if err != nil {
		return fmt.Errorf("failed to update image: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrImageNotFound
	}

	return nil
}

// DeleteImage removes an image record.
func (r *Repository) DeleteImage(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}

// ListImages retrieves a page of image records, newest-updated first.
// Ordering tie-break is id descending.
func (r *Repository) ListImages(ctx context.Context, filter ImageFilter, skip, limit int) ([]*model.GalleryImage, error) {
	query := `
		SELECT i.id, i.title, i.owner_id, i.kind, i.public_id, i.secure_url, i.transformation_url,
		       i.width, i.height, i.config, i.aspect_ratio, i.color, i.prompt, i.created_at, i.updated_at,
		       u.id, u.provider_id, u.first_name, u.last_name
		FROM images i
		JOIN users u ON u.id = i.owner_id
	`

	where, args := buildImageFilter(filter)
	query += where
	query += fmt.Sprintf(" ORDER BY i.updated_at DESC, i.id DESC OFFSET $%d LIMIT $%d", len(args)+1, len(args)+2)
	args = append(args, skip, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var items []*model.GalleryImage
	for rows.Next() {
		item, err := scanGalleryImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}

	return items, nil
}

// CountImages returns the number of records matching the filter.
func (r *Repository) CountImages(ctx context.Context, filter ImageFilter) (int, error) {
	query := `SELECT COUNT(*) FROM images i`
	where, args := buildImageFilter(filter)
	query += where

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return count, nil
}

func buildImageFilter(filter ImageFilter) (string, []any) {
	where := ""
	var args []any

	and := func() string {
		if where == "" {
			return " WHERE"
		}
		return " AND"
	}

	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		where += fmt.Sprintf("%s i.owner_id = $%d", and(), len(args))
	}
	if filter.PublicIDs != nil {
		args = append(args, filter.PublicIDs)
		where += fmt.Sprintf("%s i.public_id = ANY($%d)", and(), len(args))
	}

	return where, args
}

func scanGalleryImage(row pgx.Row) (*model.GalleryImage, error) {
	var item model.GalleryImage
	err := row.Scan(
		&item.Image.ID,
		&item.Image.Title,
		&item.Image.OwnerID,
		&item.Image.Kind,
		&item.Image.PublicID,
		&item.Image.SecureURL,
		&item.Image.TransformationURL,
		&item.Image.Width,
		&item.Image.Height,
		&item.Image.Config,
		&item.Image.AspectRatio,
		&item.Image.Color,
		&item.Image.Prompt,
		&item.Image.CreatedAt,
		&item.Image.UpdatedAt,
		&item.Owner.ID,
		&item.Owner.ProviderID,
		&item.Owner.FirstName,
		&item.Owner.LastName,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
