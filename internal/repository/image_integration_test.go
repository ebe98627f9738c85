//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pixelift/pixelift/internal/model"
	"github.com/pixelift/pixelift/internal/testutil"
)

// ============================================================================
// Image Repository Integration Tests
// ============================================================================

func TestIntegrationImageRepository_CreateAndGet(t *testing.T) {
	ctx, repo := newImageTestEnv(t)

	owner := mustCreateUser(ctx, t, repo)
	img := testutil.NewTestImage(t, owner.ID)
	img.Kind = model.KindRecolor
	img.Prompt = "shoes"
	img.Color = "crimson"
	img.Config = []byte(`{"recolor":{"prompt":"shoes","to":"crimson","multiple":true}}`)

	if err := repo.CreateImage(ctx, img); err != nil {
		t.Fatalf("CreateImage failed: %v", err)
	}

	retrieved, err := repo.GetImageByID(ctx, img.ID)
	if err != nil {
		t.Fatalf("GetImageByID failed: %v", err)
	}

	if retrieved.Image.Kind != model.KindRecolor {
		t.Errorf("Kind mismatch: got %q, want %q", retrieved.Image.Kind, model.KindRecolor)
	}
	if retrieved.Image.Prompt != "shoes" {
		t.Errorf("Prompt mismatch: got %q, want %q", retrieved.Image.Prompt, "shoes")
	}
	if retrieved.Owner.ID != owner.ID {
		t.Errorf("Owner ID mismatch: got %q, want %q", retrieved.Owner.ID, owner.ID)
	}
	if retrieved.Owner.Username != owner.Username {
		t.Errorf("Owner username mismatch: got %q, want %q", retrieved.Owner.Username, owner.Username)
	}
}

func TestIntegrationImageRepository_Get_NotFound(t *testing.T) {
	ctx, repo := newImageTestEnv(t)

	_, err := repo.GetImageByID(ctx, "nonexistent-image")
	if !errors.Is(err, ErrImageNotFound) {
		t.Errorf("Expected ErrImageNotFound, got: %v", err)
	}
}

func TestIntegrationImageRepository_Update(t *testing.T) {
	ctx, repo := newImageTestEnv(t)

	owner := mustCreateUser(ctx, t, repo)
	img := testutil.NewTestImage(t, owner.ID)

	if err := repo.CreateImage(ctx, img); err != nil {
		t.Fatalf("CreateImage failed: %v", err)
	}

	img.Title = "Renamed"
	img.TransformationURL = "https://media.example.com/t/e_gen_restore/sample.png"
	if err := repo.UpdateImage(ctx, img); err != nil {
		t.Fatalf("UpdateImage failed: %v", err)
	}

	retrieved, err := repo.GetImageByID(ctx, img.ID)
	if err != nil {
		t.Fatalf("GetImageByID failed: %v", err)
	}
	if retrieved.Image.Title != "Renamed" {
		t.Errorf("Title mismatch: got %q, want %q", retrieved.Image.Title, "Renamed")
	}
}

func TestIntegrationImageRepository_Delete(t *testing.T) {
	ctx, repo := newImageTestEnv(t)

	owner := mustCreateUser(ctx, t, repo)
	img := testutil.NewTestImage(t, owner.ID)

	if err := repo.CreateImage(ctx, img); err != nil {
		t.Fatalf("CreateImage failed: %v", err)
	}
	if err := repo.DeleteImage(ctx, img.ID); err != nil {
		t.Fatalf("DeleteImage failed: %v", err)
	}

	_, err := repo.GetImageByID(ctx, img.ID)
	if !errors.Is(err, ErrImageNotFound) {
		t.Errorf("Expected ErrImageNotFound after delete, got: %v", err)
	}
}

func TestIntegrationImageRepository_List_NewestFirst(t *testing.T) {
	ctx, repo := newImageTestEnv(t)

	owner := mustCreateUser(ctx, t, repo)

	var ids []string
	for i := 0; i < 3; i++ {
		img := testutil.NewTestImage(t, owner.ID)
		if err := repo.CreateImage(ctx, img); err != nil {
			t.Fatalf("CreateImage (%d) failed: %v", i, err)
		}
		ids = append(ids, img.ID)
		time.Sleep(5 * time.Millisecond)
	}

	images, err := repo.ListImages(ctx, ImageFilter{}, 0, 10)
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}

	if len(images) != 3 {
		t.Fatalf("Expected 3 images, got %d", len(images))
	}

	// Most recently updated first.
	for i, want := range []string{ids[2], ids[1], ids[0]} {
		if images[i].Image.ID != want {
			t.Errorf("position %d: got %q, want %q", i, images[i].Image.ID, want)
		}
	}
}

func TestIntegrationImageRepository_List_OwnerFilter(t *testing.T) {
	ctx, repo := newImageTestEnv(t)

	alice := mustCreateUser(ctx, t, repo)
	bob := mustCreateUser(ctx, t, repo)

	for i := 0; i < 2; i++ {
		if err := repo.CreateImage(ctx, testutil.NewTestImage(t, alice.ID)); err != nil {
			t.Fatalf("CreateImage (alice %d) failed: %v", i, err)
		}
	}
	if err := repo.CreateImage(ctx, testutil.NewTestImage(t, bob.ID)); err != nil {
		t.Fatalf("CreateImage (bob) failed: %v", err)
	}

	images, err := repo.ListImages(ctx, ImageFilter{OwnerID: alice.ID}, 0, 10)
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}
	if len(images) != 2 {
		t.Errorf("Expected 2 images for owner, got %d", len(images))
	}
	for _, gi := range images {
		if gi.Image.OwnerID != alice.ID {
			t.Errorf("OwnerID mismatch: got %q, want %q", gi.Image.OwnerID, alice.ID)
		}
	}

	total, err := repo.CountImages(ctx, ImageFilter{OwnerID: alice.ID})
	if err != nil {
		t.Fatalf("CountImages failed: %v", err)
	}
	if total != 2 {
		t.Errorf("CountImages: got %d, want 2", total)
	}
}

func TestIntegrationImageRepository_List_PublicIDRestriction(t *testing.T) {
	ctx, repo := newImageTestEnv(t)

	owner := mustCreateUser(ctx, t, repo)

	a := testutil.NewTestImage(t, owner.ID)
	b := testutil.NewTestImage(t, owner.ID)
	c := testutil.NewTestImage(t, owner.ID)
	for _, img := range []*model.Image{a, b, c} {
		if err := repo.CreateImage(ctx, img); err != nil {
			t.Fatalf("CreateImage failed: %v", err)
		}
	}

	// Restriction to a subset returns only that subset.
	images, err := repo.ListImages(ctx, ImageFilter{PublicIDs: []string{b.PublicID, c.PublicID}}, 0, 10)
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}
	if len(images) != 2 {
		t.Errorf("Expected 2 images, got %d", len(images))
	}

	// Empty (non-nil) restriction matches nothing.
	images, err = repo.ListImages(ctx, ImageFilter{PublicIDs: []string{}}, 0, 10)
	if err != nil {
		t.Fatalf("ListImages (empty restriction) failed: %v", err)
	}
	if len(images) != 0 {
		t.Errorf("Expected 0 images for empty restriction, got %d", len(images))
	}
}

func TestIntegrationImageRepository_List_Pagination(t *testing.T) {
	ctx, repo := newImageTestEnv(t)

	owner := mustCreateUser(ctx, t, repo)
	for i := 0; i < 5; i++ {
		if err := repo.CreateImage(ctx, testutil.NewTestImage(t, owner.ID)); err != nil {
			t.Fatalf("CreateImage (%d) failed: %v", i, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	page1, err := repo.ListImages(ctx, ImageFilter{}, 0, 2)
	if err != nil {
		t.Fatalf("ListImages (page 1) failed: %v", err)
	}
	page2, err := repo.ListImages(ctx, ImageFilter{}, 2, 2)
	if err != nil {
		t.Fatalf("ListImages (page 2) failed: %v", err)
	}
	page3, err := repo.ListImages(ctx, ImageFilter{}, 4, 2)
	if err != nil {
		t.Fatalf("ListImages (page 3) failed: %v", err)
	}

	if len(page1) != 2 || len(page2) != 2 || len(page3) != 1 {
		t.Fatalf("page sizes: got %d/%d/%d, want 2/2/1", len(page1), len(page2), len(page3))
	}

	seen := map[string]bool{}
	for _, gi := range append(append(page1, page2...), page3...) {
		if seen[gi.Image.ID] {
			t.Errorf("image %q appeared on more than one page", gi.Image.ID)
		}
		seen[gi.Image.ID] = true
	}
}

// ============================================================================
// Test Environment Setup
// ============================================================================

func mustCreateUser(ctx context.Context, t *testing.T, repo *Repository) *model.User {
	t.Helper()
	user := testutil.NewTestUser(t)
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func newImageTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	// Reset users first (images depends on users)
	if err := testutil.ResetUsersSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset users schema: %v", err)
	}
	if err := testutil.ResetImagesSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset images schema: %v", err)
	}

	return ctx, repo
}
