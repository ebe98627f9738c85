package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/pixelift/pixelift/internal/model"
	"github.com/pixelift/pixelift/internal/repository"
	"github.com/pixelift/pixelift/internal/transform"
)

// fakeImageRepo is an in-memory imageRepository for unit tests.
type fakeImageRepo struct {
	images map[string]*model.Image
	owners map[string]model.ImageOwner
}

func newFakeImageRepo() *fakeImageRepo {
	return &fakeImageRepo{
		images: make(map[string]*model.Image),
		owners: make(map[string]model.ImageOwner),
	}
}

func (f *fakeImageRepo) CreateImage(_ context.Context, image *model.Image) error {
	cp := *image
	f.images[image.ID] = &cp
	return nil
}

func (f *fakeImageRepo) GetImageByID(_ context.Context, id string) (*model.GalleryImage, error) {
	img, ok := f.images[id]
	if !ok {
		return nil, repository.ErrImageNotFound
	}
	return &model.GalleryImage{Image: *img, Owner: f.owners[img.OwnerID]}, nil
}

func (f *fakeImageRepo) UpdateImage(_ context.Context, image *model.Image) error {
	if _, ok := f.images[image.ID]; !ok {
		return repository.ErrImageNotFound
	}
	cp := *image
	f.images[image.ID] = &cp
	return nil
}

func (f *fakeImageRepo) DeleteImage(_ context.Context, id string) error {
	if _, ok := f.images[id]; !ok {
		return repository.ErrImageNotFound
	}
	delete(f.images, id)
	return nil
}

func (f *fakeImageRepo) matching(filter repository.ImageFilter) []*model.Image {
	var out []*model.Image
	for _, img := range f.images {
		if filter.OwnerID != "" && img.OwnerID != filter.OwnerID {
			continue
		}
		if filter.PublicIDs != nil {
			found := false
			for _, pid := range filter.PublicIDs {
				if img.PublicID == pid {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, img)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (f *fakeImageRepo) ListImages(_ context.Context, filter repository.ImageFilter, skip, limit int) ([]*model.GalleryImage, error) {
	all := f.matching(filter)
	if skip >= len(all) {
		return nil, nil
	}
	all = all[skip:]
	if limit < len(all) {
		all = all[:limit]
	}
	out := make([]*model.GalleryImage, 0, len(all))
	for _, img := range all {
		out = append(out, &model.GalleryImage{Image: *img, Owner: f.owners[img.OwnerID]})
	}
	return out, nil
}

func (f *fakeImageRepo) CountImages(_ context.Context, filter repository.ImageFilter) (int, error) {
	return len(f.matching(filter)), nil
}

// fakeSearcher returns a canned public-id set.
type fakeSearcher struct {
	results []string
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]string, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

func seedImage(t *testing.T, repo *fakeImageRepo, id, ownerID, publicID string, updatedAt time.Time) {
	t.Helper()
	repo.images[id] = &model.Image{
		ID:        id,
		Title:     "img " + id,
		OwnerID:   ownerID,
		Kind:      model.KindRestore,
		PublicID:  publicID,
		SecureURL: "https://cdn.example.com/" + publicID,
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}
}

func TestCreateImage(t *testing.T) {
	t.Parallel()

	repo := newFakeImageRepo()
	svc := NewImageService(repo, nil, nil, nil)

	img, err := svc.CreateImage(context.Background(), transform.Record{
		Title:     "Old photo",
		Kind:      model.KindRestore,
		PublicID:  "pixelift/abc",
		SecureURL: "https://cdn.example.com/pixelift/abc",
		Width:     1024,
		Height:    768,
	}, "user-1")
	if err != nil {
		t.Fatalf("CreateImage() error = %v", err)
	}
	if img.ID == "" {
		t.Error("CreateImage() did not assign an id")
	}
	if img.OwnerID != "user-1" {
		t.Errorf("OwnerID = %q, want %q", img.OwnerID, "user-1")
	}
	if img.Width == nil || *img.Width != 1024 {
		t.Errorf("Width = %v, want 1024", img.Width)
	}
	if _, ok := repo.images[img.ID]; !ok {
		t.Error("image was not persisted")
	}
}

func TestCreateImage_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		record transform.Record
	}{
		{
			name:   "missing title",
			record: transform.Record{Kind: model.KindRestore, PublicID: "pixelift/abc"},
		},
		{
			name:   "missing public id",
			record: transform.Record{Title: "t", Kind: model.KindRestore},
		},
		{
			name:   "unknown kind",
			record: transform.Record{Title: "t", Kind: "sharpen", PublicID: "pixelift/abc"},
		},
	}

	svc := NewImageService(newFakeImageRepo(), nil, nil, nil)
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.CreateImage(context.Background(), tt.record, "user-1")
			if !errors.Is(err, ErrValidation) {
				t.Errorf("CreateImage() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestUpdateImage_NotOwner(t *testing.T) {
	t.Parallel()

	repo := newFakeImageRepo()
	seedImage(t, repo, "img-1", "user-1", "pixelift/a", time.Now())
	svc := NewImageService(repo, nil, nil, nil)

	_, err := svc.UpdateImage(context.Background(), transform.Record{
		ID:    "img-1",
		Title: "hijacked",
	}, "user-2")
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("UpdateImage() error = %v, want ErrNotOwner", err)
	}
	if got := repo.images["img-1"].Title; got != "img img-1" {
		t.Errorf("record changed after rejected update: title = %q", got)
	}
}

func TestUpdateImage(t *testing.T) {
	t.Parallel()

	repo := newFakeImageRepo()
	seedImage(t, repo, "img-1", "user-1", "pixelift/a", time.Now().Add(-time.Hour))
	svc := NewImageService(repo, nil, nil, nil)

	img, err := svc.UpdateImage(context.Background(), transform.Record{
		ID:       "img-1",
		Title:    "Restored portrait",
		Kind:     model.KindRecolor,
		Prompt:   "jacket",
		Color:    "red",
		PublicID: "pixelift/a2",
	}, "user-1")
	if err != nil {
		t.Fatalf("UpdateImage() error = %v", err)
	}
	if img.Title != "Restored portrait" {
		t.Errorf("Title = %q", img.Title)
	}
	if img.Kind != model.KindRecolor {
		t.Errorf("Kind = %q", img.Kind)
	}
	if img.PublicID != "pixelift/a2" {
		t.Errorf("PublicID = %q", img.PublicID)
	}
	if !img.UpdatedAt.After(img.CreatedAt) {
		t.Error("UpdatedAt was not advanced")
	}
}

func TestUpdateImage_NotFound(t *testing.T) {
	t.Parallel()

	svc := NewImageService(newFakeImageRepo(), nil, nil, nil)
	_, err := svc.UpdateImage(context.Background(), transform.Record{ID: "missing"}, "user-1")
	if !errors.Is(err, ErrImageNotFound) {
		t.Errorf("UpdateImage() error = %v, want ErrImageNotFound", err)
	}
}

func TestDeleteImage(t *testing.T) {
	t.Parallel()

	repo := newFakeImageRepo()
	seedImage(t, repo, "img-1", "user-1", "pixelift/a", time.Now())
	svc := NewImageService(repo, nil, nil, nil)

	if err := svc.DeleteImage(context.Background(), "img-1", "user-2"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("DeleteImage() by non-owner error = %v, want ErrNotOwner", err)
	}
	if _, ok := repo.images["img-1"]; !ok {
		t.Fatal("record deleted despite ownership rejection")
	}

	if err := svc.DeleteImage(context.Background(), "img-1", "user-1"); err != nil {
		t.Fatalf("DeleteImage() by owner error = %v", err)
	}
	if _, ok := repo.images["img-1"]; ok {
		t.Error("record still present after delete")
	}
}

func TestSave_CreateThenUpdate(t *testing.T) {
	t.Parallel()

	repo := newFakeImageRepo()
	svc := NewImageService(repo, nil, nil, nil)
	ctx := context.Background()

	id, err := svc.Save(ctx, transform.Record{
		Title:     "First",
		Kind:      model.KindFill,
		PublicID:  "pixelift/fill-1",
		SecureURL: "https://cdn.example.com/pixelift/fill-1",
	}, "user-1")
	if err != nil {
		t.Fatalf("Save() create error = %v", err)
	}
	if id == "" {
		t.Fatal("Save() returned empty id")
	}

	id2, err := svc.Save(ctx, transform.Record{ID: id, Title: "Second"}, "user-1")
	if err != nil {
		t.Fatalf("Save() update error = %v", err)
	}
	if id2 != id {
		t.Errorf("Save() update returned id %q, want %q", id2, id)
	}
	if repo.images[id].Title != "Second" {
		t.Errorf("Title = %q, want %q", repo.images[id].Title, "Second")
	}
}

func TestListGallery_SearchRestriction(t *testing.T) {
	t.Parallel()

	repo := newFakeImageRepo()
	now := time.Now()
	seedImage(t, repo, "img-a", "user-1", "pixelift/a", now.Add(-3*time.Minute))
	seedImage(t, repo, "img-b", "user-1", "pixelift/b", now.Add(-2*time.Minute))
	seedImage(t, repo, "img-c", "user-2", "pixelift/c", now.Add(-time.Minute))

	searcher := &fakeSearcher{results: []string{"pixelift/b", "pixelift/c"}}
	svc := NewImageService(repo, nil, searcher, nil)

	page, err := svc.ListGallery(context.Background(), ListGalleryInput{Query: "sunset"})
	if err != nil {
		t.Fatalf("ListGallery() error = %v", err)
	}
	if page.TotalCount != 2 {
		t.Fatalf("TotalCount = %d, want 2", page.TotalCount)
	}
	if got := page.Images[0].Image.ID; got != "img-c" {
		t.Errorf("Images[0] = %q, want img-c (newest first)", got)
	}
	if got := page.Images[1].Image.ID; got != "img-b" {
		t.Errorf("Images[1] = %q, want img-b", got)
	}
	if len(searcher.queries) != 1 || searcher.queries[0] != "sunset" {
		t.Errorf("searcher queries = %v", searcher.queries)
	}
}

func TestListGallery_SearchNoMatches(t *testing.T) {
	t.Parallel()

	repo := newFakeImageRepo()
	seedImage(t, repo, "img-a", "user-1", "pixelift/a", time.Now())

	svc := NewImageService(repo, nil, &fakeSearcher{results: []string{}}, nil)

	page, err := svc.ListGallery(context.Background(), ListGalleryInput{Query: "nothing"})
	if err != nil {
		t.Fatalf("ListGallery() error = %v", err)
	}
	if page.TotalCount != 0 || len(page.Images) != 0 {
		t.Errorf("got %d images (total %d), want empty page", len(page.Images), page.TotalCount)
	}
}

func TestListGallery_SearchUpstreamError(t *testing.T) {
	t.Parallel()

	svc := NewImageService(newFakeImageRepo(), nil, &fakeSearcher{err: errors.New("timeout")}, nil)
	_, err := svc.ListGallery(context.Background(), ListGalleryInput{Query: "sunset"})
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("ListGallery() error = %v, want ErrUpstream", err)
	}
}

func TestListGallery_Pagination(t *testing.T) {
	t.Parallel()

	repo := newFakeImageRepo()
	now := time.Now()
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("img-%02d", i)
		seedImage(t, repo, id, "user-1", "pixelift/"+id, now.Add(time.Duration(i)*time.Minute))
	}
	svc := NewImageService(repo, nil, nil, nil)
	ctx := context.Background()

	first, err := svc.ListGallery(ctx, ListGalleryInput{Page: 1, PageSize: 9})
	if err != nil {
		t.Fatalf("ListGallery() page 1 error = %v", err)
	}
	if first.TotalPages != 2 {
		t.Errorf("TotalPages = %d, want 2", first.TotalPages)
	}
	if len(first.Images) != 9 {
		t.Errorf("page 1 size = %d, want 9", len(first.Images))
	}

	second, err := svc.ListGallery(ctx, ListGalleryInput{Page: 2, PageSize: 9})
	if err != nil {
		t.Fatalf("ListGallery() page 2 error = %v", err)
	}
	if len(second.Images) != 1 {
		t.Fatalf("page 2 size = %d, want 1", len(second.Images))
	}
	if got := second.Images[0].Image.ID; got != "img-00" {
		t.Errorf("page 2 holds %q, want the oldest image img-00", got)
	}

	seen := make(map[string]bool)
	for _, gi := range append(first.Images, second.Images...) {
		if seen[gi.Image.ID] {
			t.Errorf("image %s appears on both pages", gi.Image.ID)
		}
		seen[gi.Image.ID] = true
	}
}

func TestListGallery_OwnerFilter(t *testing.T) {
	t.Parallel()

	repo := newFakeImageRepo()
	now := time.Now()
	seedImage(t, repo, "img-a", "user-1", "pixelift/a", now)
	seedImage(t, repo, "img-b", "user-2", "pixelift/b", now)

	svc := NewImageService(repo, nil, nil, nil)
	page, err := svc.ListGallery(context.Background(), ListGalleryInput{OwnerID: "user-2"})
	if err != nil {
		t.Fatalf("ListGallery() error = %v", err)
	}
	if page.TotalCount != 1 || page.Images[0].Image.ID != "img-b" {
		t.Errorf("owner filter returned %d images", page.TotalCount)
	}
}

// fakeGalleryCache stores pages in a map and counts the generation bumps.
type fakeGalleryCache struct {
	generation  int64
	pages       map[string][]byte
	invalidated int
}

func newFakeGalleryCache() *fakeGalleryCache {
	return &fakeGalleryCache{pages: make(map[string][]byte)}
}

func (f *fakeGalleryCache) GalleryGeneration(context.Context) (int64, error) {
	return f.generation, nil
}

func (f *fakeGalleryCache) GetGalleryPage(_ context.Context, key string) ([]byte, error) {
	payload, ok := f.pages[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return payload, nil
}

func (f *fakeGalleryCache) SetGalleryPage(_ context.Context, key string, payload []byte) error {
	f.pages[key] = payload
	return nil
}

func (f *fakeGalleryCache) InvalidateGallery(context.Context) error {
	f.generation++
	f.invalidated++
	return nil
}

func TestListGallery_CachesPages(t *testing.T) {
	t.Parallel()

	repo := newFakeImageRepo()
	seedImage(t, repo, "img-a", "user-1", "pixelift/a", time.Now())
	gc := newFakeGalleryCache()
	svc := NewImageService(repo, gc, nil, nil)
	ctx := context.Background()

	first, err := svc.ListGallery(ctx, ListGalleryInput{})
	if err != nil {
		t.Fatalf("ListGallery() error = %v", err)
	}
	if len(gc.pages) != 1 {
		t.Fatalf("cached pages = %d, want 1", len(gc.pages))
	}

	// The second read must be served from cache even after the backing
	// store changes underneath it.
	delete(repo.images, "img-a")
	second, err := svc.ListGallery(ctx, ListGalleryInput{})
	if err != nil {
		t.Fatalf("ListGallery() cached error = %v", err)
	}
	if second.TotalCount != first.TotalCount {
		t.Errorf("cached TotalCount = %d, want %d", second.TotalCount, first.TotalCount)
	}
}

func TestMutationsInvalidateGallery(t *testing.T) {
	t.Parallel()

	repo := newFakeImageRepo()
	gc := newFakeGalleryCache()
	svc := NewImageService(repo, gc, nil, nil)
	ctx := context.Background()

	img, err := svc.CreateImage(ctx, transform.Record{
		Title:     "t",
		Kind:      model.KindRestore,
		PublicID:  "pixelift/a",
		SecureURL: "https://cdn.example.com/pixelift/a",
	}, "user-1")
	if err != nil {
		t.Fatalf("CreateImage() error = %v", err)
	}
	if _, err := svc.UpdateImage(ctx, transform.Record{ID: img.ID, Title: "t2"}, "user-1"); err != nil {
		t.Fatalf("UpdateImage() error = %v", err)
	}
	if err := svc.DeleteImage(ctx, img.ID, "user-1"); err != nil {
		t.Fatalf("DeleteImage() error = %v", err)
	}

	if gc.invalidated != 3 {
		t.Errorf("gallery invalidations = %d, want 3 (create, update, delete)", gc.invalidated)
	}
}

// fakeNotifier records published lifecycle events.
type fakeNotifier struct {
	events []model.EventType
	err    error
}

func (f *fakeNotifier) PublishImageEvent(_ context.Context, eventType model.EventType, _ *model.Image) error {
	f.events = append(f.events, eventType)
	return f.err
}

func TestMutationsPublishEvents(t *testing.T) {
	t.Parallel()

	repo := newFakeImageRepo()
	notifier := &fakeNotifier{}
	svc := NewImageService(repo, nil, nil, nil)
	svc.SetNotifier(notifier)
	ctx := context.Background()

	img, err := svc.CreateImage(ctx, transform.Record{
		Title:     "t",
		Kind:      model.KindRestore,
		PublicID:  "pixelift/a",
		SecureURL: "https://cdn.example.com/pixelift/a",
	}, "user-1")
	if err != nil {
		t.Fatalf("CreateImage() error = %v", err)
	}
	if _, err := svc.UpdateImage(ctx, transform.Record{ID: img.ID, Title: "t2"}, "user-1"); err != nil {
		t.Fatalf("UpdateImage() error = %v", err)
	}
	if err := svc.DeleteImage(ctx, img.ID, "user-1"); err != nil {
		t.Fatalf("DeleteImage() error = %v", err)
	}

	want := []model.EventType{
		model.EventTypeImageCreated,
		model.EventTypeImageUpdated,
		model.EventTypeImageDeleted,
	}
	if len(notifier.events) != len(want) {
		t.Fatalf("published %d events, want %d", len(notifier.events), len(want))
	}
	for i, et := range want {
		if notifier.events[i] != et {
			t.Errorf("event[%d] = %q, want %q", i, notifier.events[i], et)
		}
	}
}

func TestMutations_NotifierFailureTolerated(t *testing.T) {
	t.Parallel()

	repo := newFakeImageRepo()
	svc := NewImageService(repo, nil, nil, nil)
	svc.SetNotifier(&fakeNotifier{err: errors.New("endpoints unavailable")})

	img, err := svc.CreateImage(context.Background(), transform.Record{
		Title:     "t",
		Kind:      model.KindRestore,
		PublicID:  "pixelift/a",
		SecureURL: "https://cdn.example.com/pixelift/a",
	}, "user-1")
	if err != nil {
		t.Fatalf("CreateImage() error = %v", err)
	}
	if _, ok := repo.images[img.ID]; !ok {
		t.Error("image was not persisted despite notifier failure")
	}
}
