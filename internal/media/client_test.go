package media

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/pixelift/pixelift/internal/transform"
)

func testClient(deliveryURL, apiURL string) *Client {
	return NewClient(Config{
		CloudName:   "demo",
		APIKey:      "key",
		APISecret:   "secret",
		Folder:      "pixelift",
		DeliveryURL: deliveryURL,
		APIURL:      apiURL,
	})
}

func TestDeliveryURL_Chains(t *testing.T) {
	t.Parallel()

	c := testClient("https://res.example.com/demo", "")

	tests := []struct {
		name       string
		descriptor *transform.Descriptor
		width      int
		height     int
		want       string
	}{
		{
			name:       "restore",
			descriptor: &transform.Descriptor{Restore: &transform.RestoreSpec{}},
			want:       "https://res.example.com/demo/image/upload/e_gen_restore/sample",
		},
		{
			name:       "background removal",
			descriptor: &transform.Descriptor{RemoveBackground: &transform.RemoveBackgroundSpec{}},
			want:       "https://res.example.com/demo/image/upload/e_background_removal/sample",
		},
		{
			name: "fill with aspect ratio and dimensions",
			descriptor: &transform.Descriptor{
				Fill: &transform.FillSpec{Background: true, AspectRatio: "9:16"},
			},
			width:  1000,
			height: 1778,
			want:   "https://res.example.com/demo/image/upload/b_gen_fill,ar_9:16,w_1000,h_1778,c_pad/sample",
		},
		{
			name: "remove with shadow",
			descriptor: &transform.Descriptor{
				Remove: &transform.RemoveSpec{Prompt: "street sign", RemoveShadow: true},
			},
			want: "https://res.example.com/demo/image/upload/e_gen_remove:prompt_street%20sign;remove-shadow_true/sample",
		},
		{
			name: "recolor multiple",
			descriptor: &transform.Descriptor{
				Recolor: &transform.RecolorSpec{Prompt: "shoes", To: "crimson", Multiple: true},
			},
			want: "https://res.example.com/demo/image/upload/e_gen_recolor:prompt_shoes;to-color_crimson;multiple_true/sample",
		},
		{
			name:       "empty descriptor",
			descriptor: &transform.Descriptor{},
			want:       "https://res.example.com/demo/image/upload/sample",
		},
		{
			name:       "nil descriptor",
			descriptor: nil,
			want:       "https://res.example.com/demo/image/upload/sample",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := c.DeliveryURL("sample", tt.descriptor, tt.width, tt.height)
			if got != tt.want {
				t.Errorf("DeliveryURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender_RequestsDerivedAsset(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := testClient(srv.URL, "")
	d := &transform.Descriptor{Restore: &transform.RestoreSpec{}}

	url, err := c.Render(context.Background(), "pixelift/photo", d, 0, 0)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.HasSuffix(url, "/image/upload/e_gen_restore/pixelift/photo") {
		t.Errorf("Render URL = %q, want e_gen_restore chain", url)
	}
	if gotPath != "/image/upload/e_gen_restore/pixelift/photo" {
		t.Errorf("provider saw path %q", gotPath)
	}
}

func TestRender_UpstreamFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := testClient(srv.URL, "")
	d := &transform.Descriptor{Restore: &transform.RestoreSpec{}}

	_, err := c.Render(context.Background(), "pixelift/photo", d, 0, 0)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("Expected ErrUpstream, got: %v", err)
	}
	if !strings.Contains(err.Error(), "status 502") {
		t.Errorf("error should carry upstream status, got: %v", err)
	}
}

func TestSearch_ScopedExpression(t *testing.T) {
	t.Parallel()

	var gotBody searchRequest
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"resources": []map[string]string{
				{"public_id": "pixelift/a"},
				{"public_id": "pixelift/b"},
			},
		})
	}))
	t.Cleanup(srv.Close)

	c := testClient("", srv.URL)

	ids, err := c.Search(context.Background(), "mountain")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if want := []string{"pixelift/a", "pixelift/b"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("Search = %v, want %v", ids, want)
	}
	if gotBody.Expression != "folder=pixelift AND mountain" {
		t.Errorf("expression = %q, want folder-scoped query", gotBody.Expression)
	}
	if gotUser != "key" || gotPass != "secret" {
		t.Errorf("basic auth = %q:%q, want key:secret", gotUser, gotPass)
	}
}

func TestSearch_UpstreamFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	c := testClient("", srv.URL)

	_, err := c.Search(context.Background(), "mountain")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("Expected ErrUpstream, got: %v", err)
	}
}
