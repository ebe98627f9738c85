package media

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pixelift/pixelift/internal/transform"
)

// DeliveryURL builds the provider delivery URL for a transformed asset.
// The transformation chain is derived from the descriptor; width and height
// are appended when set so fill renders at the selected aspect ratio.
func (c *Client) DeliveryURL(publicID string, d *transform.Descriptor, width, height int) string {
	chain := transformationChain(d, width, height)
	if chain == "" {
		return fmt.Sprintf("%s/image/upload/%s", c.deliveryURL, publicID)
	}
	return fmt.Sprintf("%s/image/upload/%s/%s", c.deliveryURL, chain, publicID)
}

// Render eagerly requests the derived asset so the provider generates it
// before any gallery consumer fetches the URL. Returns the delivery URL.
func (c *Client) Render(ctx context.Context, publicID string, d *transform.Descriptor, width, height int) (string, error) {
	target := c.DeliveryURL(publicID, d, width, height)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("build render request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: render request failed: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: render returned status %d", ErrUpstream, resp.StatusCode)
	}

	return target, nil
}

// transformationChain converts a descriptor to the provider's URL syntax.
// One kind section is expected; when several are present the first in
// declaration order wins.
func transformationChain(d *transform.Descriptor, width, height int) string {
	if d == nil {
		return ""
	}

	switch {
	case d.Restore != nil:
		return "e_gen_restore"

	case d.Fill != nil:
		parts := []string{"b_gen_fill"}
		if d.Fill.AspectRatio != "" {
			parts = append(parts, "ar_"+d.Fill.AspectRatio)
		}
		if width > 0 {
			parts = append(parts, fmt.Sprintf("w_%d", width))
		}
		if height > 0 {
			parts = append(parts, fmt.Sprintf("h_%d", height))
		}
		parts = append(parts, "c_pad")
		return strings.Join(parts, ",")

	case d.Remove != nil:
		chain := "e_gen_remove:prompt_" + escapePrompt(d.Remove.Prompt)
		if d.Remove.RemoveShadow {
			chain += ";remove-shadow_true"
		}
		return chain

	case d.Recolor != nil:
		chain := "e_gen_recolor:prompt_" + escapePrompt(d.Recolor.Prompt)
		if d.Recolor.To != "" {
			chain += ";to-color_" + escapePrompt(d.Recolor.To)
		}
		if d.Recolor.Multiple {
			chain += ";multiple_true"
		}
		return chain

	case d.RemoveBackground != nil:
		return "e_background_removal"
	}

	return ""
}

// escapePrompt makes free-text prompts safe inside a URL path segment.
func escapePrompt(prompt string) string {
	return url.PathEscape(prompt)
}
