package cache

import (
	"strings"
	"testing"
)

func TestHashIP(t *testing.T) {
	t.Parallel()

	addrs := []string{
		"192.168.1.1",
		"192.168.1.2",
		"10.0.0.1",
		"127.0.0.1",
		"::1",
		"2001:0db8:85a3:0000:0000:8a2e:0370:7334",
		"8.8.8.8",
		"",
	}

	seen := make(map[string]string, len(addrs))
	for _, ip := range addrs {
		hash := hashIP(ip)

		// Truncated SHA-256: 8 bytes as 16 hex characters.
		if len(hash) != 16 {
			t.Errorf("hashIP(%q) length = %d, want 16", ip, len(hash))
		}
		if hash != hashIP(ip) {
			t.Errorf("hashIP(%q) is not deterministic", ip)
		}
		if prev, dup := seen[hash]; dup {
			t.Errorf("hashIP collision: %q and %q both hash to %s", prev, ip, hash)
		}
		seen[hash] = ip
	}
}

func TestGalleryPageKey_Deterministic(t *testing.T) {
	t.Parallel()

	key1 := GalleryPageKey(3, "mountain", "", 1, 9)
	key2 := GalleryPageKey(3, "mountain", "", 1, 9)

	if key1 != key2 {
		t.Errorf("Same inputs should produce same key: %q vs %q", key1, key2)
	}
}

func TestGalleryPageKey_Distinct(t *testing.T) {
	t.Parallel()

	base := GalleryPageKey(3, "mountain", "", 1, 9)

	tests := []struct {
		name string
		key  string
	}{
		{"different generation", GalleryPageKey(4, "mountain", "", 1, 9)},
		{"different query", GalleryPageKey(3, "beach", "", 1, 9)},
		{"different owner", GalleryPageKey(3, "mountain", "user-1", 1, 9)},
		{"different page", GalleryPageKey(3, "mountain", "", 2, 9)},
		{"different page size", GalleryPageKey(3, "mountain", "", 1, 12)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if tt.key == base {
				t.Errorf("key %q should differ from base %q", tt.key, base)
			}
		})
	}
}

func TestGalleryPageKey_NoRawInput(t *testing.T) {
	t.Parallel()

	// Query text must never appear verbatim in the key.
	key := GalleryPageKey(1, "mountain sunset", "", 1, 9)
	if strings.Contains(key, "mountain") {
		t.Errorf("key %q leaks raw query text", key)
	}
	if strings.ContainsAny(key, " \n") {
		t.Errorf("key %q contains whitespace", key)
	}
}
