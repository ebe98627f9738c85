package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

// Access tokens look like plt_{env}_{prefix}_{secret}, for example
// plt_live_7a9x3k_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b. The prefix is
// stored in the clear for lookup; only the argon2 hash of the full
// token is persisted.
const (
	TokenPrefixLen = 6  // hex-encoded 3 bytes, visible in listings
	TokenSecretLen = 32 // hex-encoded 16 bytes
)

// Environment markers embedded in the token.
const (
	EnvLive = "live"
	EnvTest = "test"
)

// ErrInvalidTokenFormat indicates a token that does not match the
// plt_{env}_{prefix}_{secret} shape.
var ErrInvalidTokenFormat = errors.New("invalid access token format")

var tokenPattern = regexp.MustCompile(`^plt_(live|test)_([a-f0-9]{6})_([a-f0-9]{32})$`)

// GeneratedToken carries the parts of a freshly minted access token:
// the plaintext to show the caller exactly once, the hash to store, and
// the prefix for indexed lookup.
type GeneratedToken struct {
	Plaintext string
	Hash      string
	Prefix    string
}

// GenerateAccessToken mints a token for the given environment. Unknown
// environments fall back to live.
func GenerateAccessToken(env string) (*GeneratedToken, error) {
	if env != EnvLive && env != EnvTest {
		env = EnvLive
	}

	prefix, err := randomHex(TokenPrefixLen / 2)
	if err != nil {
		return nil, fmt.Errorf("generate prefix: %w", err)
	}
	secret, err := randomHex(TokenSecretLen / 2)
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	plaintext := fmt.Sprintf("plt_%s_%s_%s", env, prefix, secret)

	hash, err := HashSecret(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash token: %w", err)
	}

	return &GeneratedToken{
		Plaintext: plaintext,
		Hash:      hash,
		Prefix:    prefix,
	}, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// ParsedToken holds the components of a plaintext access token.
type ParsedToken struct {
	Env    string
	Prefix string
	Secret string
}

// ParseAccessToken splits a plaintext token into its components,
// returning ErrInvalidTokenFormat when the shape is wrong.
func ParseAccessToken(token string) (*ParsedToken, error) {
	matches := tokenPattern.FindStringSubmatch(token)
	if matches == nil {
		return nil, ErrInvalidTokenFormat
	}
	return &ParsedToken{
		Env:    matches[1],
		Prefix: matches[2],
		Secret: matches[3],
	}, nil
}

// ValidateTokenFormat reports whether token has the expected shape.
func ValidateTokenFormat(token string) bool {
	return tokenPattern.MatchString(token)
}
