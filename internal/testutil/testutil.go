package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/pixelift/pixelift/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 917917

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// resetSchema applies the down then up migration for a single numbered migration.
func resetSchema(ctx context.Context, pool *pgxpool.Pool, name string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	downPath := filepath.Join(root, "migrations", name+".down.sql")
	upPath := filepath.Join(root, "migrations", name+".up.sql")

	downSQL, err := os.ReadFile(downPath)
	if err != nil {
		return fmt.Errorf("read %s down migration: %w", name, err)
	}
	if _, err := pool.Exec(ctx, string(downSQL)); err != nil {
		return fmt.Errorf("apply %s down migration: %w", name, err)
	}

	upSQL, err := os.ReadFile(upPath)
	if err != nil {
		return fmt.Errorf("read %s up migration: %w", name, err)
	}
	if _, err := pool.Exec(ctx, string(upSQL)); err != nil {
		return fmt.Errorf("apply %s up migration: %w", name, err)
	}

	return nil
}

// ResetUsersSchema drops and recreates the users schema for tests.
func ResetUsersSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000001_users")
}

// ResetImagesSchema drops and recreates the images schema for tests.
func ResetImagesSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000002_images")
}

// ResetTransactionsSchema drops and recreates the transactions schema for tests.
func ResetTransactionsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000003_transactions")
}

// ResetAccessTokensSchema drops and recreates the access_tokens schema for tests.
func ResetAccessTokensSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000004_access_tokens")
}

// ResetUsageSchema drops and recreates the usage tables for tests.
func ResetUsageSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000005_usage_events")
}

// ResetNotificationsSchema drops and recreates the notification tables for tests.
func ResetNotificationsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000006_notifications")
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates a test user with sensible defaults.
func NewTestUser(t testing.TB) *model.User {
	t.Helper()
	now := time.Now().UTC()
	n := now.UnixNano()
	return &model.User{
		ID:            fmt.Sprintf("user-%d", n),
		ProviderID:    fmt.Sprintf("idp-%d", n),
		Email:         fmt.Sprintf("user-%d@example.com", n),
		Username:      fmt.Sprintf("user%d", n),
		FirstName:     "Test",
		LastName:      "User",
		Plan:          model.PlanFree,
		CreditBalance: 10,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewTestImage creates a test image owned by the given user.
func NewTestImage(t testing.TB, ownerID string) *model.Image {
	t.Helper()
	now := time.Now().UTC()
	n := now.UnixNano()
	w, h := 1000, 1000
	return &model.Image{
		ID:        fmt.Sprintf("img-%d", n),
		Title:     fmt.Sprintf("Test Image %d", n),
		OwnerID:   ownerID,
		Kind:      model.KindRestore,
		PublicID:  fmt.Sprintf("pixelift/test-%d", n),
		SecureURL: fmt.Sprintf("https://media.example.com/pixelift/test-%d.png", n),
		Width:     &w,
		Height:    &h,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestAccessToken creates a test access token with sensible defaults.
func NewTestAccessToken(t testing.TB, userID string) *model.AccessToken {
	t.Helper()
	now := time.Now().UTC()
	return &model.AccessToken{
		ID:          fmt.Sprintf("token-%d", now.UnixNano()),
		UserID:      userID,
		TokenHash:   fmt.Sprintf("hash-%d", now.UnixNano()),
		TokenPrefix: "plt_test_",
		Scopes:      []string{model.ScopeRead, model.ScopeWrite},
		Name:        "Test Token",
		CreatedAt:   now,
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
