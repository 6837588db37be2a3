// Package testutil provides shared fixtures for tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"blogshive/internal/database"
	"blogshive/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewTestDB returns a migrated in-memory sqlite database private to t.
// The pool holds a single connection; code under test must only use the
// transaction handle inside a transaction.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:blogshive_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// NewTestRedis returns a client connected to a fresh miniredis server.
func NewTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// CreateUser inserts a user with a placeholder password hash.
func CreateUser(t *testing.T, db *gorm.DB, username string, opts ...func(*models.User)) *models.User {
	t.Helper()
	u := &models.User{
		Username: username,
		Email:    strings.ToLower(username) + "@example.com",
		Password: "$2a$10$placeholderplaceholderplaceholderplaceholderpl",
	}
	for _, opt := range opts {
		opt(u)
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreatePost inserts a published public post by author.
func CreatePost(t *testing.T, db *gorm.DB, author *models.User, title string, opts ...func(*models.Post)) *models.Post {
	t.Helper()
	now := time.Now().UTC()
	p := &models.Post{
		AuthorID:    author.ID,
		Title:       title,
		Slug:        fmt.Sprintf("%s-%d", strings.ToLower(strings.ReplaceAll(title, " ", "-")), time.Now().UnixNano()),
		Content:     []models.Block{{Type: models.BlockParagraph, Text: "body of " + title}},
		Published:   true,
		PublishedAt: &now,
		Visibility:  models.VisibilityPublic,
	}
	for _, opt := range opts {
		opt(p)
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// Draft marks a fixture post unpublished.
func Draft(p *models.Post) {
	p.Published = false
	p.PublishedAt = nil
}

// WithVisibility sets a fixture post's visibility.
func WithVisibility(v models.Visibility) func(*models.Post) {
	return func(p *models.Post) { p.Visibility = v }
}

// Member marks a fixture user as a paying member.
func Member(u *models.User) { u.IsMember = true }

// Admin marks a fixture user as an administrator.
func Admin(u *models.User) { u.IsAdmin = true }

// Named sets a fixture user's display name.
func Named(name string) func(*models.User) {
	return func(u *models.User) { u.Name = name }
}
