package seed

import (
	"strings"
	"testing"
	"time"

	"blogshive/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPost_ValidContent(t *testing.T) {
	f := NewFactory(nil, Options{DryRun: true, RandSeed: 11, MaxDays: 30})
	author := &models.User{ID: 1, CreatedAt: time.Now().Add(-60 * 24 * time.Hour)}
	preset := Presets["small"].withDefaults()

	for i := 0; i < 25; i++ {
		p := f.BuildPost(author, preset)
		require.NotEmpty(t, p.Content)
		for j, b := range p.Content {
			assert.NoError(t, b.Validate(), "post %d block %d", i, j)
		}
		assert.Equal(t, models.ReadingTime(p.Content), p.ReadingTimeMinutes)
		assert.True(t, p.Visibility.Valid())
		assert.NotContains(t, p.Slug, " ")
		assert.LessOrEqual(t, len(p.Tags), 4)
		assert.WithinDuration(t, time.Now(), p.CreatedAt, 31*24*time.Hour)
		if p.Published {
			require.NotNil(t, p.PublishedAt)
		}
	}
}

func TestBuildPost_DraftRatio(t *testing.T) {
	f := NewFactory(nil, Options{DryRun: true, RandSeed: 5})
	preset := Presets["small"].withDefaults()
	preset.DraftRatio = 1

	p := f.BuildPost(&models.User{ID: 1}, preset)
	assert.False(t, p.Published)
	assert.Nil(t, p.PublishedAt)
}

func TestBuildUser_UniqueHandles(t *testing.T) {
	f := NewFactory(nil, Options{DryRun: true, RandSeed: 2})
	seen := map[string]bool{}
	for i := 1; i <= 50; i++ {
		u := f.BuildUser(i, "hash", defaultTopics)
		assert.False(t, seen[u.Username], u.Username)
		seen[u.Username] = true
		assert.Equal(t, strings.ToLower(u.Username), u.Username)
		assert.LessOrEqual(t, len(u.Username), 30)
		assert.NotEmpty(t, u.FollowedTopics)
	}
}

func TestBuildComment_ReplyFollowsParent(t *testing.T) {
	f := NewFactory(nil, Options{DryRun: true, RandSeed: 4})
	post := &models.Post{ID: 10, CreatedAt: time.Now().Add(-48 * time.Hour)}
	author := &models.User{ID: 2}

	parent, err := f.CreateComment(author, post, nil)
	require.NoError(t, err)
	reply := f.BuildComment(author, post, parent)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, parent.ID, *reply.ParentID)
	assert.False(t, reply.CreatedAt.Before(parent.CreatedAt))
	assert.False(t, parent.CreatedAt.Before(post.CreatedAt))
}

func TestBuildClap_WithinCap(t *testing.T) {
	f := NewFactory(nil, Options{DryRun: true, RandSeed: 8})
	for i := 0; i < 100; i++ {
		c := f.BuildClap(&models.User{ID: 1}, &models.Post{ID: 2})
		assert.GreaterOrEqual(t, c.Count, 1)
		assert.LessOrEqual(t, c.Count, models.MaxClapsPerUser)
	}
}
