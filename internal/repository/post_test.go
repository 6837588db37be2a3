package repository

import (
	"context"
	"sync"
	"testing"

	"blogshive/internal/models"
	"blogshive/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_Feed(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	bookmarks := NewBookmarkRepository(db)
	rels := NewRelationshipRepository(db)
	ctx := context.Background()

	viewer := testutil.CreateUser(t, db, "viewer")
	writer := testutil.CreateUser(t, db, "writer")
	troll := testutil.CreateUser(t, db, "troll")

	visible := testutil.CreatePost(t, db, writer, "Visible", func(p *models.Post) { p.Tags = []string{"go", "web"} })
	hidden := testutil.CreatePost(t, db, writer, "Hidden")
	testutil.CreatePost(t, db, troll, "Trolling")
	testutil.CreatePost(t, db, writer, "Draft", testutil.Draft)
	testutil.CreatePost(t, db, writer, "Members", testutil.WithVisibility(models.VisibilityMembersOnly))

	require.NoError(t, bookmarks.Hide(ctx, viewer.ID, hidden.ID))
	require.NoError(t, rels.Block(ctx, viewer.ID, troll.ID))

	t.Run("anonymous sees every public post", func(t *testing.T) {
		posts, err := repo.ListFeed(ctx, FeedQuery{})
		require.NoError(t, err)
		assert.Len(t, posts, 3)
	})

	t.Run("viewer exclusions", func(t *testing.T) {
		posts, err := repo.ListFeed(ctx, FeedQuery{ViewerID: viewer.ID})
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, visible.ID, posts[0].ID)
		require.NotNil(t, posts[0].Author)
		assert.Equal(t, "writer", posts[0].Author.Username)
	})

	t.Run("tag filter", func(t *testing.T) {
		posts, err := repo.ListFeed(ctx, FeedQuery{Tag: "go"})
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, visible.ID, posts[0].ID)

		posts, err = repo.ListFeed(ctx, FeedQuery{Tag: "g"})
		require.NoError(t, err)
		assert.Empty(t, posts, "partial tag must not match")
	})

	t.Run("by author", func(t *testing.T) {
		published, err := repo.ListByAuthor(ctx, writer.ID, false, Page{})
		require.NoError(t, err)
		assert.Len(t, published, 3)

		all, err := repo.ListByAuthor(ctx, writer.ID, true, Page{})
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})
}

func TestPostRepository_SlugAndUpdate(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "author")

	post := &models.Post{AuthorID: author.ID, Title: "Hello", Slug: "hello", Visibility: models.VisibilityPublic}
	require.NoError(t, repo.Create(ctx, post))

	exists, err := repo.SlugExists(ctx, "hello")
	require.NoError(t, err)
	assert.True(t, exists)

	dup := &models.Post{AuthorID: author.ID, Title: "Hello", Slug: "hello", Visibility: models.VisibilityPublic}
	err = repo.Create(ctx, dup)
	assert.True(t, models.IsCode(err, models.CodeConflict))

	post.Title = "Hello again"
	post.Tags = []string{"intro"}
	require.NoError(t, repo.Update(ctx, post))

	got, err := repo.GetBySlug(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello again", got.Title)
	assert.Equal(t, []string{"intro"}, got.Tags)

	_, err = repo.GetByID(ctx, 424242)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_Claps(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author")
	fan := testutil.CreateUser(t, db, "fan")
	other := testutil.CreateUser(t, db, "other")
	post := testutil.CreatePost(t, db, author, "Clappable")

	res, err := repo.AddClaps(ctx, fan.ID, post.ID, 30)
	require.NoError(t, err)
	assert.True(t, res.First)
	assert.Equal(t, 30, res.Accepted)
	assert.Equal(t, int64(30), res.PostTotal)

	res, err = repo.AddClaps(ctx, fan.ID, post.ID, 30)
	require.NoError(t, err)
	assert.False(t, res.First)
	assert.Equal(t, 20, res.Accepted, "capped at the per-user maximum")
	assert.Equal(t, models.MaxClapsPerUser, res.UserTotal)

	res, err = repo.AddClaps(ctx, fan.ID, post.ID, 5)
	require.NoError(t, err)
	assert.Zero(t, res.Accepted)
	assert.Equal(t, int64(50), res.PostTotal)

	_, err = repo.AddClaps(ctx, other.ID, post.ID, 2)
	require.NoError(t, err)

	mine, err := repo.GetUserClaps(ctx, fan.ID, []uint{post.ID})
	require.NoError(t, err)
	assert.Equal(t, 50, mine[post.ID])

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(52), got.ClapCount)
}

func TestPostRepository_ConcurrentClapsRespectCap(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	author := testutil.CreateUser(t, db, "author")
	fan := testutil.CreateUser(t, db, "fan")
	post := testutil.CreatePost(t, db, author, "Busy")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.AddClaps(context.Background(), fan.ID, post.ID, 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var clap models.Clap
	require.NoError(t, db.Where("user_id = ? AND post_id = ?", fan.ID, post.ID).First(&clap).Error)
	assert.Equal(t, models.MaxClapsPerUser, clap.Count)

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, int64(models.MaxClapsPerUser), stored.ClapCount)
}

func TestPostRepository_AddClapsLockedRow(t *testing.T) {
	clapRow := func(count int) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "user_id", "post_id", "count"}).AddRow(7, 2, 9, count)
	}

	t.Run("guard miss leaves the post total alone", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "claps" .* ON CONFLICT \("user_id","post_id"\) DO NOTHING`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery(`SELECT \* FROM "claps" WHERE .* FOR UPDATE`).
			WillReturnRows(clapRow(45))
		mock.ExpectExec(`UPDATE "claps" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT .*clap_count.* FROM "posts"`).
			WillReturnRows(sqlmock.NewRows([]string{"clap_count"}).AddRow(100))
		mock.ExpectCommit()

		res, err := repo.AddClaps(context.Background(), 2, 9, 5)
		require.NoError(t, err)
		assert.False(t, res.First)
		assert.Zero(t, res.Accepted)
		assert.Equal(t, 45, res.UserTotal)
		assert.Equal(t, int64(100), res.PostTotal)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conflicting first clap joins the existing row", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPostRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "claps" .* ON CONFLICT \("user_id","post_id"\) DO NOTHING`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery(`SELECT \* FROM "claps" WHERE .* FOR UPDATE`).
			WillReturnRows(clapRow(10))
		mock.ExpectExec(`UPDATE "claps" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE "posts" SET "clap_count"`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT .*clap_count.* FROM "posts"`).
			WillReturnRows(sqlmock.NewRows([]string{"clap_count"}).AddRow(15))
		mock.ExpectCommit()

		res, err := repo.AddClaps(context.Background(), 2, 9, 5)
		require.NoError(t, err)
		assert.False(t, res.First, "the other request created the row")
		assert.Equal(t, 5, res.Accepted)
		assert.Equal(t, 15, res.UserTotal)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostRepository_ConcurrentFirstClapsNotifyOnce(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	author := testutil.CreateUser(t, db, "author")
	fan := testutil.CreateUser(t, db, "fan")
	post := testutil.CreatePost(t, db, author, "Fresh")

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		firsts int
		sum    int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := repo.AddClaps(context.Background(), fan.ID, post.ID, 4)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			sum += res.Accepted
			if res.First {
				firsts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, firsts)
	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, int64(sum), stored.ClapCount)
	assert.Equal(t, 32, sum)
}

func TestPostRepository_DeleteCascades(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	comments := NewCommentRepository(db)
	bookmarks := NewBookmarkRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author")
	reader := testutil.CreateUser(t, db, "reader")
	post := testutil.CreatePost(t, db, author, "Doomed")

	require.NoError(t, comments.Create(ctx, &models.Comment{PostID: post.ID, AuthorID: reader.ID, Content: "hi"}))
	require.NoError(t, bookmarks.Save(ctx, reader.ID, post.ID))
	_, err := repo.AddClaps(ctx, reader.ID, post.ID, 3)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, post.ID))

	for _, m := range []any{&models.Comment{}, &models.Clap{}, &models.SavedPost{}, &models.Post{}} {
		var n int64
		require.NoError(t, db.Model(m).Count(&n).Error)
		assert.Zero(t, n, "%T rows remain", m)
	}
}
