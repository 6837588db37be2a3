package service

import (
	"strings"
	"testing"

	"blogshive/internal/models"
	"blogshive/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMentions(t *testing.T) {
	tests := []struct {
		content string
		want    []string
	}{
		{"no mentions here", nil},
		{"hi @Bob and @bob again", []string{"bob"}},
		{"mail me@example.com", nil},
		{"@carol. and (@dave_1)", []string{"carol", "dave_1"}},
		{"@al is too short", nil},
		{"@@eve", nil},
		{"ping @bob_ and @bob-", nil},
		{"@" + strings.Repeat("x", 31), nil},
		{"@grace-hopper_2 wrote this", []string{"grace-hopper_2"}},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractMentions(tt.content))
		})
	}
}

func TestBuildCommentTree(t *testing.T) {
	id := func(v uint) *uint { return &v }
	comments := []*models.Comment{
		{ID: 1, IsVisible: true},
		{ID: 2, ParentID: id(1), IsVisible: true},
		{ID: 3, ParentID: id(2), IsVisible: true},
		{ID: 4, IsVisible: false},
		{ID: 5, ParentID: id(4), IsVisible: true},
		{ID: 6, ParentID: id(99), IsVisible: true},
	}

	roots := BuildCommentTree(comments, func(c *models.Comment) bool { return c.IsVisible })
	require.Len(t, roots, 3)
	assert.Equal(t, uint(1), roots[0].ID)
	assert.Equal(t, uint(5), roots[1].ID, "reply under a hidden parent is promoted")
	assert.Equal(t, uint(6), roots[2].ID, "orphan becomes a root")

	require.Len(t, roots[0].Replies, 1)
	assert.Equal(t, uint(2), roots[0].Replies[0].ID)
	require.Len(t, roots[0].Replies[0].Replies, 1)
	assert.Equal(t, uint(3), roots[0].Replies[0].Replies[0].ID)
	assert.NotNil(t, roots[2].Replies, "leaf replies serialise as an empty list")

	all := BuildCommentTree(comments, nil)
	assert.Len(t, all, 3)
}

func TestCommentService_CreateCommentValidation(t *testing.T) {
	f := newFixture(t)
	author := testutil.CreateUser(t, f.db, "author")
	reader := testutil.CreateUser(t, f.db, "reader")
	post := testutil.CreatePost(t, f.db, author, "Post")
	other := testutil.CreatePost(t, f.db, author, "Other")
	draft := testutil.CreatePost(t, f.db, author, "Draft", testutil.Draft)

	_, err := f.comments.CreateComment(f.ctx, CreateCommentInput{UserID: reader.ID, PostID: post.ID, Content: "  "})
	assertValidationError(t, err)

	_, err = f.comments.CreateComment(f.ctx, CreateCommentInput{UserID: reader.ID, PostID: post.ID, Content: strings.Repeat("x", maxCommentLen+1)})
	assertValidationError(t, err)

	_, err = f.comments.CreateComment(f.ctx, CreateCommentInput{UserID: reader.ID, PostID: draft.ID, Content: "early"})
	assertCode(t, err, models.CodeNotFound)

	_, err = f.comments.CreateComment(f.ctx, CreateCommentInput{UserID: author.ID, PostID: draft.ID, Content: "note to self"})
	assertValidationError(t, err)

	parent, err := f.comments.CreateComment(f.ctx, CreateCommentInput{UserID: reader.ID, PostID: other.ID, Content: "elsewhere"})
	require.NoError(t, err)
	_, err = f.comments.CreateComment(f.ctx, CreateCommentInput{UserID: reader.ID, PostID: post.ID, ParentID: &parent.ID, Content: "cross-post reply"})
	assertValidationError(t, err)
}

func TestCommentService_Notifications(t *testing.T) {
	f := newFixture(t)
	author := testutil.CreateUser(t, f.db, "author")
	reader := testutil.CreateUser(t, f.db, "reader", testutil.Named("Rita Reader"))
	replier := testutil.CreateUser(t, f.db, "replier")
	carol := testutil.CreateUser(t, f.db, "carol")
	post := testutil.CreatePost(t, f.db, author, "Discussed")

	top, err := f.comments.CreateComment(f.ctx, CreateCommentInput{
		UserID:  reader.ID,
		PostID:  post.ID,
		Content: "Great read @carol, right @author? cc @CAROL @nobody_here",
	})
	require.NoError(t, err)
	require.NotNil(t, top.Author)
	assert.Equal(t, "reader", top.Author.Username)

	authorNotes := f.notificationsOf(t, author.ID)
	require.Len(t, authorNotes, 1, "post author is notified once even when mentioned")
	assert.Equal(t, models.NotificationComment, authorNotes[0].Type)
	assert.Contains(t, authorNotes[0].Message, "Rita Reader")

	carolNotes := f.notificationsOf(t, carol.ID)
	require.Len(t, carolNotes, 1)
	assert.Equal(t, models.NotificationMention, carolNotes[0].Type)

	_, err = f.comments.CreateComment(f.ctx, CreateCommentInput{
		UserID:   replier.ID,
		PostID:   post.ID,
		ParentID: &top.ID,
		Content:  "Agreed",
	})
	require.NoError(t, err)

	readerNotes := f.notificationsOf(t, reader.ID)
	require.Len(t, readerNotes, 1)
	assert.Equal(t, models.NotificationReply, readerNotes[0].Type)
	assert.Len(t, f.notificationsOf(t, author.ID), 1, "replies notify the parent author, not the post author")

	// replying to yourself on your own post notifies nobody
	own, err := f.comments.CreateComment(f.ctx, CreateCommentInput{UserID: author.ID, PostID: post.ID, Content: "thanks @author"})
	require.NoError(t, err)
	_, err = f.comments.CreateComment(f.ctx, CreateCommentInput{UserID: author.ID, PostID: post.ID, ParentID: &own.ID, Content: "and more"})
	require.NoError(t, err)
	assert.Len(t, f.notificationsOf(t, author.ID), 1)

	var stored models.Post
	require.NoError(t, f.db.First(&stored, post.ID).Error)
	assert.Equal(t, int64(4), stored.ResponseCount)
}

func TestCommentService_ListCommentsHiddenVisibility(t *testing.T) {
	f := newFixture(t)
	author := testutil.CreateUser(t, f.db, "author")
	troll := testutil.CreateUser(t, f.db, "troll")
	reader := testutil.CreateUser(t, f.db, "reader")
	admin := testutil.CreateUser(t, f.db, "moderator", testutil.Admin)
	post := testutil.CreatePost(t, f.db, author, "Moderated")

	nice, err := f.comments.CreateComment(f.ctx, CreateCommentInput{UserID: reader.ID, PostID: post.ID, Content: "nice"})
	require.NoError(t, err)
	rude, err := f.comments.CreateComment(f.ctx, CreateCommentInput{UserID: troll.ID, PostID: post.ID, Content: "rude"})
	require.NoError(t, err)

	_, err = f.comments.SetCommentVisibility(f.ctx, reader.ID, rude.ID, false)
	assertCode(t, err, models.CodeForbidden)
	hidden, err := f.comments.SetCommentVisibility(f.ctx, author.ID, rude.ID, false)
	require.NoError(t, err)
	assert.False(t, hidden.IsVisible)

	tests := []struct {
		name   string
		viewer uint
		want   int
	}{
		{"anonymous", 0, 1},
		{"reader", reader.ID, 1},
		{"hidden comment author", troll.ID, 2},
		{"post author", author.ID, 2},
		{"admin", admin.ID, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := f.comments.ListComments(f.ctx, post.ID, tt.viewer)
			require.NoError(t, err)
			assert.Len(t, tree, tt.want)
			assert.Equal(t, nice.ID, tree[0].ID)
		})
	}

	_, err = f.comments.ListComments(f.ctx, 9999, 0)
	assertCode(t, err, models.CodeNotFound)
}

func TestCommentService_UpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	author := testutil.CreateUser(t, f.db, "author")
	reader := testutil.CreateUser(t, f.db, "reader")
	stranger := testutil.CreateUser(t, f.db, "stranger")
	post := testutil.CreatePost(t, f.db, author, "Thread")

	root, err := f.comments.CreateComment(f.ctx, CreateCommentInput{UserID: reader.ID, PostID: post.ID, Content: "first"})
	require.NoError(t, err)
	child, err := f.comments.CreateComment(f.ctx, CreateCommentInput{UserID: stranger.ID, PostID: post.ID, ParentID: &root.ID, Content: "second"})
	require.NoError(t, err)
	_, err = f.comments.CreateComment(f.ctx, CreateCommentInput{UserID: reader.ID, PostID: post.ID, ParentID: &child.ID, Content: "third"})
	require.NoError(t, err)

	_, err = f.comments.UpdateComment(f.ctx, UpdateCommentInput{UserID: stranger.ID, CommentID: root.ID, Content: "hijack"})
	assertCode(t, err, models.CodeForbidden)
	_, err = f.comments.UpdateComment(f.ctx, UpdateCommentInput{UserID: reader.ID, CommentID: root.ID, Content: ""})
	assertValidationError(t, err)
	edited, err := f.comments.UpdateComment(f.ctx, UpdateCommentInput{UserID: reader.ID, CommentID: root.ID, Content: "first, edited"})
	require.NoError(t, err)
	assert.Equal(t, "first, edited", edited.Content)

	_, err = f.comments.DeleteComment(f.ctx, stranger.ID, root.ID)
	assertCode(t, err, models.CodeForbidden)

	removed, err := f.comments.DeleteComment(f.ctx, author.ID, root.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	var stored models.Post
	require.NoError(t, f.db.First(&stored, post.ID).Error)
	assert.Zero(t, stored.ResponseCount)

	_, err = f.comments.DeleteComment(f.ctx, author.ID, root.ID)
	assertCode(t, err, models.CodeNotFound)
}
