package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"blogshive/internal/models"
	"blogshive/internal/repository"
	"blogshive/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeValidation)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

type push struct {
	UserID  uint
	Event   string
	Payload any
}

// recordingPusher captures pushes instead of writing to sockets.
type recordingPusher struct {
	mu     sync.Mutex
	pushes []push
	err    error
}

func (p *recordingPusher) PushTo(userID uint, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, push{UserID: userID, Event: event, Payload: payload})
	return p.err
}

func (p *recordingPusher) To(userID uint) []push {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []push
	for _, x := range p.pushes {
		if x.UserID == userID {
			out = append(out, x)
		}
	}
	return out
}

// notifierStub is a func-field NotificationCreator.
type notifierStub struct {
	createFn func(context.Context, CreateNotificationInput) (*models.NotificationPayload, error)
}

func (s *notifierStub) CreateNotification(ctx context.Context, in CreateNotificationInput) (*models.NotificationPayload, error) {
	return s.createFn(ctx, in)
}

func failingNotifier() *notifierStub {
	return &notifierStub{createFn: func(context.Context, CreateNotificationInput) (*models.NotificationPayload, error) {
		return nil, errors.New("notification store down")
	}}
}

type fixture struct {
	db  *gorm.DB
	ctx context.Context

	userRepo         repository.UserRepository
	postRepo         repository.PostRepository
	commentRepo      repository.CommentRepository
	relationshipRepo repository.RelationshipRepository
	notificationRepo repository.NotificationRepository
	bookmarkRepo     repository.BookmarkRepository

	pusher        *recordingPusher
	notifications *NotificationService
	relationships *RelationshipService
	posts         *PostService
	comments      *CommentService
	users         *UserService
	bookmarks     *BookmarkService
}

// newFixture wires every service over a fresh sqlite database.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	f := &fixture{
		db:               db,
		ctx:              context.Background(),
		userRepo:         repository.NewUserRepository(db),
		postRepo:         repository.NewPostRepository(db),
		commentRepo:      repository.NewCommentRepository(db),
		relationshipRepo: repository.NewRelationshipRepository(db),
		notificationRepo: repository.NewNotificationRepository(db),
		bookmarkRepo:     repository.NewBookmarkRepository(db),
		pusher:           &recordingPusher{},
	}
	f.notifications = NewNotificationService(f.notificationRepo, f.userRepo, f.postRepo, f.pusher)
	f.relationships = NewRelationshipService(f.relationshipRepo, f.userRepo, f.notifications)
	f.posts = NewPostService(f.postRepo, f.bookmarkRepo, f.userRepo, f.notifications)
	f.comments = NewCommentService(f.commentRepo, f.postRepo, f.userRepo, f.notifications)
	f.users = NewUserService(f.userRepo, f.relationships).WithBcryptCost(bcrypt.MinCost)
	f.bookmarks = NewBookmarkService(f.bookmarkRepo, f.postRepo, f.userRepo)
	return f
}

// notificationsOf returns every stored notification for recipient, newest first.
func (f *fixture) notificationsOf(t *testing.T, recipientID uint) []models.Notification {
	t.Helper()
	var out []models.Notification
	require.NoError(t, f.db.Where("recipient_id = ?", recipientID).Order("created_at DESC").Find(&out).Error)
	return out
}

func (f *fixture) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func repositoryPage(limit int) repository.Page {
	return repository.Page{Limit: limit}
}
