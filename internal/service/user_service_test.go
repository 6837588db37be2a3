package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"blogshive/internal/cache"
	"blogshive/internal/models"
	"blogshive/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type userRepoStub struct {
	getByIDFn        func(context.Context, uint) (*models.User, error)
	getCredentialsFn func(context.Context, uint) (*models.User, error)
	getByIDsFn       func(context.Context, []uint) ([]models.User, error)
	getByEmailFn     func(context.Context, string) (*models.User, error)
	getByUsernameFn  func(context.Context, string) (*models.User, error)
	getByUsernamesFn func(context.Context, []string) ([]models.User, error)
	createFn         func(context.Context, *models.User) error
	updateFn         func(context.Context, *models.User) error
	setMembershipFn  func(context.Context, uint, bool) error
	setAdminFn       func(context.Context, uint, bool) error
	deleteAccountFn  func(context.Context, uint) error
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetCredentials(ctx context.Context, id uint) (*models.User, error) {
	return s.getCredentialsFn(ctx, id)
}
func (s *userRepoStub) GetByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	return s.getByIDsFn(ctx, ids)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) GetByUsernames(ctx context.Context, usernames []string) ([]models.User, error) {
	return s.getByUsernamesFn(ctx, usernames)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) SetMembership(ctx context.Context, id uint, isMember bool) error {
	return s.setMembershipFn(ctx, id, isMember)
}
func (s *userRepoStub) SetAdmin(ctx context.Context, id uint, isAdmin bool) error {
	return s.setAdminFn(ctx, id, isAdmin)
}
func (s *userRepoStub) DeleteAccount(ctx context.Context, id uint) error {
	return s.deleteAccountFn(ctx, id)
}

func noopUserRepo() *userRepoStub {
	notFound := func() error { return models.NewNotFoundError("User", "x") }
	return &userRepoStub{
		getByIDFn:        func(_ context.Context, id uint) (*models.User, error) { return &models.User{ID: id}, nil },
		getCredentialsFn: func(_ context.Context, id uint) (*models.User, error) { return &models.User{ID: id}, nil },
		getByIDsFn:       func(context.Context, []uint) ([]models.User, error) { return nil, nil },
		getByEmailFn:     func(context.Context, string) (*models.User, error) { return nil, notFound() },
		getByUsernameFn:  func(context.Context, string) (*models.User, error) { return nil, notFound() },
		getByUsernamesFn: func(context.Context, []string) ([]models.User, error) { return nil, nil },
		createFn:         func(context.Context, *models.User) error { return nil },
		updateFn:         func(context.Context, *models.User) error { return nil },
		setMembershipFn:  func(context.Context, uint, bool) error { return nil },
		setAdminFn:       func(context.Context, uint, bool) error { return nil },
		deleteAccountFn:  func(context.Context, uint) error { return nil },
	}
}

const strongPassword = "Correct-Horse-42"

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestUserService_SignupValidation(t *testing.T) {
	t.Parallel()
	svc := NewUserService(noopUserRepo(), nil).WithBcryptCost(bcrypt.MinCost)

	tests := []struct {
		name string
		in   SignupInput
	}{
		{"bad username", SignupInput{Username: "_x_", Email: "a@b.co", Password: strongPassword}},
		{"reserved username", SignupInput{Username: "admin", Email: "a@b.co", Password: strongPassword}},
		{"bad email", SignupInput{Username: "valid_name", Email: "nope", Password: strongPassword}},
		{"weak password", SignupInput{Username: "valid_name", Email: "a@b.co", Password: "short"}},
		{"long name", SignupInput{Username: "valid_name", Email: "a@b.co", Password: strongPassword, Name: strings.Repeat("n", maxNameLen+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.Signup(context.Background(), tt.in)
			assertValidationError(t, err)
		})
	}
}

func TestUserService_SignupHashesAndNormalizes(t *testing.T) {
	t.Parallel()
	repo := noopUserRepo()
	var created *models.User
	repo.createFn = func(_ context.Context, u *models.User) error {
		created = u
		u.ID = 7
		return nil
	}
	svc := NewUserService(repo, nil).WithBcryptCost(bcrypt.MinCost)

	user, err := svc.Signup(context.Background(), SignupInput{
		Username: " writer ",
		Email:    "Writer@Example.COM",
		Password: strongPassword,
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, uint(7), user.ID)
	assert.Equal(t, "writer", created.Username)
	assert.Equal(t, "writer@example.com", created.Email)
	assert.NotEqual(t, strongPassword, created.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.Password), []byte(strongPassword)))
}

func TestUserService_Login(t *testing.T) {
	t.Parallel()
	stored := &models.User{ID: 3, Username: "writer", Email: "writer@example.com", Password: mustHash(t, strongPassword)}

	repo := noopUserRepo()
	repo.getByEmailFn = func(_ context.Context, email string) (*models.User, error) {
		if email == stored.Email {
			return stored, nil
		}
		return nil, models.NewNotFoundError("User", email)
	}
	repo.getByUsernameFn = func(_ context.Context, username string) (*models.User, error) {
		if strings.EqualFold(username, stored.Username) {
			return stored, nil
		}
		return nil, models.NewNotFoundError("User", username)
	}
	svc := NewUserService(repo, nil).WithBcryptCost(bcrypt.MinCost)
	ctx := context.Background()

	t.Run("by email, case-insensitive", func(t *testing.T) {
		t.Parallel()
		user, err := svc.Login(ctx, "WRITER@example.com", strongPassword)
		require.NoError(t, err)
		assert.Equal(t, stored.ID, user.ID)
	})

	t.Run("by username", func(t *testing.T) {
		t.Parallel()
		user, err := svc.Login(ctx, "writer", strongPassword)
		require.NoError(t, err)
		assert.Equal(t, stored.ID, user.ID)
	})

	t.Run("wrong password and unknown user look the same", func(t *testing.T) {
		t.Parallel()
		_, wrongPw := svc.Login(ctx, "writer", "Wrong-Password-1")
		_, unknown := svc.Login(ctx, "ghost", strongPassword)
		assertCode(t, wrongPw, models.CodeUnauthorized)
		assertCode(t, unknown, models.CodeUnauthorized)
		assert.Equal(t, wrongPw.Error(), unknown.Error())
	})

	t.Run("missing fields", func(t *testing.T) {
		t.Parallel()
		_, err := svc.Login(ctx, "", strongPassword)
		assertValidationError(t, err)
	})

	t.Run("repository failure propagates", func(t *testing.T) {
		t.Parallel()
		broken := noopUserRepo()
		repoErr := errors.New("db down")
		broken.getByUsernameFn = func(context.Context, string) (*models.User, error) { return nil, repoErr }
		_, err := NewUserService(broken, nil).Login(ctx, "writer", strongPassword)
		assert.ErrorIs(t, err, repoErr)
	})
}

func TestUserService_UpdateProfile(t *testing.T) {
	t.Parallel()

	t.Run("only provided fields change", func(t *testing.T) {
		t.Parallel()
		repo := noopUserRepo()
		repo.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Username: "old", Bio: "my bio", Name: "Old Name"}, nil
		}
		var saved *models.User
		repo.updateFn = func(_ context.Context, u *models.User) error {
			saved = u
			return nil
		}
		svc := NewUserService(repo, nil)
		name := "New Name"
		topics := []string{"Go", "go", "Databases"}
		user, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{UserID: 1, Name: &name, FollowedTopics: &topics})
		require.NoError(t, err)
		assert.Equal(t, "New Name", user.Name)
		assert.Equal(t, "my bio", user.Bio)
		assert.Equal(t, "old", user.Username)
		assert.Equal(t, []string{"go", "databases"}, user.FollowedTopics)
		require.NotNil(t, saved)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		svc := NewUserService(noopUserRepo(), nil)
		bio := strings.Repeat("x", maxBioLen+1)
		_, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{UserID: 1, Bio: &bio})
		assertValidationError(t, err)

		username := "-bad-"
		_, err = svc.UpdateProfile(context.Background(), UpdateProfileInput{UserID: 1, Username: &username})
		assertValidationError(t, err)

		many := make([]string, maxTopics+1)
		for i := range many {
			many[i] = strings.Repeat("t", i+1)
		}
		_, err = svc.UpdateProfile(context.Background(), UpdateProfileInput{UserID: 1, FollowedTopics: &many})
		assertValidationError(t, err)
	})

	t.Run("update error propagates", func(t *testing.T) {
		t.Parallel()
		repoErr := errors.New("update failed")
		repo := noopUserRepo()
		repo.updateFn = func(context.Context, *models.User) error { return repoErr }
		bio := "hi"
		_, err := NewUserService(repo, nil).UpdateProfile(context.Background(), UpdateProfileInput{UserID: 1, Bio: &bio})
		assert.ErrorIs(t, err, repoErr)
	})
}

func TestUserService_Integration(t *testing.T) {
	f := newFixture(t)

	user, err := f.users.Signup(f.ctx, SignupInput{Username: "writer", Email: "writer@example.com", Password: strongPassword, Name: "Wren Writer"})
	require.NoError(t, err)

	_, err = f.users.Signup(f.ctx, SignupInput{Username: "Writer", Email: "other@example.com", Password: strongPassword})
	assertCode(t, err, models.CodeConflict)

	fan := testutil.CreateUser(t, f.db, "fan")
	_, err = f.relationships.Follow(f.ctx, fan.ID, user.ID)
	require.NoError(t, err)

	profile, err := f.users.GetProfile(f.ctx, "WRITER", fan.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, profile.ID)
	assert.Equal(t, "Wren Writer", profile.Name)
	assert.Equal(t, int64(1), profile.Stats.Followers)
	require.NotNil(t, profile.Relationship)
	assert.True(t, profile.Relationship.IsFollowing)

	own, err := f.users.GetProfile(f.ctx, "writer", user.ID)
	require.NoError(t, err)
	assert.Nil(t, own.Relationship, "no relationship block on your own profile")

	_, err = f.users.GetProfile(f.ctx, "ghost", 0)
	assertCode(t, err, models.CodeNotFound)

	member, err := f.users.SetMembership(f.ctx, user.ID, true)
	require.NoError(t, err)
	assert.True(t, member.IsMember)

	err = f.users.DeleteAccount(f.ctx, user.ID, "Not-The-Password-1")
	assertCode(t, err, models.CodeUnauthorized)

	require.NoError(t, f.users.DeleteAccount(f.ctx, user.ID, strongPassword))
	_, err = f.users.Login(f.ctx, "writer", strongPassword)
	assertCode(t, err, models.CodeUnauthorized)
	assert.Zero(t, f.count(t, &models.Relationship{}, ""))
}

func TestUserService_DeleteAccountWithWarmUserCache(t *testing.T) {
	_, rdb := testutil.NewTestRedis(t)
	cache.SetClient(rdb)
	t.Cleanup(func() { cache.SetClient(nil) })

	f := newFixture(t)
	user, err := f.users.Signup(f.ctx, SignupInput{Username: "cached", Email: "cached@example.com", Password: strongPassword})
	require.NoError(t, err)

	// profile reads populate the cache with a hash-less copy of the user
	_, err = f.users.GetMe(f.ctx, user.ID)
	require.NoError(t, err)
	var cached models.User
	hit, err := cache.GetJSON(f.ctx, cache.UserKey(user.ID), &cached)
	require.NoError(t, err)
	require.True(t, hit)
	require.Empty(t, cached.Password)

	err = f.users.DeleteAccount(f.ctx, user.ID, "Not-The-Password-1")
	assertCode(t, err, models.CodeUnauthorized)

	require.NoError(t, f.users.DeleteAccount(f.ctx, user.ID, strongPassword))
	_, err = f.users.GetMe(f.ctx, user.ID)
	assertCode(t, err, models.CodeNotFound)
}

func TestUserService_EnsureRootAdmin(t *testing.T) {
	f := newFixture(t)

	root, err := f.users.EnsureRootAdmin(f.ctx, "root", "Root@Example.com", strongPassword)
	require.NoError(t, err)
	assert.True(t, root.IsAdmin)
	assert.Equal(t, "root@example.com", root.Email)

	again, err := f.users.EnsureRootAdmin(f.ctx, "root", "root@example.com", strongPassword)
	require.NoError(t, err)
	assert.Equal(t, root.ID, again.ID)

	plain := testutil.CreateUser(t, f.db, "promoted")
	promoted, err := f.users.EnsureRootAdmin(f.ctx, "promoted", "whatever@example.com", strongPassword)
	require.NoError(t, err)
	assert.Equal(t, plain.ID, promoted.ID)

	var stored models.User
	require.NoError(t, f.db.First(&stored, plain.ID).Error)
	assert.True(t, stored.IsAdmin)
}
