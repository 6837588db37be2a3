package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"blogshive/internal/models"
	"blogshive/internal/repository"
	"blogshive/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const (
	maxBioLen      = 500
	maxNameLen     = 100
	maxPronounsLen = 30
	maxTopics      = 20
)

var errInvalidCredentials = models.NewUnauthorizedError("Invalid credentials")

// RelationshipReader is the part of RelationshipService a profile needs.
type RelationshipReader interface {
	GetFollowStats(ctx context.Context, userID uint) (*models.FollowStats, error)
	GetRelationshipStatus(ctx context.Context, viewerID, targetID uint) (*models.RelationshipState, error)
}

type UserService struct {
	userRepo      repository.UserRepository
	relationships RelationshipReader
	bcryptCost    int
}

type SignupInput struct {
	Username string
	Email    string
	Password string
	Name     string
}

// UpdateProfileInput changes only the non-nil fields.
type UpdateProfileInput struct {
	UserID         uint
	Username       *string
	Name           *string
	Bio            *string
	Avatar         *string
	Pronouns       *string
	FollowedTopics *[]string
}

// Profile is the public view of a user.
type Profile struct {
	models.UserSummary
	Pronouns       string                    `json:"pronouns"`
	IsMember       bool                      `json:"is_member"`
	FollowedTopics []string                  `json:"followed_topics"`
	CreatedAt      time.Time                 `json:"created_at"`
	Stats          models.FollowStats        `json:"stats"`
	Relationship   *models.RelationshipState `json:"relationship,omitempty"`
}

func NewUserService(userRepo repository.UserRepository, relationships RelationshipReader) *UserService {
	return &UserService{userRepo: userRepo, relationships: relationships, bcryptCost: bcrypt.DefaultCost}
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func (s *UserService) WithBcryptCost(cost int) *UserService {
	s.bcryptCost = cost
	return s
}

// HashPassword hashes password with the service's bcrypt cost.
func (s *UserService) HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return string(hashed), nil
}

func (s *UserService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	name := strings.TrimSpace(in.Name)
	if utf8.RuneCountInString(name) > maxNameLen {
		return nil, models.NewValidationError(fmt.Sprintf("Name too long (max %d characters)", maxNameLen))
	}

	// usernames are unique regardless of case
	if _, err := s.userRepo.GetByUsername(ctx, username); err == nil {
		return nil, models.NewConflictError("Username already taken")
	} else if !models.IsCode(err, models.CodeNotFound) {
		return nil, err
	}

	hashed, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:       username,
		Email:          email,
		Password:       hashed,
		Name:           name,
		FollowedTopics: []string{},
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// Login authenticates by email (identifier containing '@') or username.
// Unknown accounts and wrong passwords return the same error.
func (s *UserService) Login(ctx context.Context, identifier, password string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, models.NewValidationError("Identifier and password are required")
	}

	var (
		user *models.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.userRepo.GetByEmail(ctx, strings.ToLower(identifier))
	} else {
		user, err = s.userRepo.GetByUsername(ctx, identifier)
	}
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			// equalize timing with the found-user path
			dummyHashOnce.Do(func() {
				dummyHash, _ = bcrypt.GenerateFromPassword([]byte("blogshive-dummy"), s.bcryptCost)
			})
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}
	return user, nil
}

func (s *UserService) GetMe(ctx context.Context, userID uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// GetProfile returns the public profile for username. When viewerID is set
// and differs from the profile owner, the pairwise relationship is included.
func (s *UserService) GetProfile(ctx context.Context, username string, viewerID uint) (*Profile, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	stats, err := s.relationships.GetFollowStats(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	topics := user.FollowedTopics
	if topics == nil {
		topics = []string{}
	}
	profile := &Profile{
		UserSummary:    user.Summary(),
		Pronouns:       user.Pronouns,
		IsMember:       user.IsMember,
		FollowedTopics: topics,
		CreatedAt:      user.CreatedAt,
		Stats:          *stats,
	}
	if viewerID != 0 && viewerID != user.ID {
		state, err := s.relationships.GetRelationshipStatus(ctx, viewerID, user.ID)
		if err != nil {
			return nil, err
		}
		profile.Relationship = state
	}
	return profile, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Username = username
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if utf8.RuneCountInString(name) > maxNameLen {
			return nil, models.NewValidationError(fmt.Sprintf("Name too long (max %d characters)", maxNameLen))
		}
		user.Name = name
	}
	if in.Bio != nil {
		if utf8.RuneCountInString(*in.Bio) > maxBioLen {
			return nil, models.NewValidationError(fmt.Sprintf("Bio too long (max %d characters)", maxBioLen))
		}
		user.Bio = *in.Bio
	}
	if in.Avatar != nil {
		user.Avatar = strings.TrimSpace(*in.Avatar)
	}
	if in.Pronouns != nil {
		if utf8.RuneCountInString(*in.Pronouns) > maxPronounsLen {
			return nil, models.NewValidationError(fmt.Sprintf("Pronouns too long (max %d characters)", maxPronounsLen))
		}
		user.Pronouns = strings.TrimSpace(*in.Pronouns)
	}
	if in.FollowedTopics != nil {
		topics, err := normalizeTopics(*in.FollowedTopics)
		if err != nil {
			return nil, err
		}
		user.FollowedTopics = topics
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func normalizeTopics(topics []string) ([]string, error) {
	out := make([]string, 0, len(topics))
	seen := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if utf8.RuneCountInString(t) > maxTagLen {
			return nil, models.NewValidationError(fmt.Sprintf("Topic too long (max %d characters)", maxTagLen))
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) > maxTopics {
		return nil, models.NewValidationError(fmt.Sprintf("Too many topics (max %d)", maxTopics))
	}
	return out, nil
}

// DeleteAccount removes the user and everything they own after re-checking the password.
func (s *UserService) DeleteAccount(ctx context.Context, userID uint, password string) error {
	user, err := s.userRepo.GetCredentials(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return models.NewUnauthorizedError("Password confirmation failed")
	}
	if err := s.userRepo.DeleteAccount(ctx, userID); err != nil {
		return err
	}
	slog.InfoContext(ctx, "account deleted", "deleted_user_id", userID)
	return nil
}

// SetMembership toggles the member flag. Admin only; the caller is checked by the handler.
func (s *UserService) SetMembership(ctx context.Context, targetID uint, isMember bool) (*models.User, error) {
	if err := s.userRepo.SetMembership(ctx, targetID, isMember); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, targetID)
}

// EnsureRootAdmin creates (or promotes) a local admin account. Used by the dev bootstrap.
func (s *UserService) EnsureRootAdmin(ctx context.Context, username, email, password string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	switch {
	case err == nil:
		if user.IsAdmin {
			return user, nil
		}
		if err := s.userRepo.SetAdmin(ctx, user.ID, true); err != nil {
			return nil, err
		}
		user.IsAdmin = true
		return user, nil
	case !models.IsCode(err, models.CodeNotFound):
		return nil, err
	}

	hashed, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user = &models.User{
		Username:       username,
		Email:          strings.ToLower(email),
		Password:       hashed,
		Name:           username,
		IsAdmin:        true,
		FollowedTopics: []string{},
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeConflict {
			return nil, models.NewConflictError("root admin email already in use")
		}
		return nil, err
	}
	return user, nil
}
