package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"postboard/internal/model"
	"postboard/internal/queue"
	"postboard/internal/repository"
)

// UserService handles accounts, profiles, the follow graph and password resets.
type UserService struct {
	users    repository.UserRepository
	follows  repository.FollowRepository
	posts    repository.PostRepository
	tokens   *TokenService
	media    *MediaService
	mailer   Mailer
	resetURL string
	now      func() time.Time
}

func NewUserService(
	users repository.UserRepository,
	follows repository.FollowRepository,
	posts repository.PostRepository,
	tokens *TokenService,
	media *MediaService,
	mailer Mailer,
	resetURL string,
) *UserService {
	return &UserService{
		users:    users,
		follows:  follows,
		posts:    posts,
		tokens:   tokens,
		media:    media,
		mailer:   mailer,
		resetURL: resetURL,
		now:      time.Now,
	}
}

// Register creates an account with an empty profile picture and returns it with a fresh token.
func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, string, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateRequest(req); err != nil {
		return nil, "", err
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check user: %w", err)
	}
	if exists {
		return nil, "", model.ErrUserExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:             uuid.NewString(),
		Username:       req.Username,
		Email:          req.Email,
		PasswordHashed: string(hashedPassword),
	}

	// The unique indexes still catch a concurrent registration that passed the check above.
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrUserExists) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, "", err
	}

	log.Printf("[UserService] Register OK: user=%s", user.ID)
	return user, token, nil
}

// Login authenticates by email and password. Unknown email and wrong password
// both yield model.ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.User, string, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateRequest(req); err != nil {
		return nil, "", err
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, "", model.ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHashed), []byte(req.Password)); err != nil {
		return nil, "", model.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Authenticate resolves a bearer token to its user.
func (s *UserService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}

// GetProfile returns the public profile with populated follow lists.
// Reading a profile counts as a view; the returned count includes this read.
func (s *UserService) GetProfile(ctx context.Context, id string) (*model.ProfileResponse, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	views, err := s.users.IncrementProfileViews(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("increment profile views: %w", err)
	}

	followers, err := s.follows.GetFollowers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get followers: %w", err)
	}
	following, err := s.follows.GetFollowing(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get following: %w", err)
	}

	likesGiven, err := s.posts.CountLikedBy(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count likes given: %w", err)
	}

	return &model.ProfileResponse{
		ID:              user.ID,
		Username:        user.Username,
		Email:           user.Email,
		ProfilePicture:  user.ProfilePicture,
		TotalLikesGiven: likesGiven,
		TotalFollowers:  len(followers),
		TotalFollowing:  len(following),
		ProfileViews:    views,
		Followers:       followers,
		Following:       following,
	}, nil
}

// Update applies the allow-listed fields to the caller's own record. A new
// picture is uploaded first; its URL is only written once the upload is done.
func (s *UserService) Update(ctx context.Context, actorID, targetID string, req *model.UpdateUserRequest, file *model.FileUpload) (*model.User, error) {
	current, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if actorID != current.ID {
		return nil, model.ErrNotAccountOwner
	}

	if req.Username != nil {
		trimmed := strings.TrimSpace(*req.Username)
		req.Username = &trimmed
	}
	if req.Email != nil {
		normalized := strings.ToLower(strings.TrimSpace(*req.Email))
		req.Email = &normalized
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	upd := model.UserUpdate{
		Username: req.Username,
		Email:    req.Email,
	}

	var uploaded *model.UploadResult
	switch {
	case file != nil:
		uploaded, err = s.media.UploadAvatar(ctx, current.ID, file)
		if err != nil {
			return nil, err
		}
		upd.ProfilePicture = &uploaded.URL
		upd.ProfilePictureKey = &uploaded.Key
	case req.ProfilePicture != nil:
		// An externally hosted picture is not ours to delete later.
		noKey := ""
		upd.ProfilePicture = req.ProfilePicture
		upd.ProfilePictureKey = &noKey
	}

	if upd.IsEmpty() {
		return current, nil
	}

	updated, err := s.users.Update(ctx, current.ID, upd)
	if err != nil {
		if uploaded != nil {
			s.media.Release(ctx, uploaded.Key, queue.ReasonRecordNotStored)
		}
		return nil, err
	}

	if upd.ProfilePictureKey != nil && current.ProfilePictureKey != "" && current.ProfilePictureKey != *upd.ProfilePictureKey {
		s.media.Release(ctx, current.ProfilePictureKey, queue.ReasonAvatarReplaced)
	}

	log.Printf("[UserService] Update OK: user=%s", current.ID)
	return updated, nil
}

// Delete removes the caller's own account. Posts and comments are kept.
func (s *UserService) Delete(ctx context.Context, actorID, targetID string) error {
	user, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if actorID != user.ID {
		return model.ErrNotAccountOwner
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		return err
	}

	s.media.Release(ctx, user.ProfilePictureKey, queue.ReasonUserDeleted)
	log.Printf("[UserService] Delete OK: user=%s", user.ID)
	return nil
}

// ToggleFollow flips whether actorID follows targetID. Both sides of the edge change together.
func (s *UserService) ToggleFollow(ctx context.Context, actorID, targetID string) (*model.FollowResult, error) {
	if actorID == targetID {
		return nil, model.ErrCannotFollowSelf
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	following, err := s.follows.Toggle(ctx, actorID, target.ID)
	if err != nil {
		return nil, err
	}

	log.Printf("[UserService] ToggleFollow OK: follower=%s followee=%s following=%t", actorID, target.ID, following)
	return &model.FollowResult{Following: following, Target: target.Summary()}, nil
}

// RequestPasswordReset stores a one-hour reset token and mails the link.
// host builds the default link when no reset URL is configured.
func (s *UserService) RequestPasswordReset(ctx context.Context, req *model.PasswordResetRequest, host string) error {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateRequest(req); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return err
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}

	expiresAt := s.now().Add(model.PasswordResetTTL)
	if err := s.users.SetResetToken(ctx, user.ID, hashToken(token), expiresAt); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	if err := s.mailer.Send(ctx, user.Email, "Password Reset", s.resetMailBody(token, host)); err != nil {
		return fmt.Errorf("%w: %v", model.ErrMailDelivery, err)
	}

	log.Printf("[UserService] RequestPasswordReset OK: user=%s", user.ID)
	return nil
}

// ResetPassword consumes a live reset token. The token is cleared on success.
func (s *UserService) ResetPassword(ctx context.Context, req *model.ResetPasswordRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}

	user, err := s.users.GetByResetToken(ctx, hashToken(req.Token), s.now())
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return model.ErrInvalidResetToken
		}
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, string(hashedPassword)); err != nil {
		return err
	}

	log.Printf("[UserService] ResetPassword OK: user=%s", user.ID)
	return nil
}

func (s *UserService) resetMailBody(token, host string) string {
	base := s.resetURL
	if base == "" {
		base = "http://" + host + "/reset/"
	}

	return "You are receiving this because you (or someone else) have requested the reset of the password for your account.\n\n" +
		"Please click on the following link, or paste this into your browser to complete the process:\n\n" +
		base + token + "\n\n" +
		"If you did not request this, please ignore this email and your password will remain unchanged.\n"
}

func newResetToken() (string, error) {
	buf := make([]byte, model.PasswordResetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
