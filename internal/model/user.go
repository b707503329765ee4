package model

import (
	"errors"
	"time"
)

// User represents a registered account.
// Followers and Following are only materialised by document-oriented stores;
// relational stores keep them in the follows table.
type User struct {
	ID                  string     `db:"id" bson:"_id" json:"id"`
	Username            string     `db:"username" bson:"username" json:"username"`
	Email               string     `db:"email" bson:"email" json:"email"`
	PasswordHashed      string     `db:"password_hashed" bson:"password_hashed" json:"-"` // never serialised
	ProfilePicture      string     `db:"profile_picture" bson:"profile_picture" json:"profile_picture"`
	ProfilePictureKey   string     `db:"profile_picture_key" bson:"profile_picture_key" json:"-"`
	ProfileViews        int        `db:"profile_views" bson:"profile_views" json:"profileViews"`
	Followers           []string   `db:"-" bson:"followers" json:"-"`
	Following           []string   `db:"-" bson:"following" json:"-"`
	ResetPasswordToken  *string    `db:"reset_password_token" bson:"reset_password_token,omitempty" json:"-"`
	ResetPasswordExpiry *time.Time `db:"reset_password_expiry" bson:"reset_password_expiry,omitempty" json:"-"`
	CreatedAt           time.Time  `db:"created_at" bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" bson:"updated_at" json:"updated_at"`
}

// UserSummary is the public projection of a user used when populating references.
type UserSummary struct {
	ID             string `db:"id" bson:"_id" json:"id"`
	Username       string `db:"username" bson:"username" json:"username"`
	Email          string `db:"email" bson:"email" json:"email"`
	ProfilePicture string `db:"profile_picture" bson:"profile_picture" json:"profile_picture"`
}

// Summary returns the public fields of u.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
	}
}

// RegisterRequest represents the data needed to register a new user
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest represents the data needed to log in
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateUserRequest is the allow-list of fields a user may change on their own record.
type UpdateUserRequest struct {
	Username       *string `json:"username" validate:"omitnil,min=3"`
	Email          *string `json:"email" validate:"omitnil,email"`
	ProfilePicture *string `json:"profile_picture"`
}

// UserUpdate is what the store applies. Nil fields are left untouched.
type UserUpdate struct {
	Username          *string
	Email             *string
	ProfilePicture    *string
	ProfilePictureKey *string
}

// IsEmpty reports whether the update would change nothing.
func (u UserUpdate) IsEmpty() bool {
	return u.Username == nil && u.Email == nil && u.ProfilePicture == nil && u.ProfilePictureKey == nil
}

// PasswordResetRequest asks for a reset link to be mailed.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest consumes a reset token.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Message string      `json:"message"`
	User    UserSummary `json:"user"`
	Token   string      `json:"token"`
}

// ProfileResponse is returned by GET /users/{id}.
type ProfileResponse struct {
	ID              string        `json:"id"`
	Username        string        `json:"username"`
	Email           string        `json:"email"`
	ProfilePicture  string        `json:"profile_picture"`
	TotalLikesGiven int           `json:"totalLikesGiven"`
	TotalFollowers  int           `json:"totalFollowers"`
	TotalFollowing  int           `json:"totalFollowing"`
	ProfileViews    int           `json:"profileViews"`
	Followers       []UserSummary `json:"followers"`
	Following       []UserSummary `json:"following"`
}

// FollowResult describes the state after a follow toggle.
type FollowResult struct {
	Following bool
	Target    UserSummary
}

const (
	PasswordResetTokenBytes = 20
	PasswordResetTTL        = time.Hour
)

// Error codes for HTTP responses
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUserExists   = "USER_EXISTS"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
	CodeMailFailed   = "MAIL_FAILED"
)

var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned when the username or email is already taken
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidCredentials is returned when login credentials are incorrect
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrNotAccountOwner   = errors.New("not the owner of this account")
	ErrCannotFollowSelf  = errors.New("cannot follow yourself")
	ErrInvalidResetToken = errors.New("invalid or expired token")
	ErrMailDelivery      = errors.New("mail delivery failed")

	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// UserEnvelope wraps a public user with a status message.
type UserEnvelope struct {
	Message string      `json:"message"`
	User    UserSummary `json:"user"`
}
