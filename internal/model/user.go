package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles a user can hold. The persisted role is authoritative; the role in an
// access token is only the role at issuance.
const (
	RoleStudent = "student"
	RoleTutor   = "tutor"
	RoleAdmin   = "admin"
)

const (
	UserActive   = "active"
	UserInactive = "inactive"
)

// User is a document in the `users` collection. Email is the natural key
// (unique index); ID is generated by MongoDB.
//
// Education, Subjects and HourlyRate only exist while Role is tutor.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Email        string             `bson:"email" json:"email"`
	Name         string             `bson:"name" json:"name"`
	PhotoURL     string             `bson:"photo_url,omitempty" json:"photoURL,omitempty"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         string             `bson:"role" json:"role"`
	Status       string             `bson:"status" json:"status"`
	Education    *string            `bson:"education,omitempty" json:"education,omitempty"`
	Subjects     []string           `bson:"subjects,omitempty" json:"subjects,omitempty"`
	HourlyRate   *float64           `bson:"hourly_rate,omitempty" json:"hourly_rate,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	LastLoggedIn time.Time          `bson:"last_loggedIn" json:"last_loggedIn"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool {
	return r == RoleStudent || r == RoleTutor || r == RoleAdmin
}

// UserPatch is a partial update of a user. Nil fields are left untouched.
// ClearTutorFields removes education, subjects and hourly_rate.
type UserPatch struct {
	Name             *string
	PhotoURL         *string
	Phone            *string
	Role             *string
	Status           *string
	Education        *string
	Subjects         []string
	HourlyRate       *float64
	ClearTutorFields bool
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Name == nil && p.PhotoURL == nil && p.Phone == nil && p.Role == nil &&
		p.Status == nil && p.Education == nil && p.Subjects == nil && p.HourlyRate == nil &&
		!p.ClearTutorFields
}

// UserFilter selects users for list endpoints.
type UserFilter struct {
	Email  string
	Role   string
	Status string
	Search string // case-insensitive substring on name and subjects
}

// RefreshToken is a document in `refresh_tokens`. Only the SHA-256 hash of
// the raw token is stored.
type RefreshToken struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"`
	TokenHash string             `bson:"token_hash"`
	ExpiresAt time.Time          `bson:"expires_at"`
	RevokedAt *time.Time         `bson:"revoked_at,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
}
