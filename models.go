package account

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TokenTypeBearer is the token_type reported with every TokenPair
const TokenTypeBearer = "bearer"

// User is the user model. Email is the identity and must be unique.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Email         string    `bun:"email,notnull,unique" json:"email"`
	Username      string    `bun:"username,notnull" json:"username"`
	PasswordHash  string    `bun:"password_hash,notnull" json:"-"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// Profile returns the public projection of the user
func (u *User) Profile() *Profile {
	if u == nil {
		return nil
	}
	return &Profile{
		ID:       u.ID.String(),
		Username: u.Username,
		Email:    u.Email,
	}
}

// Profile is what callers get to see of a user
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// TokenPair is issued on login and on refresh
type TokenPair struct {
	TokenType    string `json:"token_type"`
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// Models lists the bun models owned by this package
func Models() []any {
	return []any{
		(*User)(nil),
	}
}

func prepareUserDefaults(record *User, now time.Time) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}

	record.UpdatedAt = now
}
