package account

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/samber/oops"
)

// GrantType selects the credential exchange flow
type GrantType = string

const (
	// GrantTypePassword exchanges email and password for a TokenPair
	GrantTypePassword GrantType = "password"
	// GrantTypeRefreshToken exchanges a refresh token for a TokenPair
	GrantTypeRefreshToken GrantType = "refresh_token"
)

// Credentials payload
type Credentials struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// TokenRequest is the body of POST /token
type TokenRequest struct {
	GrantType    GrantType    `json:"grant_type" form:"grant_type"`
	User         *Credentials `json:"user,omitempty"`
	RefreshToken string       `json:"refresh_token,omitempty" form:"refresh_token"`
}

// Validate checks that the payload matching GrantType is present. Any
// other combination is an invalid grant.
func (r TokenRequest) Validate() error {
	switch r.GrantType {
	case GrantTypePassword:
		if r.User == nil {
			return invalidGrant(errors.New("password grant requires user"))
		}
	case GrantTypeRefreshToken:
		if strings.TrimSpace(r.RefreshToken) == "" {
			return invalidGrant(errors.New("refresh_token grant requires refresh_token"))
		}
	default:
		return invalidGrant(errors.New("unknown grant type"))
	}
	return nil
}

// RegisterRequest is the body of POST /users
type RegisterRequest struct {
	Email    string `json:"email" form:"email"`
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required.Error("Email field is required"),
			is.Email.Error("Email must be a valid email address"),
		),
		validation.Field(
			&r.Username,
			validation.Required.Error("Username field is required"),
		),
		validation.Field(
			&r.Password,
			validation.Required.Error("Password field is required"),
		),
	))
}

// ProfileUpdate is the body of PATCH /users/me. Nil fields are left
// untouched.
type ProfileUpdate struct {
	Username *string `json:"username,omitempty" form:"username"`
	Password *string `json:"password,omitempty" form:"password"`
}

// Normalized returns a copy of r with the username trimmed
func (r ProfileUpdate) Normalized() ProfileUpdate {
	if r.Username != nil {
		username := strings.TrimSpace(*r.Username)
		r.Username = &username
	}
	return r
}

// Validate will run validation rules. A username made of whitespace only
// counts as empty.
func (r ProfileUpdate) Validate() error {
	r = r.Normalized()
	return validationError(validation.ValidateStruct(&r,
		validation.Field(
			&r.Username,
			validation.NilOrNotEmpty.Error("Username must not be empty"),
		),
		validation.Field(
			&r.Password,
			validation.NilOrNotEmpty.Error("Password must not be empty"),
		),
	))
}

// Empty reports whether the update carries no field
func (r ProfileUpdate) Empty() bool {
	return r.Username == nil && r.Password == nil
}

func validationError(err error) error {
	if err == nil {
		return nil
	}

	var errs validation.Errors
	if !errors.As(err, &errs) {
		return oops.In("account").Code(CodeValidation).Wrap(err)
	}

	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	messages := make([]string, 0, len(fields))
	for _, field := range fields {
		messages = append(messages, errs[field].Error())
	}

	return oops.In("account").
		Code(CodeValidation).
		With("fields", fields).
		Wrap(errors.New(strings.Join(messages, "; ")))
}
