package account

import (
	"context"
	"strings"

	"github.com/goliatone/go-command"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/samber/oops"
)

// RegisterUserMessage asks for a new user record
type RegisterUserMessage struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	UseHashid bool   `json:"-"`
}

var _ command.Message = RegisterUserMessage{}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate checks the message fields after trimming email and username
func (e RegisterUserMessage) Validate() error {
	return RegisterRequest{
		Email:    strings.TrimSpace(e.Email),
		Username: strings.TrimSpace(e.Username),
		Password: e.Password,
	}.Validate()
}

// RegisterUserHandler stores the user described by a RegisterUserMessage
type RegisterUserHandler struct {
	store  UserStore
	hasher Hasher
	logger Logger
}

var _ command.Commander[RegisterUserMessage] = (*RegisterUserHandler)(nil)

func NewRegisterUserHandler(store UserStore) *RegisterUserHandler {
	return &RegisterUserHandler{
		store:  store,
		hasher: defaultHasher,
		logger: defLogger{},
	}
}

func (h *RegisterUserHandler) WithHasher(hasher Hasher) *RegisterUserHandler {
	h.hasher = normalizeHasher(hasher)
	return h
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return oops.In("account").Code(CodeInternal).Wrapf(ctx.Err(), "context cancelled during user registration")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		return err
	}

	user := &User{
		Email:        strings.TrimSpace(event.Email),
		Username:     strings.TrimSpace(event.Username),
		PasswordHash: hash,
	}

	if event.UseHashid {
		if id, err := hashid.NewUUID(user.Email); err == nil {
			user.ID = id
		} else {
			h.logger.Warn("hashid for %s failed, using random id: %v", user.Email, err)
		}
	}

	if _, err := h.store.Create(ctx, user); err != nil {
		if ErrorCode(err) == CodeInternal {
			h.logger.Error("Register create user error: %v", err)
		}
		return internal(err, "could not create user")
	}

	return nil
}
