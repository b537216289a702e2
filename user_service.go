package account

import (
	"context"
	"strings"

	"github.com/goliatone/go-command"
	"github.com/samber/oops"
)

// UserService handles the lifecycle of user records. Operations on the
// current user take the caller's bearer token and resolve it first.
type UserService struct {
	store        UserStore
	resolver     IdentityResolver
	hasher       Hasher
	logger       Logger
	activitySink ActivitySink
	useHashid    bool
}

// NewUserService returns a UserService over store that resolves tokens
// with resolver.
func NewUserService(store UserStore, resolver IdentityResolver) *UserService {
	return &UserService{
		store:        store,
		resolver:     resolver,
		hasher:       defaultHasher,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *UserService) WithLogger(logger Logger) *UserService {
	s.logger = normalizeLogger(logger)
	return s
}

// WithHasher sets the hasher used for new and updated passwords
func (s *UserService) WithHasher(h Hasher) *UserService {
	s.hasher = normalizeHasher(h)
	return s
}

// WithActivitySink configures an ActivitySink for lifecycle events.
func (s *UserService) WithActivitySink(sink ActivitySink) *UserService {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithHashidIDs derives user IDs from the email address instead of
// generating random ones.
func (s *UserService) WithHashidIDs(enabled bool) *UserService {
	s.useHashid = enabled
	return s
}

// Register validates and stores a new user through a RegisterUserHandler.
// The password hash never leaves the service.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*Profile, error) {
	msg := RegisterUserMessage{
		Email:     strings.TrimSpace(req.Email),
		Username:  strings.TrimSpace(req.Username),
		Password:  req.Password,
		UseHashid: s.useHashid,
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if err := s.registerHandler().Execute(ctx, msg); err != nil {
		return nil, err
	}

	created, err := s.store.GetByIdentity(ctx, msg.Email)
	if err != nil {
		s.logger.Error("Register read back user error: %v", err)
		return nil, internal(err, "could not read registered user")
	}

	s.emit(ctx, ActivityEventUserRegistered, created, nil)

	return created.Profile(), nil
}

func (s *UserService) registerHandler() command.Commander[RegisterUserMessage] {
	return NewRegisterUserHandler(s.store).
		WithHasher(s.hasher).
		WithLogger(s.logger)
}

// FetchProfile returns the profile of the user token was issued for
func (s *UserService) FetchProfile(ctx context.Context, token string) (*Profile, error) {
	user, err := s.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return user.Profile(), nil
}

// UpdateProfile resolves token and merges update onto that user. A token
// that does not resolve is unauthorized whatever the update holds.
func (s *UserService) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (*Profile, error) {
	current, err := s.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.UpdateUser(ctx, current, update)
}

// UpdateUser merges the provided fields onto current. Fields left nil in
// update are not modified.
func (s *UserService) UpdateUser(ctx context.Context, current *User, update ProfileUpdate) (*Profile, error) {
	if current == nil {
		return nil, unauthorized(ErrIdentityNotFound)
	}

	update = update.Normalized()
	if err := update.Validate(); err != nil {
		return nil, err
	}

	if update.Empty() {
		return current.Profile(), nil
	}

	next := *current
	fields := make([]string, 0, 2)

	if update.Username != nil {
		next.Username = *update.Username
		fields = append(fields, "username")
	}

	if update.Password != nil {
		hash, err := s.hasher.HashPassword(*update.Password)
		if err != nil {
			return nil, err
		}
		next.PasswordHash = hash
		fields = append(fields, "password")
	}

	updated, err := s.store.UpdateByIdentity(ctx, current.Email, &next)
	if err != nil {
		if IsNotFound(err) {
			// removed between resolve and update
			return nil, unauthorized(err)
		}
		s.logger.Error("UpdateProfile update user error: %v", err)
		return nil, internal(err, "could not update user")
	}

	s.emit(ctx, ActivityEventUserUpdated, updated, map[string]any{
		"fields": fields,
	})

	return updated.Profile(), nil
}

// Remove deletes the user token was issued for
func (s *UserService) Remove(ctx context.Context, token string) error {
	current, err := s.resolver.Resolve(ctx, token)
	if err != nil {
		return err
	}
	return s.RemoveUser(ctx, current)
}

// RemoveUser deletes current. Nothing deleted is reported as not found.
func (s *UserService) RemoveUser(ctx context.Context, current *User) error {
	if current == nil {
		return unauthorized(ErrIdentityNotFound)
	}

	affected, err := s.store.DeleteByIdentity(ctx, current.Email)
	if err != nil {
		s.logger.Error("Remove delete user error: %v", err)
		return internal(err, "could not remove user")
	}

	if affected == 0 {
		return oops.In("account").
			Code(CodeNotFound).
			With("identity", current.Email).
			Wrap(ErrRemoveFailed)
	}

	s.emit(ctx, ActivityEventUserRemoved, current, nil)

	return nil
}

func (s *UserService) emit(ctx context.Context, eventType ActivityEventType, user *User, metadata map[string]any) {
	emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: eventType,
		Identity:  user.Email,
		UserID:    user.ID.String(),
		Metadata:  metadata,
	})
}
