package account

import (
	"context"
	"errors"
	"strings"
	"time"
)

type Auther struct {
	provider     IdentityProvider
	tokenService *TokenService
	accessTTL    time.Duration
	refreshTTL   time.Duration
	logger       Logger
	activitySink ActivitySink
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator. It fails when the signing
// key or algorithm in opts cannot be used.
func NewAuthenticator(provider IdentityProvider, opts Config) (*Auther, error) {
	tokenService, err := NewTokenService([]byte(opts.GetSigningKey()), opts.GetSigningMethod())
	if err != nil {
		return nil, err
	}

	return &Auther{
		provider:     provider,
		tokenService: tokenService,
		accessTTL:    minutes(opts.GetAccessTokenExpiration(), DefaultAccessTokenExpiration),
		refreshTTL:   minutes(opts.GetRefreshTokenExpiration(), DefaultRefreshTokenExpiration),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}, nil
}

// WithLogger sets the logger of the Authenticator and of its TokenService
func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	WithTokenLogger(s.logger)(s.tokenService)
	return s
}

// WithTokenService replaces the TokenService built from the config
func (s *Auther) WithTokenService(ts *TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() *TokenService {
	return s.tokenService
}

// AccessTokenExpiration returns the access token TTL
func (s *Auther) AccessTokenExpiration() time.Duration {
	return s.accessTTL
}

// Login verifies credentials and issues a TokenPair.
func (s *Auther) Login(ctx context.Context, credentials Credentials) (*TokenPair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	user, err := s.provider.VerifyIdentity(ctx, credentials.Email, credentials.Password)
	if err != nil {
		if IsUnauthorized(err) {
			s.logger.Debug("Login rejected: %v", err)
		} else {
			s.logger.Error("Login verify identity error: %v", err)
		}
		s.emit(ctx, ActivityEventLoginFailure, credentials.Email, "", map[string]any{
			"error": err.Error(),
		})
		return nil, err
	}

	pair, err := s.issue(user.Email, user.ID.String())
	if err != nil {
		s.emit(ctx, ActivityEventLoginFailure, user.Email, user.ID.String(), map[string]any{
			"error": err.Error(),
		})
		return nil, err
	}

	s.emit(ctx, ActivityEventLoginSuccess, user.Email, user.ID.String(), nil)

	return pair, nil
}

// Refresh exchanges a refresh token for a new TokenPair. The presented
// token is not invalidated.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := s.tokenService.Decode(refreshToken)
	if err != nil {
		s.logger.Debug("Refresh decode error: %v", err)
		s.emit(ctx, ActivityEventRefreshFailure, "", "", map[string]any{
			"error": err.Error(),
		})
		return nil, invalidGrant(err)
	}

	if payload.Class != TokenClassRefresh {
		s.emit(ctx, ActivityEventRefreshFailure, payload.Subject, payload.UserID, map[string]any{
			"token_type": string(payload.Class),
		})
		return nil, invalidGrant(errors.New("token is not a refresh token"))
	}

	pair, err := s.issue(payload.Subject, payload.UserID)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, ActivityEventRefreshSuccess, payload.Subject, payload.UserID, nil)

	return pair, nil
}

// Resolve returns the user an access token was issued for. Refresh tokens,
// invalid tokens and tokens of deleted users are all unauthorized.
func (s *Auther) Resolve(ctx context.Context, token string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, unauthorized(errors.New("missing token"))
	}

	payload, err := s.tokenService.Decode(token)
	if err != nil {
		s.logger.Debug("Resolve decode error: %v", err)
		s.emit(ctx, ActivityEventTokenRejected, "", "", map[string]any{
			"error": err.Error(),
		})
		return nil, unauthorized(err)
	}

	if payload.Class == TokenClassRefresh {
		s.emit(ctx, ActivityEventTokenRejected, payload.Subject, payload.UserID, map[string]any{
			"token_type": string(payload.Class),
		})
		return nil, unauthorized(errors.New("refresh token used as access token"))
	}

	user, err := s.provider.FindIdentity(ctx, payload.Subject)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			s.emit(ctx, ActivityEventTokenRejected, payload.Subject, payload.UserID, map[string]any{
				"error": err.Error(),
			})
			return nil, unauthorized(err)
		}
		s.logger.Error("Resolve find identity error: %v", err)
		return nil, internal(err, "failed to resolve token subject")
	}

	return user, nil
}

// Grant dispatches a token request to the flow selected by its grant type.
func (s *Auther) Grant(ctx context.Context, request TokenRequest) (*TokenPair, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	switch request.GrantType {
	case GrantTypePassword:
		return s.Login(ctx, *request.User)
	case GrantTypeRefreshToken:
		return s.Refresh(ctx, request.RefreshToken)
	default:
		return nil, invalidGrant(nil)
	}
}

func (s *Auther) issue(subject, userID string) (*TokenPair, error) {
	access, err := s.tokenService.Encode(TokenPayload{
		Subject: subject,
		UserID:  userID,
		Class:   TokenClassAccess,
	}, s.accessTTL)
	if err != nil {
		s.logger.Error("failed to encode access token: %v", err)
		return nil, err
	}

	refresh, err := s.tokenService.Encode(TokenPayload{
		Subject: subject,
		UserID:  userID,
		Class:   TokenClassRefresh,
	}, s.refreshTTL)
	if err != nil {
		s.logger.Error("failed to encode refresh token: %v", err)
		return nil, err
	}

	return &TokenPair{
		TokenType:    TokenTypeBearer,
		AccessToken:  access,
		ExpiresIn:    int(s.accessTTL / time.Minute),
		RefreshToken: refresh,
	}, nil
}

func (s *Auther) emit(ctx context.Context, eventType ActivityEventType, identity, userID string, metadata map[string]any) {
	emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: eventType,
		Identity:  identity,
		UserID:    userID,
		Metadata:  metadata,
	})
}

func minutes(value, def int) time.Duration {
	if value <= 0 {
		value = def
	}
	return time.Duration(value) * time.Minute
}
