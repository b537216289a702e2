package jwtware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goliatone/go-router"
)

var (
	defaultTokenLookup       = "header:" + router.HeaderAuthorization
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
)

// TokenValidator checks a raw bearer token and returns what should be
// stored for the request. It mirrors IdentityResolver from the account
// package without importing it.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (any, error)
}

// TokenValidatorFunc adapts a function to TokenValidator
type TokenValidatorFunc func(ctx context.Context, token string) (any, error)

func (f TokenValidatorFunc) Validate(ctx context.Context, token string) (any, error) {
	return f(ctx, token)
}

// ErrorHandler renders a failed extraction or validation
type ErrorHandler func(router.Context, error) error

type Config struct {
	Filter func(router.Context) bool
	// SuccessHandler runs after the token was stored. Defaults to the
	// next handler in the chain.
	SuccessHandler router.HandlerFunc
	ErrorHandler   ErrorHandler
	// ContextKey is the context store key the raw token is stored under
	ContextKey string
	// TokenLookup is a comma separated list of source:name pairs, e.g.
	// "header:Authorization,query:token,cookie:jwt,param:token"
	TokenLookup string
	AuthScheme  string
	// TokenValidator is optional. When set the validated value is stored
	// under SubjectKey.
	TokenValidator TokenValidator
	SubjectKey     string
}

func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		extractors := cfg.getExtractors()

		success := cfg.SuccessHandler
		if success == nil {
			success = hf
		}

		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return hf(ctx)
			}

			raw, err := ExtractRawTokenFromContext(ctx, extractors)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Set(cfg.ContextKey, raw)

			if cfg.TokenValidator != nil {
				subject, err := cfg.TokenValidator.Validate(ctx.Context(), raw)
				if err != nil {
					return cfg.ErrorHandler(ctx, err)
				}
				ctx.Set(cfg.SubjectKey, subject)
			}

			return success(ctx)
		}
	}
}

// TokenFromContext returns the raw token New stored under key
func TokenFromContext(c router.Context, key ...string) (string, bool) {
	k := "token"
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}
	raw := c.GetString(k, "")
	return raw, raw != ""
}

// SubjectFromContext returns the value the TokenValidator produced
func SubjectFromContext(c router.Context, key ...string) (any, bool) {
	k := "user"
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}
	subject := c.Get(k, nil)
	return subject, subject != nil
}

func ExtractRawTokenFromContext(c router.Context, extractors []JWTExtractor) (string, error) {
	raw, err := "", ErrJWTMissingOrMalformed

	for _, extractor := range extractors {
		raw, err = extractor(c)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			c.SetHeader("WWW-Authenticate", "Bearer")
			if errors.Is(err, ErrJWTMissingOrMalformed) {
				return c.Status(http.StatusUnauthorized).Send([]byte(ErrJWTMissingOrMalformed.Error()))
			}
			return c.Status(http.StatusUnauthorized).Send([]byte("Invalid or expired token"))
		}
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "token"
	}

	if cfg.SubjectKey == "" {
		cfg.SubjectKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 && strings.TrimSpace(authSchemes[0]) != "" {
		authScheme = strings.TrimSpace(authSchemes[0])
	}

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}

		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

		switch source {
		case "header":
			extractors = append(extractors, jwtFromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(name))
		case "param":
			extractors = append(extractors, jwtFromParam(name))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(name))
		}
	}

	return extractors
}

type JWTExtractor func(c router.Context) (string, error)

// jwtFromHeader returns a function that extracts token from the request header.
func jwtFromHeader(header string, authScheme string) JWTExtractor {
	return func(c router.Context) (string, error) {
		a := c.Header(header)
		l := len(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			if token := strings.TrimSpace(a[l:]); token != "" {
				return token, nil
			}
		}
		return "", ErrJWTMissingOrMalformed
	}
}

// jwtFromQuery returns a function that extracts token from the query string.
func jwtFromQuery(param string) JWTExtractor {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromParam returns a function that extracts token from the url param string.
func jwtFromParam(param string) JWTExtractor {
	return func(c router.Context) (string, error) {
		token := c.Param(param, "")
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromCookie returns a function that extracts token from the named cookie.
// The router context has no cookie accessor so the Cookie header is parsed.
func jwtFromCookie(name string) JWTExtractor {
	return func(c router.Context) (string, error) {
		cookies, err := http.ParseCookie(c.Header("Cookie"))
		if err != nil {
			return "", ErrJWTMissingOrMalformed
		}
		for _, cookie := range cookies {
			if cookie.Name == name && cookie.Value != "" {
				return cookie.Value, nil
			}
		}
		return "", ErrJWTMissingOrMalformed
	}
}
