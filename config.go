package account

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

const (
	// DefaultAccessTokenExpiration is one day, in minutes
	DefaultAccessTokenExpiration = 60 * 24
	// DefaultRefreshTokenExpiration is thirty days, in minutes
	DefaultRefreshTokenExpiration = 60 * 24 * 30
	// DefaultStoreTimeout is the store connection timeout, in milliseconds
	DefaultStoreTimeout = 1000
)

// Options is the service configuration. It implements Config.
type Options struct {
	SigningKey             string `koanf:"signing_key" json:"signing_key"`
	SigningMethod          string `koanf:"signing_method" json:"signing_method"`
	AccessTokenExpiration  int    `koanf:"access_token_expiration" json:"access_token_expiration"`
	RefreshTokenExpiration int    `koanf:"refresh_token_expiration" json:"refresh_token_expiration"`
	StoreDSN               string `koanf:"store_dsn" json:"store_dsn"`
	StoreTimeout           int    `koanf:"store_timeout" json:"store_timeout"`
	HTTPAddress            string `koanf:"http_address" json:"http_address"`
	APIPrefix              string `koanf:"api_prefix" json:"api_prefix"`
	LogFormat              string `koanf:"log_format" json:"log_format"`
	BcryptCost             int    `koanf:"bcrypt_cost" json:"bcrypt_cost"`
	HashidIDs              bool   `koanf:"hashid_ids" json:"hashid_ids"`
	Debug                  bool   `koanf:"debug" json:"debug"`
}

var _ Config = (*Options)(nil)

// DefaultOptions returns development defaults. The signing key must be
// overridden outside of development.
func DefaultOptions() *Options {
	return &Options{
		SigningKey:             "09d25e094faa6ca2556c818166b7a9563b93f7099f6f0f4caa6cf63b88e8d3e7",
		SigningMethod:          DefaultSigningMethod,
		AccessTokenExpiration:  DefaultAccessTokenExpiration,
		RefreshTokenExpiration: DefaultRefreshTokenExpiration,
		StoreDSN:               "file:account.db?cache=shared",
		StoreTimeout:           DefaultStoreTimeout,
		HTTPAddress:            ":8080",
		APIPrefix:              "/api/v0.1",
		LogFormat:              "json",
		BcryptCost:             passwordHashCost(),
	}
}

func (o *Options) GetSigningKey() string {
	return o.SigningKey
}

func (o *Options) GetSigningMethod() string {
	return o.SigningMethod
}

func (o *Options) GetAccessTokenExpiration() int {
	return o.AccessTokenExpiration
}

func (o *Options) GetRefreshTokenExpiration() int {
	return o.RefreshTokenExpiration
}

// Validate will run validation rules
func (o *Options) Validate() error {
	err := validation.ValidateStruct(o,
		validation.Field(&o.SigningKey, validation.Required),
		validation.Field(&o.SigningMethod, validation.Required, validation.In("HS256", "HS384", "HS512")),
		validation.Field(&o.AccessTokenExpiration, validation.Required, validation.Min(1)),
		validation.Field(&o.RefreshTokenExpiration, validation.Required, validation.Min(1)),
		validation.Field(&o.StoreDSN, validation.Required),
		validation.Field(&o.StoreTimeout, validation.Required, validation.Min(1)),
		validation.Field(&o.LogFormat, validation.In("json", "text")),
	)
	if err != nil {
		return oops.In("config").Code(CodeValidation).Wrapf(err, "invalid configuration")
	}
	return nil
}

// RegisterFlags adds one flag per option to fs, using dashes instead of
// underscores in the flag names.
func RegisterFlags(fs *pflag.FlagSet) {
	def := DefaultOptions()
	fs.String("signing-key", def.SigningKey, "token signing secret")
	fs.String("signing-method", def.SigningMethod, "token signing algorithm (HS256, HS384, HS512)")
	fs.Int("access-token-expiration", def.AccessTokenExpiration, "access token TTL in minutes")
	fs.Int("refresh-token-expiration", def.RefreshTokenExpiration, "refresh token TTL in minutes")
	fs.String("store-dsn", def.StoreDSN, "store connection target")
	fs.Int("store-timeout", def.StoreTimeout, "store connection timeout in milliseconds")
	fs.String("http-address", def.HTTPAddress, "HTTP listen address")
	fs.String("api-prefix", def.APIPrefix, "prefix for the HTTP routes")
	fs.String("log-format", def.LogFormat, "log format (json or text)")
	fs.Int("bcrypt-cost", def.BcryptCost, "bcrypt cost factor")
	fs.Bool("hashid-ids", def.HashidIDs, "derive user IDs from the email address")
	fs.Bool("debug", def.Debug, "log request payloads")
}

// LoadOptions layers defaults, the YAML file at path (if any) and the flags
// that were set on fs, then validates the result.
func LoadOptions(path string, fs *pflag.FlagSet) (*Options, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.In("config").Code(CodeValidation).With("path", path).Wrapf(err, "failed to load config file")
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.In("config").Code(CodeValidation).Wrapf(err, "failed to load flags")
		}
	}

	opts := DefaultOptions()
	if err := k.Unmarshal("", opts); err != nil {
		return nil, oops.In("config").Code(CodeValidation).Wrapf(err, "failed to decode configuration")
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return opts, nil
}
