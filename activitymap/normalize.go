// Package activitymap flattens account activity events into records that
// log pipelines and audit stores can ingest without knowing the account
// types.
package activitymap

import (
	"strings"
	"time"

	"github.com/goliatone/go-account"
)

// MetadataKeyIdentity stores the email address the event was recorded for.
const MetadataKeyIdentity = "identity"

const (
	defaultObjectType = "user"
	anonymousActor    = "anonymous"
)

// Normalized is a transport-agnostic activity record
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel         string
	objectType      string
	includeIdentity bool
}

// Normalize converts an account.ActivityEvent into a Normalized record.
// The channel defaults to the event type prefix ("auth" or "user").
// Identities stay out of the record unless WithIdentity is set.
func Normalize(event account.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{objectType: defaultObjectType}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	verb := string(event.EventType)

	channel := options.channel
	if channel == "" {
		channel, _, _ = strings.Cut(verb, ".")
	}

	actorID := strings.TrimSpace(event.UserID)
	if actorID == "" {
		actorID = anonymousActor
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	metadata := cloneMap(event.Metadata)
	if identity := strings.TrimSpace(event.Identity); options.includeIdentity && identity != "" {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[MetadataKeyIdentity] = identity
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       verb,
		ObjectType: options.objectType,
		ObjectID:   strings.TrimSpace(event.UserID),
		Channel:    channel,
		Metadata:   metadata,
		OccurredAt: occurredAt,
	}
}

// WithChannel forces the channel of every record
func WithChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithObjectType sets the object type, "user" by default
func WithObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		if objectType = strings.TrimSpace(objectType); objectType != "" {
			opts.objectType = objectType
		}
	}
}

// WithIdentity copies the event identity into the record metadata
func WithIdentity(include bool) Option {
	return func(opts *normalizeOptions) {
		opts.includeIdentity = include
	}
}

// Attrs returns the record as alternating key/value pairs for structured
// loggers.
func (n Normalized) Attrs() []any {
	attrs := []any{
		"actor_id", n.ActorID,
		"verb", n.Verb,
		"channel", n.Channel,
		"occurred_at", n.OccurredAt,
	}
	if n.ObjectID != "" {
		attrs = append(attrs, "object_type", n.ObjectType, "object_id", n.ObjectID)
	}
	if len(n.Metadata) > 0 {
		attrs = append(attrs, "metadata", n.Metadata)
	}
	return attrs
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
