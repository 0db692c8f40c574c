package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// ContentType is a logical category of managed site content. Each content
// type is a top-level cache namespace.
type ContentType string

const (
	ContentHero     ContentType = "hero"
	ContentBlog     ContentType = "blog"
	ContentProjects ContentType = "projects"
	ContentSNS      ContentType = "sns"
	ContentContact  ContentType = "contact"
	ContentMedia    ContentType = "media"
	ContentMusic    ContentType = "music"
	ContentSettings ContentType = "settings"
)

var knownContentTypes = []ContentType{
	ContentHero,
	ContentBlog,
	ContentProjects,
	ContentSNS,
	ContentContact,
	ContentMedia,
	ContentMusic,
	ContentSettings,
}

var contentTypePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ContentTypes returns the known content types in a stable order.
func ContentTypes() []ContentType {
	out := make([]ContentType, len(knownContentTypes))
	copy(out, knownContentTypes)
	return out
}

// IsKnown reports whether t is one of the built-in content types.
func (t ContentType) IsKnown() bool {
	for _, k := range knownContentTypes {
		if t == k {
			return true
		}
	}
	return false
}

func (t ContentType) String() string { return string(t) }

// ParseContentType accepts only the built-in content types.
func ParseContentType(s string) (ContentType, error) {
	t := ContentType(s)
	if !t.IsKnown() {
		return "", fmt.Errorf("unknown content type %q", s)
	}
	return t, nil
}

// ValidateContentType checks that a content type name is usable as a
// namespace, whether or not it is one of the built-in types. Content types
// added later fall back to a generated policy.
func ValidateContentType(t ContentType) error {
	if t == "" {
		return fmt.Errorf("content type is required")
	}
	if !contentTypePattern.MatchString(string(t)) {
		return fmt.Errorf("invalid content type: must match %s", contentTypePattern.String())
	}
	return nil
}

// TTLClass is a named expiration tier shared by several content types.
type TTLClass int

const (
	TTLShort TTLClass = iota
	TTLMedium
	TTLLong
	TTLWeek
)

func (c TTLClass) String() string {
	switch c {
	case TTLShort:
		return "short"
	case TTLMedium:
		return "medium"
	case TTLLong:
		return "long"
	case TTLWeek:
		return "week"
	default:
		return "unknown"
	}
}

// DefaultDuration is the built-in duration of the class before operator
// overrides are applied.
func (c TTLClass) DefaultDuration() time.Duration {
	switch c {
	case TTLShort:
		return 5 * time.Minute
	case TTLLong:
		return 24 * time.Hour
	case TTLWeek:
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}

// ParseTTLClass parses "short", "medium", "long" or "week".
func ParseTTLClass(s string) (TTLClass, error) {
	switch s {
	case "short":
		return TTLShort, nil
	case "medium":
		return TTLMedium, nil
	case "long":
		return TTLLong, nil
	case "week":
		return TTLWeek, nil
	}
	return TTLMedium, fmt.Errorf("unknown ttl class %q", s)
}

// Document is one piece of managed content as stored by the source of truth.
// A document with an empty ID is never persisted.
type Document struct {
	ID        string          `json:"id"`
	Type      ContentType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Published bool            `json:"published"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
