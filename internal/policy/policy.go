// Package policy is the single source of truth for how long each content
// type stays fresh and how its cache keys are named. It performs no I/O.
package policy

import (
	"errors"
	"strings"
	"time"

	"github.com/oriys/folio/internal/domain"
)

// ErrUnknownContentType is returned where only built-in content types are
// accepted (the admin surface). Internal lookups never fail on unknown types.
var ErrUnknownContentType = errors.New("unknown content type")

// Rule is the policy of one content type.
type Rule struct {
	Class  domain.TTLClass
	Prefix string
}

// DefaultRules maps every built-in content type to its TTL class and prefix.
var DefaultRules = map[domain.ContentType]Rule{
	domain.ContentHero:     {Class: domain.TTLLong, Prefix: "hero:"},
	domain.ContentBlog:     {Class: domain.TTLMedium, Prefix: "blog:"},
	domain.ContentProjects: {Class: domain.TTLLong, Prefix: "projects:"},
	domain.ContentSNS:      {Class: domain.TTLShort, Prefix: "sns:"},
	domain.ContentContact:  {Class: domain.TTLWeek, Prefix: "contact:"},
	domain.ContentMedia:    {Class: domain.TTLLong, Prefix: "media:"},
	domain.ContentMusic:    {Class: domain.TTLMedium, Prefix: "music:"},
	domain.ContentSettings: {Class: domain.TTLWeek, Prefix: "settings:"},
}

// Overrides tunes the default policy. Zero values keep the defaults.
type Overrides struct {
	ClassDurations map[domain.TTLClass]time.Duration
	Classes        map[domain.ContentType]domain.TTLClass
	Prefixes       map[domain.ContentType]string
}

// Policy is an immutable content-type → (TTL, prefix) table. Changing the
// policy means building a new Policy; entries already stored keep the TTL
// they were written with.
type Policy struct {
	rules     map[domain.ContentType]Rule
	durations map[domain.TTLClass]time.Duration
}

// Default returns the built-in policy.
func Default() *Policy {
	return New(Overrides{})
}

// New builds a policy from the defaults plus overrides.
func New(o Overrides) *Policy {
	p := &Policy{
		rules:     make(map[domain.ContentType]Rule, len(DefaultRules)),
		durations: make(map[domain.TTLClass]time.Duration, 4),
	}
	for _, c := range []domain.TTLClass{domain.TTLShort, domain.TTLMedium, domain.TTLLong, domain.TTLWeek} {
		p.durations[c] = c.DefaultDuration()
		if d, ok := o.ClassDurations[c]; ok && d > 0 {
			p.durations[c] = d
		}
	}
	for ct, r := range DefaultRules {
		p.rules[ct] = r
	}
	for ct, class := range o.Classes {
		r := p.ruleFor(ct)
		r.Class = class
		p.rules[ct] = r
	}
	for ct, prefix := range o.Prefixes {
		if prefix == "" {
			continue
		}
		r := p.ruleFor(ct)
		r.Prefix = prefix
		p.rules[ct] = r
	}
	return p
}

func (p *Policy) ruleFor(ct domain.ContentType) Rule {
	if r, ok := p.rules[ct]; ok {
		return r
	}
	return Rule{Class: domain.TTLMedium, Prefix: GeneratedPrefix(ct)}
}

// GeneratedPrefix derives the prefix of a content type with no configured
// rule so invalidation can still be scoped.
func GeneratedPrefix(ct domain.ContentType) string {
	name := strings.ToLower(strings.TrimSpace(string(ct)))
	if name == "" {
		name = "default"
	}
	return "ct:" + name + ":"
}

// ContentTypes returns the built-in content types covered by the policy.
func (p *Policy) ContentTypes() []domain.ContentType {
	return domain.ContentTypes()
}

// ClassFor returns the TTL class of ct; unknown types are medium.
func (p *Policy) ClassFor(ct domain.ContentType) domain.TTLClass {
	return p.ruleFor(ct).Class
}

// TTLFor returns how long entries of ct stay fresh.
func (p *Policy) TTLFor(ct domain.ContentType) time.Duration {
	return p.durations[p.ClassFor(ct)]
}

// PrefixFor returns the key prefix of ct.
func (p *Policy) PrefixFor(ct domain.ContentType) string {
	return p.ruleFor(ct).Prefix
}

// KeyFor builds prefix+identifier. An empty identifier addresses the whole
// collection, whose key is the bare prefix: no item identifier can produce
// it, so an item named "all" or "list" never shares the collection's entry.
func (p *Policy) KeyFor(ct domain.ContentType, identifier string) string {
	return p.PrefixFor(ct) + identifier
}

// PatternFor returns the glob matching every entry of ct.
func (p *Policy) PatternFor(ct domain.ContentType) string {
	return p.PrefixFor(ct) + "*"
}

// Resolve maps an admin-supplied name to a built-in content type.
func (p *Policy) Resolve(name string) (domain.ContentType, error) {
	ct, err := domain.ParseContentType(name)
	if err != nil {
		return "", ErrUnknownContentType
	}
	return ct, nil
}
