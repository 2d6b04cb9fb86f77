package models

import (
	"errors"
	"strings"
	"time"
)

// rule validation errors
var (
	ErrRuleNameRequired = errors.New("rule name is required")
	ErrRuleDateOrder    = errors.New("rule date_from must not be after date_to")
)

// Rule is a named set of match conditions. Rules drive both ad hoc message
// filtering in the console and persisted download tasks on the backend.
//
// Nil pointer conditions mean "don't care".
type Rule struct {
	ID   int64  `json:"id" yaml:"id,omitempty"`
	Name string `json:"name" yaml:"name"`

	// conditions
	Keywords       []string    `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	MediaTypes     []MediaType `json:"media_types,omitempty" yaml:"media_types,omitempty"`
	SenderUsername string      `json:"sender_username,omitempty" yaml:"sender_username,omitempty"`
	IsForwarded    *bool       `json:"is_forwarded,omitempty" yaml:"is_forwarded,omitempty"`
	IsPinned       *bool       `json:"is_pinned,omitempty" yaml:"is_pinned,omitempty"`
	DateFrom       *time.Time  `json:"date_from,omitempty" yaml:"date_from,omitempty"`
	DateTo         *time.Time  `json:"date_to,omitempty" yaml:"date_to,omitempty"`

	IsActive bool `json:"is_active" yaml:"is_active"`

	// timestamps
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"-"`
}

// Validate performs basic validation of the rule.
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrRuleNameRequired
	}
	for _, mt := range r.MediaTypes {
		if !mt.IsValid() {
			return ErrUnknownMediaType
		}
	}
	if r.DateFrom != nil && r.DateTo != nil && r.DateFrom.After(*r.DateTo) {
		return ErrRuleDateOrder
	}
	return nil
}

// Matches reports whether the message satisfies every condition of the rule.
// Keyword matching is case-insensitive substring over the text body; multiple
// keywords match if any one of them does.
func (r *Rule) Matches(m *Message) bool {
	if len(r.Keywords) > 0 {
		text := strings.ToLower(m.Text)
		found := false
		for _, kw := range r.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(text, strings.ToLower(kw)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(r.MediaTypes) > 0 {
		kind := m.MediaKind()
		found := false
		for _, mt := range r.MediaTypes {
			if mt == kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if r.SenderUsername != "" {
		if !strings.EqualFold(strings.TrimPrefix(r.SenderUsername, "@"), m.SenderUsername) {
			return false
		}
	}

	if r.IsForwarded != nil && *r.IsForwarded != m.IsForwarded {
		return false
	}
	if r.IsPinned != nil && *r.IsPinned != m.IsPinned {
		return false
	}

	if r.DateFrom != nil && m.Date.Before(*r.DateFrom) {
		return false
	}
	if r.DateTo != nil && m.Date.After(*r.DateTo) {
		return false
	}

	return true
}

// RuleFile is the on-disk YAML document for importing and exporting rules.
type RuleFile struct {
	Rules []Rule `yaml:"rules"`
}
