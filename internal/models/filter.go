package models

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// filter validation errors
var (
	ErrInvalidFilterDate = errors.New("filter dates must be in YYYY-MM-DD format")
	ErrFilterDateOrder   = errors.New("filter start_date must not be after end_date")
)

// filterDateLayout is the wire format for start_date / end_date.
const filterDateLayout = "2006-01-02"

// MessageFilter is the query-parameter set accepted by the message listing
// and search endpoints. Zero values mean "no constraint"; the tri-state
// boolean filters use pointers so false can be asked for explicitly.
type MessageFilter struct {
	Search         string    `json:"search,omitempty"`
	SenderUsername string    `json:"sender_username,omitempty"`
	MediaType      MediaType `json:"media_type,omitempty"`
	HasMedia       *bool     `json:"has_media,omitempty"`
	IsForwarded    *bool     `json:"is_forwarded,omitempty"`
	IsPinned       *bool     `json:"is_pinned,omitempty"`
	StartDate      string    `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate        string    `json:"end_date,omitempty"`   // YYYY-MM-DD
}

// IsZero reports whether the filter constrains nothing.
func (f *MessageFilter) IsZero() bool {
	return f.Search == "" && f.SenderUsername == "" && f.MediaType == "" &&
		f.HasMedia == nil && f.IsForwarded == nil && f.IsPinned == nil &&
		f.StartDate == "" && f.EndDate == ""
}

// Validate performs basic validation of the filter.
func (f *MessageFilter) Validate() error {
	if f.MediaType != "" && !f.MediaType.IsValid() {
		return ErrUnknownMediaType
	}
	start, err := parseFilterDate(f.StartDate)
	if err != nil {
		return err
	}
	end, err := parseFilterDate(f.EndDate)
	if err != nil {
		return err
	}
	if start != nil && end != nil && start.After(*end) {
		return ErrFilterDateOrder
	}
	return nil
}

// Query encodes the filter as URL query parameters, omitting unset fields.
func (f *MessageFilter) Query() url.Values {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.SenderUsername != "" {
		q.Set("sender_username", strings.TrimPrefix(f.SenderUsername, "@"))
	}
	if f.MediaType != "" {
		q.Set("media_type", string(f.MediaType))
	}
	if f.HasMedia != nil {
		q.Set("has_media", strconv.FormatBool(*f.HasMedia))
	}
	if f.IsForwarded != nil {
		q.Set("is_forwarded", strconv.FormatBool(*f.IsForwarded))
	}
	if f.IsPinned != nil {
		q.Set("is_pinned", strconv.FormatBool(*f.IsPinned))
	}
	if f.StartDate != "" {
		q.Set("start_date", f.StartDate)
	}
	if f.EndDate != "" {
		q.Set("end_date", f.EndDate)
	}
	return q
}

// Matches reports whether the message satisfies the filter. The mock backend
// and client-side previews share this with the real backend's semantics:
// has_media combined with media_type selects exactly the records of that type.
func (f *MessageFilter) Matches(m *Message) bool {
	if f.Search != "" && !strings.Contains(strings.ToLower(m.Text), strings.ToLower(f.Search)) {
		return false
	}
	if f.SenderUsername != "" &&
		!strings.EqualFold(strings.TrimPrefix(f.SenderUsername, "@"), m.SenderUsername) {
		return false
	}
	if f.HasMedia != nil && *f.HasMedia != m.HasMedia() {
		return false
	}
	if f.MediaType != "" && m.MediaKind() != f.MediaType {
		return false
	}
	if f.IsForwarded != nil && *f.IsForwarded != m.IsForwarded {
		return false
	}
	if f.IsPinned != nil && *f.IsPinned != m.IsPinned {
		return false
	}
	if start, _ := parseFilterDate(f.StartDate); start != nil && m.Date.Before(*start) {
		return false
	}
	if end, _ := parseFilterDate(f.EndDate); end != nil && !m.Date.Before(end.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

// parseFilterDate parses a YYYY-MM-DD value. Empty input is not an error.
func parseFilterDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(filterDateLayout, s)
	if err != nil {
		return nil, ErrInvalidFilterDate
	}
	return &t, nil
}
