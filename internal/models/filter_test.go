package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessageFilter_Validate(t *testing.T) {
	assert.NoError(t, (&MessageFilter{}).Validate())
	assert.NoError(t, (&MessageFilter{StartDate: "2024-01-01", EndDate: "2024-01-31"}).Validate())
	assert.ErrorIs(t, (&MessageFilter{StartDate: "01/01/2024"}).Validate(), ErrInvalidFilterDate)
	assert.ErrorIs(t, (&MessageFilter{EndDate: "yesterday"}).Validate(), ErrInvalidFilterDate)
	assert.ErrorIs(t, (&MessageFilter{StartDate: "2024-02-01", EndDate: "2024-01-01"}).Validate(), ErrFilterDateOrder)
}

func TestMessageFilter_Query(t *testing.T) {
	t.Run("zero filter produces no params", func(t *testing.T) {
		var f MessageFilter
		assert.True(t, f.IsZero())
		assert.Empty(t, f.Query())
	})

	t.Run("all fields serialized", func(t *testing.T) {
		f := MessageFilter{
			Search:         "invoice",
			SenderUsername: "alice",
			MediaType:      MediaTypePhoto,
			HasMedia:       boolPtr(true),
			IsForwarded:    boolPtr(false),
			IsPinned:       boolPtr(true),
			StartDate:      "2024-01-01",
			EndDate:        "2024-01-31",
		}
		q := f.Query()
		assert.Equal(t, "invoice", q.Get("search"))
		assert.Equal(t, "alice", q.Get("sender_username"))
		assert.Equal(t, "photo", q.Get("media_type"))
		assert.Equal(t, "true", q.Get("has_media"))
		assert.Equal(t, "false", q.Get("is_forwarded"))
		assert.Equal(t, "true", q.Get("is_pinned"))
		assert.Equal(t, "2024-01-01", q.Get("start_date"))
		assert.Equal(t, "2024-01-31", q.Get("end_date"))
	})
}

func TestMessageFilter_Matches(t *testing.T) {
	date := time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)
	photoMsg := &Message{
		ID: 1, GroupID: 1, Date: date,
		SenderUsername: "alice",
		Text:           "team photo from the offsite",
		Media:          &MediaInfo{Type: MediaTypePhoto},
	}
	videoMsg := &Message{
		ID: 2, GroupID: 1, Date: date,
		SenderUsername: "bob",
		Text:           "screen recording",
		Media:          &MediaInfo{Type: MediaTypeVideo},
	}
	textMsg := &Message{
		ID: 3, GroupID: 1, Date: date,
		SenderUsername: "alice",
		Text:           "no attachments here",
	}

	t.Run("media type filter with has_media only admits that type", func(t *testing.T) {
		f := MessageFilter{HasMedia: boolPtr(true), MediaType: MediaTypePhoto}
		assert.True(t, f.Matches(photoMsg))
		assert.False(t, f.Matches(videoMsg))
		assert.False(t, f.Matches(textMsg))
	})

	t.Run("has_media false keeps only text messages", func(t *testing.T) {
		f := MessageFilter{HasMedia: boolPtr(false)}
		assert.False(t, f.Matches(photoMsg))
		assert.True(t, f.Matches(textMsg))
	})

	t.Run("search is case-insensitive substring", func(t *testing.T) {
		f := MessageFilter{Search: "OFFSITE"}
		assert.True(t, f.Matches(photoMsg))
		assert.False(t, f.Matches(videoMsg))
	})

	t.Run("sender filter", func(t *testing.T) {
		f := MessageFilter{SenderUsername: "@ALICE"}
		assert.True(t, f.Matches(photoMsg))
		assert.False(t, f.Matches(videoMsg))
	})

	t.Run("end date is inclusive for the whole day", func(t *testing.T) {
		f := MessageFilter{EndDate: "2024-01-15"}
		assert.True(t, f.Matches(photoMsg), "message at 14:30 on the end date must pass")

		nextDay := *photoMsg
		nextDay.Date = date.AddDate(0, 0, 1)
		assert.False(t, f.Matches(&nextDay))
	})

	t.Run("start date boundary", func(t *testing.T) {
		f := MessageFilter{StartDate: "2024-01-15"}
		assert.True(t, f.Matches(photoMsg))

		dayBefore := *photoMsg
		dayBefore.Date = date.AddDate(0, 0, -1)
		assert.False(t, f.Matches(&dayBefore))
	})
}
