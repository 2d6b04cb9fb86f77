package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telearc/archive-console/internal/models"
)

func msg(id int64, ts int64) models.Message {
	return models.Message{
		ID:        id,
		MessageID: id,
		GroupID:   1,
		Date:      time.Unix(ts, 0).UTC(),
	}
}

func msgText(id int64, ts int64, text string) models.Message {
	m := msg(id, ts)
	m.Text = text
	return m
}

func ids(msgs []models.Message) []int64 {
	out := make([]int64, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestMergeMessages_Union(t *testing.T) {
	current := []models.Message{msg(1, 10), msg(2, 20)}
	batch := []models.Message{msg(2, 20), msg(3, 30), msg(4, 5)}

	merged, stats := mergeMessages(current, batch)

	assert.Equal(t, []int64{4, 1, 2, 3}, ids(merged), "union sorted by timestamp")
	assert.Equal(t, 2, stats.Added)
	assert.Equal(t, 0, stats.Updated, "identical record is not an update")
	assert.True(t, stats.PrependedOlder)
	assert.True(t, stats.AppendedNewer)

	seen := map[int64]bool{}
	for _, m := range merged {
		assert.False(t, seen[m.ID], "no duplicate ids")
		seen[m.ID] = true
	}
}

func TestMergeMessages_SortTiesById(t *testing.T) {
	merged, _ := mergeMessages(nil, []models.Message{msg(9, 50), msg(3, 50), msg(7, 50)})
	assert.Equal(t, []int64{3, 7, 9}, ids(merged))
}

func TestMergeMessages_EmptyBatchIsNoOp(t *testing.T) {
	current := []models.Message{msg(1, 10), msg(2, 20)}

	merged, stats := mergeMessages(current, nil)
	assert.Equal(t, MergeStats{}, stats)
	assert.Same(t, &current[0], &merged[0], "empty batch returns the same backing array")

	merged, stats = mergeMessages(current, []models.Message{})
	assert.Equal(t, MergeStats{}, stats)
	assert.Same(t, &current[0], &merged[0])
}

func TestMergeMessages_Idempotent(t *testing.T) {
	current := []models.Message{msg(1, 10)}
	batch := []models.Message{msgText(2, 20, "hi"), msg(3, 15)}

	once, statsOnce := mergeMessages(current, batch)
	twice, statsTwice := mergeMessages(once, batch)

	assert.Equal(t, once, twice)
	assert.Equal(t, 2, statsOnce.Added)
	assert.Equal(t, 0, statsTwice.Added)
	assert.Equal(t, 0, statsTwice.Updated)
	assert.Same(t, &once[0], &twice[0], "unchanged merge returns the same backing array")
}

func TestMergeMessages_IncomingWins(t *testing.T) {
	current := []models.Message{msg(5, 10), msgText(6, 20, "original")}
	batch := []models.Message{msgText(6, 20, "edited"), msg(7, 30)}

	merged, stats := mergeMessages(current, batch)

	require.Equal(t, []int64{5, 6, 7}, ids(merged))
	assert.Equal(t, "edited", merged[1].Text, "incoming value replaces the stored one")
	assert.Equal(t, 1, stats.Added)
	assert.Equal(t, 1, stats.Updated)
	assert.True(t, stats.AppendedNewer)
	assert.False(t, stats.PrependedOlder)
}

func TestMergeMessages_GapFillTouchesNeitherEnd(t *testing.T) {
	current := []models.Message{msg(1, 10), msg(9, 90)}
	batch := []models.Message{msg(5, 50)}

	merged, stats := mergeMessages(current, batch)

	assert.Equal(t, []int64{1, 5, 9}, ids(merged))
	assert.False(t, stats.PrependedOlder)
	assert.False(t, stats.AppendedNewer)
}

func TestMessageStore_ReplaceAndMerge(t *testing.T) {
	s := NewMessageStore()

	s.Replace(42, []models.Message{msg(2, 20), msg(1, 10)})
	assert.Equal(t, int64(42), s.GroupID())
	assert.Equal(t, []int64{1, 2}, ids(s.Messages()), "replace sorts the page")

	stats, ok := s.Merge(42, []models.Message{msg(3, 30)})
	require.True(t, ok)
	assert.Equal(t, 1, stats.Added)
	assert.Equal(t, 3, s.Len())
}

func TestMessageStore_DiscardsStaleGroupBatch(t *testing.T) {
	s := NewMessageStore()
	s.Replace(42, []models.Message{msg(1, 10)})

	// user switched groups while a fetch for 42 was in flight
	s.Replace(77, nil)

	stats, ok := s.Merge(42, []models.Message{msg(2, 20)})
	assert.False(t, ok, "batch for a no-longer-selected group is discarded")
	assert.Equal(t, MergeStats{}, stats)
	assert.Equal(t, 0, s.Len())
}

func TestMessageStore_Version(t *testing.T) {
	s := NewMessageStore()
	v0 := s.Version()

	s.Replace(1, []models.Message{msg(1, 10)})
	v1 := s.Version()
	assert.Greater(t, v1, v0)

	// merging an identical batch must not bump the version
	_, ok := s.Merge(1, []models.Message{msg(1, 10)})
	require.True(t, ok)
	assert.Equal(t, v1, s.Version())

	_, ok = s.Merge(1, []models.Message{msg(2, 20)})
	require.True(t, ok)
	assert.Greater(t, s.Version(), v1)
}

func TestMessageStore_Remove(t *testing.T) {
	s := NewMessageStore()
	s.Replace(1, []models.Message{msg(1, 10), msg(2, 20), msg(3, 30)})

	assert.True(t, s.Remove(2))
	assert.Equal(t, []int64{1, 3}, ids(s.Messages()))
	assert.False(t, s.Remove(2), "second remove finds nothing")
}

func TestMessageStore_Bounds(t *testing.T) {
	s := NewMessageStore()

	_, ok := s.Oldest()
	assert.False(t, ok)

	s.Replace(1, []models.Message{msg(3, 30), msg(1, 10), msg(2, 20)})

	oldest, ok := s.Oldest()
	require.True(t, ok)
	assert.Equal(t, int64(1), oldest.ID)

	newest, ok := s.Newest()
	require.True(t, ok)
	assert.Equal(t, int64(3), newest.ID)
}
