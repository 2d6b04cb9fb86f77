package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/telearc/archive-console/internal/models"
)

func sampleMessages() []models.Message {
	return []models.Message{
		{
			ID: 1, MessageID: 11, GroupID: 5,
			SenderUsername: "alice",
			Date:           time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			Text:           "photo day",
			Media:          &models.MediaInfo{Type: models.MediaTypePhoto, Filename: "day.jpg", Size: 2048},
		},
		{
			ID: 2, MessageID: 12, GroupID: 5,
			SenderUsername: "bob",
			Date:           time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC),
			Text:           "plain, with comma",
			IsForwarded:    true,
		},
	}
}

func TestMessagesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, MessagesCSV(&buf, sampleMessages()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header plus two rows")

	assert.Equal(t, headers, records[0])
	assert.Equal(t, "1", records[1][0])
	assert.Equal(t, "alice", records[1][4])
	assert.Equal(t, "photo", records[1][6])
	assert.Equal(t, "2048", records[1][8])
	assert.Equal(t, "plain, with comma", records[2][5], "csv quoting preserved the comma")
	assert.Equal(t, "true", records[2][9])
}

func TestMessagesXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, MessagesXLSX(&buf, sampleMessages()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("Messages", "A1")
	require.NoError(t, err)
	assert.Equal(t, "id", header)

	sender, err := f.GetCellValue("Messages", "E2")
	require.NoError(t, err)
	assert.Equal(t, "alice", sender)

	text, err := f.GetCellValue("Messages", "F3")
	require.NoError(t, err)
	assert.Equal(t, "plain, with comma", text)
}

func TestMessages_FormatDispatch(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, Messages(&buf, FormatCSV, nil))
	assert.ErrorIs(t, Messages(&buf, Format("pdf"), nil), ErrUnknownFormat)
}
