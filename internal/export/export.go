// Package export renders message lists to CSV and XLSX files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"

	"github.com/telearc/archive-console/internal/models"
)

// Format selects the export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnknownFormat is returned for formats this package cannot produce.
var ErrUnknownFormat = fmt.Errorf("unknown export format")

var headers = []string{
	"id", "message_id", "group_id", "date", "sender", "text",
	"media_type", "media_filename", "media_size", "forwarded", "pinned",
}

// Messages writes msgs to w in the requested format.
func Messages(w io.Writer, format Format, msgs []models.Message) error {
	switch format {
	case FormatCSV:
		return MessagesCSV(w, msgs)
	case FormatXLSX:
		return MessagesXLSX(w, msgs)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// MessagesCSV writes msgs as CSV with a header row.
func MessagesCSV(w io.Writer, msgs []models.Message) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows(msgs) {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MessagesXLSX writes msgs as a single-sheet workbook.
func MessagesXLSX(w io.Writer, msgs []models.Message) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Messages"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("write header cell: %w", err)
		}
	}

	for rowIdx, row := range rows(msgs) {
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("write cell %s: %w", cell, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// rows flattens messages into string records shared by both encoders.
func rows(msgs []models.Message) [][]string {
	return lo.Map(msgs, func(m models.Message, _ int) []string {
		var mediaType, mediaFile, mediaSize string
		if m.Media != nil {
			mediaType = string(m.Media.Type)
			mediaFile = m.Media.Filename
			mediaSize = strconv.FormatInt(m.Media.Size, 10)
		}
		return []string{
			strconv.FormatInt(m.ID, 10),
			strconv.FormatInt(m.MessageID, 10),
			strconv.FormatInt(m.GroupID, 10),
			m.Date.UTC().Format(time.RFC3339),
			m.SenderUsername,
			m.Text,
			mediaType,
			mediaFile,
			mediaSize,
			strconv.FormatBool(m.IsForwarded),
			strconv.FormatBool(m.IsPinned),
		}
	})
}
