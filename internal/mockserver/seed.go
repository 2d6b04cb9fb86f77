package mockserver

import (
	"fmt"
	"time"

	"github.com/telearc/archive-console/internal/models"
)

// seedSender is one of the fabricated chat participants.
type seedSender struct {
	id       int64
	username string
	name     string
}

var seedSenders = []seedSender{
	{id: 201, username: "marta_dev", name: "Marta K."},
	{id: 202, username: "ossi", name: "Ossi Lehtonen"},
	{id: 203, username: "pavel_ops", name: "Pavel R."},
	{id: 204, username: "ines", name: "Inés Duarte"},
}

// consoleSender is used for messages sent through the console itself.
var consoleSender = seedSender{id: 100, username: "archive_console", name: "Archive Console"}

var seedTexts = []string{
	"morning sync notes are up",
	"release 2.14 changelog attached, please review",
	"anyone seen the flaky pipeline on staging?",
	"photo dump from the meetup",
	"reminder: backlog grooming at 15:00",
	"new invoice template, check the totals",
	"weekly metrics digest",
	"patched the importer, memory use is back to normal",
}

var seedMediaCycle = []models.MediaType{
	models.MediaTypePhoto,
	models.MediaTypeDocument,
	models.MediaTypeVideo,
	models.MediaTypePhoto,
	models.MediaTypeAudio,
}

// seed fills the dataset with a deterministic corpus: three groups, a few
// hundred messages with media, forwards and pins, plus rules, tasks, runs
// and logs. Dashboard aggregates are computed from this data, never seeded.
func (d *Dataset) seed() {
	base := time.Date(2025, 5, 12, 8, 0, 0, 0, time.UTC)

	groups := []struct {
		group models.Group
		count int
	}{
		{
			group: models.Group{
				ID: 1001, Title: "Release Watch", Username: "releasewatch",
				MemberCount: 412, IsActive: true, IsPinned: true, PinOrder: 1,
				Description:       "announcements and changelogs",
				CanSendMessages:   true,
				CanDeleteMessages: true,
				CreatedAt:         base.AddDate(0, -6, 0),
			},
			count: 140,
		},
		{
			group: models.Group{
				ID: 1002, Title: "Build Engineering", Username: "build_eng",
				MemberCount: 96, IsActive: true,
				Description:     "ci, tooling, infrastructure chatter",
				CanSendMessages: true,
				CreatedAt:       base.AddDate(0, -4, 0),
			},
			count: 90,
		},
		{
			group: models.Group{
				ID: 1003, Title: "Offtopic Attic", Username: "attic",
				MemberCount: 58, IsActive: false,
				Description: "archived, no longer tracked",
				CreatedAt:   base.AddDate(-1, 0, 0),
			},
			count: 25,
		},
	}

	for gi, entry := range groups {
		g := entry.group
		d.groupSeq = g.ID

		for i := 0; i < entry.count; i++ {
			d.seq++
			d.msgSeq[g.ID]++
			sender := seedSenders[(i+gi)%len(seedSenders)]
			date := base.Add(time.Duration(gi*17+i*9) * time.Minute)

			msg := models.Message{
				ID:             d.seq,
				MessageID:      d.msgSeq[g.ID],
				GroupID:        g.ID,
				SenderID:       sender.id,
				SenderUsername: sender.username,
				SenderName:     sender.name,
				Date:           date,
				Text:           fmt.Sprintf("%s (#%d)", seedTexts[i%len(seedTexts)], i+1),
				CreatedAt:      date,
				UpdatedAt:      date,
			}

			if i%3 == 0 {
				mediaType := seedMediaCycle[(i/3)%len(seedMediaCycle)]
				status := models.DownloadStatusCompleted
				switch {
				case i%30 == 21:
					status = models.DownloadStatusFailed
				case i%30 == 12:
					status = models.DownloadStatusPending
				}
				msg.Media = &models.MediaInfo{
					Type:     mediaType,
					Filename: fmt.Sprintf("%s_%d_%d.bin", mediaType, g.ID, msg.MessageID),
					Size:     int64(40_000 + i*1_500),
					Status:   status,
				}
				if status == models.DownloadStatusCompleted {
					msg.Media.Path = fmt.Sprintf("/archive/%d/%s", g.ID, msg.Media.Filename)
				}
			}

			if i%7 == 3 {
				msg.IsForwarded = true
				origin := date.Add(-48 * time.Hour)
				msg.Forward = &models.ForwardInfo{
					FromType: "channel",
					FromName: "upstream digest",
					FromID:   9000 + int64(gi),
					Date:     origin,
				}
			}

			if i%50 == 10 {
				msg.IsPinned = true
			}
			if i%5 == 0 {
				msg.Hashtags = []string{"release"}
			}
			if i%11 == 4 {
				msg.Mentions = []string{"@" + seedSenders[(i+1)%len(seedSenders)].username}
			}

			d.messages[g.ID] = append(d.messages[g.ID], msg)
			g.UpdatedAt = date
		}

		d.groups[g.ID] = g
	}

	d.seedRulesAndTasks(base)
	d.seedLogs(base)
	d.recordActivity("system", 0, "mock backend seeded")
}

func (d *Dataset) seedRulesAndTasks(base time.Time) {
	photo := models.Rule{
		Name:       "photo archive",
		MediaTypes: []models.MediaType{models.MediaTypePhoto},
		IsActive:   true,
	}
	releases := models.Rule{
		Name:     "release notes",
		Keywords: []string{"release", "changelog"},
		IsActive: true,
	}
	d.ruleSeq++
	photo.ID = d.ruleSeq
	photo.CreatedAt = base
	photo.UpdatedAt = base
	d.rules[photo.ID] = photo

	d.ruleSeq++
	releases.ID = d.ruleSeq
	releases.CreatedAt = base
	releases.UpdatedAt = base
	d.rules[releases.ID] = releases

	nightly := models.DownloadTask{
		Name:            "nightly photo pull",
		GroupID:         1001,
		RuleIDs:         []int64{photo.ID},
		DestinationPath: "/archive/photos",
		Schedule:        "0 3 * * *",
		Status:          models.TaskStatusPending,
	}
	d.taskSeq++
	nightly.ID = d.taskSeq
	nightly.CreatedAt = base
	nightly.UpdatedAt = base
	d.tasks[nightly.ID] = nightly

	backlog := models.DownloadTask{
		Name:            "release backlog sweep",
		GroupID:         1002,
		RuleIDs:         []int64{releases.ID},
		DestinationPath: "/archive/releases",
		Status:          models.TaskStatusCompleted,
		Progress: models.TaskProgress{
			TotalMessages:     90,
			ProcessedMessages: 90,
			DownloadedFiles:   31,
			FailedFiles:       2,
		},
	}
	d.taskSeq++
	backlog.ID = d.taskSeq
	finished := base.Add(26 * time.Hour)
	backlog.LastRunAt = &finished
	backlog.CreatedAt = base
	backlog.UpdatedAt = finished
	d.tasks[backlog.ID] = backlog

	d.runSeq++
	started := base.Add(25 * time.Hour)
	d.runs[backlog.ID] = []models.TaskRun{{
		ID:         d.runSeq,
		TaskID:     backlog.ID,
		StartedAt:  started,
		FinishedAt: &finished,
		Status:     models.TaskStatusCompleted,
		Downloaded: 31,
	}}
}

func (d *Dataset) seedLogs(base time.Time) {
	levels := []string{"info", "info", "info", "warn", "info", "error"}
	sources := []string{"sync", "tasks", "api", "storage"}
	details := []string{
		"group sync finished",
		"media fetch queued",
		"flood wait from upstream, backing off",
		"storage usage above 70%",
		"session refreshed",
		"download worker restarted",
	}

	for i := 0; i < 40; i++ {
		d.logSeq++
		d.logs = append(d.logs, models.LogEntry{
			ID:        d.logSeq,
			Level:     levels[i%len(levels)],
			Source:    sources[i%len(sources)],
			Message:   fmt.Sprintf("%s (op %d)", details[i%len(details)], i+1),
			CreatedAt: base.Add(time.Duration(i) * 21 * time.Minute),
		})
	}
}
