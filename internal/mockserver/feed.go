package mockserver

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/telearc/archive-console/internal/bridge"
	"github.com/telearc/archive-console/internal/models"
)

// feedTexts rotate through the synthetic live traffic.
var feedTexts = []string{
	"deploy finished, watching error rates",
	"anyone else seeing elevated latency on eu-west?",
	"new build is up: 2418",
	"rolled back the config change, looks stable now",
	"reminder: retro at 15:00",
	"uploading the incident timeline in a minute",
}

// Feed produces a trickle of synthetic push traffic so a connected console
// has something to show without manual prodding. Messages land in the
// dataset first, then go out over the hub, so catch-up fetches and live
// pushes always agree.
type Feed struct {
	server   *Server
	interval time.Duration
	ticks    int
}

// NewFeed builds a feed against a server. Interval is the gap between
// synthetic messages.
func NewFeed(server *Server, interval time.Duration) *Feed {
	return &Feed{server: server, interval: interval}
}

// Run emits traffic until the context is cancelled.
func (f *Feed) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.server.log.Info().Dur("interval", f.interval).Msg("feed started")
	for {
		select {
		case <-ctx.Done():
			f.server.log.Info().Msg("feed stopped")
			return
		case <-ticker.C:
			f.tick()
		}
	}
}

// tick emits one round of traffic: a message into the next active group,
// plus the occasional edit and log line.
func (f *Feed) tick() {
	data := f.server.data

	active := lo.Filter(data.Groups(), func(g models.Group, _ int) bool {
		return g.IsActive
	})
	if len(active) == 0 {
		return
	}

	f.ticks++
	group := active[f.ticks%len(active)]
	sender := seedSenders[f.ticks%len(seedSenders)]
	text := feedTexts[f.ticks%len(feedTexts)]

	msg, err := data.AppendMessage(group.ID, text, sender)
	if err != nil {
		return
	}
	f.server.broadcast(bridge.EventMessageNew, msg)

	if f.ticks%7 == 0 {
		if edited, ok := data.EditLatestMessage(group.ID, " (edited)"); ok {
			f.server.broadcast(bridge.EventMessageUpdated, edited)
		}
	}
	if f.ticks%5 == 0 {
		entry := data.AppendLog("info", "feed", fmt.Sprintf("synthetic message %d delivered to %s", f.ticks, group.Title))
		f.server.broadcast(bridge.EventLogNew, entry)
	}
}
