package mockserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_EmitsIntoActiveGroups(t *testing.T) {
	srv, _ := newTestServer(t)

	before := srv.data.Overview().TotalMessages

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := NewFeed(srv, 5*time.Millisecond)
	go feed.Run(ctx)

	require.Eventually(t, func() bool {
		return srv.data.Overview().TotalMessages >= before+5
	}, 2*time.Second, 10*time.Millisecond)

	// the inactive group stays quiet
	_, total, _ := srv.data.MessagesPage(1003, 0, 1, nil)
	assert.Equal(t, 25, total)
}
