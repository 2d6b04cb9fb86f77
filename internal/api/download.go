package api

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cavaliergopher/grab/v3"
)

// progressInterval is how often the progress callback fires during a download.
const progressInterval = 200 * time.Millisecond

// DownloadProgress is a point-in-time snapshot of a media transfer.
type DownloadProgress struct {
	BytesComplete int64
	TotalBytes    int64 // -1 when the server did not send a length
	Fraction      float64
}

// ProgressFunc receives download progress snapshots. It is called from the
// downloading goroutine at a fixed interval and once on completion.
type ProgressFunc func(DownloadProgress)

// DownloadMedia fetches the media file attached to a message into destDir and
// returns the path of the downloaded file. onProgress may be nil.
func (c *Client) DownloadMedia(ctx context.Context, messageID int64, destDir string, onProgress ProgressFunc) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	mediaURL := fmt.Sprintf("%s/api/media/%d/file", c.baseURL, messageID)
	req, err := grab.NewRequest(destDir, mediaURL)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	req = req.WithContext(ctx)
	if c.token != "" {
		req.HTTPRequest.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.log.Debug().Int64("message_id", messageID).Str("dir", destDir).Msg("starting media download")

	resp := grab.NewClient().Do(req)

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if onProgress != nil {
				onProgress(snapshot(resp))
			}
		case <-resp.Done:
			if err := resp.Err(); err != nil {
				c.log.Warn().Err(err).Int64("message_id", messageID).Msg("media download failed")
				return "", transportError(err, "")
			}
			if onProgress != nil {
				onProgress(snapshot(resp))
			}
			c.log.Info().
				Int64("message_id", messageID).
				Str("file", resp.Filename).
				Int64("bytes", resp.BytesComplete()).
				Msg("media download complete")
			return resp.Filename, nil
		}
	}
}

func snapshot(resp *grab.Response) DownloadProgress {
	return DownloadProgress{
		BytesComplete: resp.BytesComplete(),
		TotalBytes:    resp.Size(),
		Fraction:      resp.Progress(),
	}
}
