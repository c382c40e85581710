package ingest

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ytFormat caps resolution at 1080p; higher resolutions only slow down the
// detector without improving face crops.
const ytFormat = "best[height<=1080]"

// ResolveYouTubeURL shells out to yt-dlp and returns a direct media URL for a
// YouTube page or live stream, suitable for handing straight to ffmpeg.
func ResolveYouTubeURL(ctx context.Context, pageURL string) (string, error) {
	out, err := exec.CommandContext(ctx, "yt-dlp",
		"--get-url",
		"--format", ytFormat,
		"--no-playlist",
		pageURL,
	).Output()
	if err != nil {
		return "", fmt.Errorf("yt-dlp %s: %w", pageURL, err)
	}

	url := firstLine(string(out))
	if url == "" {
		return "", fmt.Errorf("yt-dlp produced no URL for %s", pageURL)
	}
	return url, nil
}

// firstLine returns the first non-empty trimmed line. For split formats
// yt-dlp prints the video URL first and the audio URL after it; only the
// video matters here.
func firstLine(out string) string {
	for _, line := range strings.Split(out, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
