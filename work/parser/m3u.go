// Package parser imports camera catalogs from M3U playlists. NVR tooling
// commonly exports one stream entry per camera channel; we lift the display
// name from the EXTINF title and the channel number from the URI query.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"

	"nvr-kiosk/work/logger"
	"nvr-kiosk/work/utils"
)

// CameraEntry is one camera lifted from a playlist.
type CameraEntry struct {
	Name    string
	Channel int
	URI     string
}

// ParseM3U decodes a playlist into camera entries. The strict decoder is
// tried first; playlists that it rejects (hand-edited exports are common)
// fall back to a line scanner. Entries without a recognizable channel
// number are skipped with a log line.
func ParseM3U(r io.Reader) ([]CameraEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist: %w", err)
	}

	playlist, listType, err := m3u8.DecodeFrom(bufio.NewReader(strings.NewReader(string(data))), false)
	if err == nil && listType == m3u8.MEDIA {
		if media, ok := playlist.(*m3u8.MediaPlaylist); ok {
			if entries := fromMediaPlaylist(media); len(entries) > 0 {
				return entries, nil
			}
		}
	}

	// Fall back to scanning EXTINF/URI pairs directly.
	entries := scanPlaylist(string(data))
	if len(entries) == 0 {
		return nil, fmt.Errorf("no camera entries found in playlist")
	}
	return entries, nil
}

func fromMediaPlaylist(media *m3u8.MediaPlaylist) []CameraEntry {
	entries := make([]CameraEntry, 0, len(media.Segments))
	for _, seg := range media.Segments {
		if seg == nil || seg.URI == "" {
			continue
		}
		entries = appendEntry(entries, seg.Title, seg.URI)
	}
	return entries
}

func scanPlaylist(data string) []CameraEntry {
	var entries []CameraEntry
	var pendingName string

	scanner := bufio.NewScanner(strings.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "#EXTINF:"):
			if idx := strings.Index(line, ","); idx >= 0 {
				pendingName = strings.TrimSpace(line[idx+1:])
			}
		case line == "" || strings.HasPrefix(line, "#"):
			// Directive or blank, not a URI.
		default:
			entries = appendEntry(entries, pendingName, line)
			pendingName = ""
		}
	}
	return entries
}

func appendEntry(entries []CameraEntry, name, uri string) []CameraEntry {
	channel, ok := channelFromURI(uri)
	if !ok {
		logger.Warn("Skipping playlist entry without channel: %s", utils.ObfuscateURL(uri))
		return entries
	}
	return append(entries, CameraEntry{
		Name:    utils.SanitizeCameraName(name),
		Channel: channel,
		URI:     uri,
	})
}

// channelFromURI extracts the channel query parameter from a stream URI.
func channelFromURI(uri string) (int, bool) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return 0, false
	}
	raw := parsed.Query().Get("channel")
	if raw == "" {
		return 0, false
	}
	channel, err := strconv.Atoi(raw)
	if err != nil || channel < 0 {
		return 0, false
	}
	return channel, true
}
