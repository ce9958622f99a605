package providers

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/tcolgate/mp3"

	dmp "github.com/ArthesTN/discord-music-player"
)

// Local resolves filesystem paths and file:// URLs into songs, reading
// embedded tags for title and artist. Duration is decoded frame by
// frame for mp3 files; other formats report it unknown.
type Local struct{}

// NewLocal returns the local file provider.
func NewLocal() *Local {
	return &Local{}
}

// MatchTrack implements dmp.TrackProvider.
func (l *Local) MatchTrack(u string) bool {
	return isLocalPath(u)
}

// Track implements dmp.TrackProvider.
func (l *Local) Track(ctx context.Context, u string, _ bool) (*dmp.RawSong, *dmp.TrackMatch, error) {
	path := strings.TrimPrefix(u, "file://")
	if _, err := os.Stat(path); err != nil {
		return nil, nil, err
	}

	raw := &dmp.RawSong{
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		URL:  path,
	}
	if title, artist := readTags(path); title != "" {
		raw.Name = title
		raw.Author = artist
	}
	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		if ms, err := mp3DurationMillis(path); err == nil && ms > 0 {
			raw.Duration = dmp.MsToTime(ms)
		}
	}
	return raw, nil, nil
}

func readTags(path string) (title, artist string) {
	f, err := os.Open(path)
	if err != nil {
		return "", ""
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return "", ""
	}
	return strings.TrimSpace(meta.Title()), strings.TrimSpace(meta.Artist())
}

func mp3DurationMillis(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	decoder := mp3.NewDecoder(f)
	var frame mp3.Frame
	var skipped int
	var total float64
	for {
		if err := decoder.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		total += frame.Duration().Seconds()
	}
	return int64(total * 1000), nil
}
