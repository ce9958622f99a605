// Package providers implements the track, playlist, search, and stream
// providers the player dispatches to: youtube and youtube music search,
// spotify and apple music metadata resolution, local files, and a
// yt-dlp backed stream source.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	dmp "github.com/ArthesTN/discord-music-player"
)

type ytdlpMetadata struct {
	Title    string
	Uploader string
	ID       string
	Duration time.Duration
}

func ytdlpResolveMetadata(ctx context.Context, u string) (*ytdlpMetadata, error) {
	res, err := ytdlp.New().
		Print("%(title)s\t%(uploader)s\t%(duration)s\t%(id)s").
		NoSimulate().
		IgnoreConfig().
		NoWarnings().
		Run(ctx, "--skip-download", u)
	if err != nil {
		return nil, err
	}
	for _, l := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		ps := strings.Split(l, "\t")
		if len(ps) < 4 {
			continue
		}
		d, _ := time.ParseDuration(ps[2] + "s")
		return &ytdlpMetadata{Title: ps[0], Uploader: ps[1], Duration: d, ID: ps[3]}, nil
	}
	return nil, errors.New("failed to resolve metadata")
}

type ytdlpPlaylistEntry struct {
	URL      string
	Title    string
	Uploader string
	Duration time.Duration
}

func ytdlpExtractPlaylist(ctx context.Context, u string, limit int) (string, []ytdlpPlaylistEntry, error) {
	cmd := ytdlp.New().
		FlatPlaylist().
		Print("%(url)s\t%(title)s\t%(uploader)s\t%(duration)s\t%(playlist_title)s").
		NoWarnings().
		IgnoreConfig()
	if limit > 0 {
		cmd = cmd.PlaylistItems(fmt.Sprintf("1-%d", limit))
	}
	res, err := cmd.Run(ctx, u)
	if err != nil {
		return "", nil, err
	}

	var name string
	es := make([]ytdlpPlaylistEntry, 0)
	for _, l := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		ps := strings.Split(l, "\t")
		if len(ps) < 5 {
			continue
		}
		d, _ := time.ParseDuration(ps[3] + "s")
		if name == "" {
			name = ps[4]
		}
		es = append(es, ytdlpPlaylistEntry{URL: ps[0], Title: ps[1], Uploader: ps[2], Duration: d})
	}
	return name, es, nil
}

func ytdlpSearch(ctx context.Context, prefix, q string, limit int) ([]ytdlpPlaylistEntry, error) {
	res, err := ytdlp.New().
		FlatPlaylist().
		Print("%(url)s\t%(title)s\t%(uploader)s\t%(duration)s").
		NoWarnings().
		IgnoreConfig().
		Run(ctx, fmt.Sprintf("%s%d:%s", prefix, limit, q))
	if err != nil {
		return nil, err
	}
	rs := make([]ytdlpPlaylistEntry, 0, limit)
	for _, l := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		ps := strings.Split(l, "\t")
		if len(ps) < 4 {
			continue
		}
		d, _ := time.ParseDuration(ps[3] + "s")
		rs = append(rs, ytdlpPlaylistEntry{URL: ps[0], Title: ps[1], Uploader: ps[2], Duration: d})
	}
	return rs, nil
}

// ytdlpDirectURL resolves the best audio-only media URL for a page.
func ytdlpDirectURL(ctx context.Context, u string) (string, error) {
	res, err := ytdlp.New().
		Print("urls").
		Format("bestaudio[ext=webm]/bestaudio").
		NoCheckFormats().
		NoWarnings().
		IgnoreConfig().
		Run(ctx, "--skip-download", u)
	if err != nil {
		return "", err
	}
	for _, l := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		if strings.HasPrefix(l, "http") {
			return l, nil
		}
	}
	return "", errors.New("no playable format")
}

// Source streams songs through yt-dlp and ffmpeg. Local paths skip
// yt-dlp and feed ffmpeg directly. Output is always ogg/opus so the
// voice layer can play it without further transcoding.
type Source struct{}

// NewSource returns the default stream source.
func NewSource() *Source {
	return &Source{}
}

// OpenStream implements dmp.StreamSource.
func (s *Source) OpenStream(ctx context.Context, song *dmp.Song) (io.ReadCloser, error) {
	input := song.URL
	if isLocalPath(input) {
		if _, err := os.Stat(strings.TrimPrefix(input, "file://")); err != nil {
			return nil, err
		}
		return dmp.OpenFFmpegInput(strings.TrimPrefix(input, "file://"), nil)
	}

	direct, err := ytdlpDirectURL(ctx, input)
	if err != nil {
		return nil, err
	}
	return dmp.OpenFFmpegInput(direct, nil)
}

func isLocalPath(u string) bool {
	return strings.HasPrefix(u, "file://") || strings.HasPrefix(u, "/") || strings.HasPrefix(u, "./")
}
