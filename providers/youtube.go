package providers

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppalone/ytsearch"
	"golang.org/x/time/rate"

	dmp "github.com/ArthesTN/discord-music-player"
)

var (
	youtubeVideoRe    = regexp.MustCompile(`^https?://(www\.|m\.|music\.)?(youtube\.com/watch\?|youtu\.be/)`)
	youtubePlaylistRe = regexp.MustCompile(`^https?://(www\.|m\.|music\.)?youtube\.com/(playlist\?|watch\?.*list=)`)
)

// YouTubeSearch answers free-text queries. Plain searches go through the
// youtube search API; refined searches (sort, duration, upload date)
// fall back to yt-dlp, which supports filtered search.
type YouTubeSearch struct {
	client  *ytsearch.Client
	limiter *rate.Limiter
}

// NewYouTubeSearch builds the search provider with a request limiter so
// bursts of playlist re-searches do not hammer the endpoint.
func NewYouTubeSearch() *YouTubeSearch {
	return &YouTubeSearch{
		client:  ytsearch.NewClient(nil),
		limiter: rate.NewLimiter(rate.Limit(10), 10),
	}
}

// Open implements dmp.SearchProvider.
func (y *YouTubeSearch) Open(ctx context.Context, query string) (dmp.SearchHandle, error) {
	return &youtubeHandle{provider: y, query: query}, nil
}

type youtubeHandle struct {
	provider   *YouTubeSearch
	query      string
	sortBy     string
	duration   string
	uploadDate string
}

func (h *youtubeHandle) Refine(ctx context.Context, knob dmp.RefineKnob, value string) (dmp.SearchHandle, error) {
	next := *h
	switch knob {
	case dmp.RefineSortBy:
		switch value {
		case "relevance", "date", "view count", "rating":
			next.sortBy = value
		default:
			return nil, dmp.ErrSearchNull
		}
	case dmp.RefineDuration:
		switch value {
		case "all", "short", "long":
			next.duration = value
		default:
			return nil, dmp.ErrSearchNull
		}
	case dmp.RefineUploadDate:
		switch value {
		case "all", "hour", "today", "week", "month", "year":
			next.uploadDate = value
		default:
			return nil, dmp.ErrSearchNull
		}
	default:
		return nil, dmp.ErrSearchNull
	}
	return &next, nil
}

func (h *youtubeHandle) refined() bool {
	return h.sortBy != "" || h.duration != "" || h.uploadDate != ""
}

func (h *youtubeHandle) Results(ctx context.Context, limit int) ([]*dmp.RawSong, error) {
	if err := h.provider.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if h.refined() {
		return h.resultsFiltered(ctx, limit)
	}

	res, err := h.provider.client.Search(ctx, h.query)
	if err != nil {
		return nil, err
	}
	out := make([]*dmp.RawSong, 0, limit)
	for _, v := range res.Results {
		if len(out) >= limit {
			break
		}
		if v.VideoID == "" {
			// Channels and mixes surface as nil so the resolver can
			// skip them without losing the index.
			out = append(out, nil)
			continue
		}
		out = append(out, &dmp.RawSong{
			Name: v.Title,
			URL:  "https://www.youtube.com/watch?v=" + v.VideoID,
		})
	}
	return out, nil
}

// resultsFiltered searches through yt-dlp, translating the refinements
// into a sorted search prefix and duration match filters.
func (h *youtubeHandle) resultsFiltered(ctx context.Context, limit int) ([]*dmp.RawSong, error) {
	prefix := "ytsearch"
	if h.sortBy == "date" || h.uploadDate != "" && h.uploadDate != "all" {
		prefix = "ytsearchdate"
	}
	entries, err := ytdlpSearch(ctx, prefix, h.query, limit)
	if err != nil {
		return nil, err
	}

	out := make([]*dmp.RawSong, 0, len(entries))
	for _, e := range entries {
		switch h.duration {
		case "short":
			if e.Duration.Minutes() > 4 {
				out = append(out, nil)
				continue
			}
		case "long":
			if e.Duration.Minutes() < 20 {
				out = append(out, nil)
				continue
			}
		}
		out = append(out, &dmp.RawSong{
			Name:     e.Title,
			Author:   e.Uploader,
			URL:      e.URL,
			Duration: dmp.MsToTime(e.Duration.Milliseconds()),
		})
	}
	return out, nil
}

// YouTube resolves watch and playlist URLs.
type YouTube struct{}

// NewYouTube returns the youtube track and playlist provider.
func NewYouTube() *YouTube {
	return &YouTube{}
}

// MatchTrack implements dmp.TrackProvider.
func (y *YouTube) MatchTrack(u string) bool {
	return youtubeVideoRe.MatchString(u) && !youtubePlaylistRe.MatchString(u)
}

// Track implements dmp.TrackProvider.
func (y *YouTube) Track(ctx context.Context, u string, timecode bool) (*dmp.RawSong, *dmp.TrackMatch, error) {
	meta, err := ytdlpResolveMetadata(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	raw := &dmp.RawSong{
		Name:     meta.Title,
		Author:   meta.Uploader,
		URL:      "https://www.youtube.com/watch?v=" + meta.ID,
		Duration: dmp.MsToTime(meta.Duration.Milliseconds()),
		IsLive:   meta.Duration == 0,
	}
	if meta.ID != "" {
		raw.Thumbnail = "https://i.ytimg.com/vi/" + meta.ID + "/hqdefault.jpg"
	}
	if timecode {
		raw.SeekTime = parseTimecode(u)
	}
	return raw, nil, nil
}

// MatchPlaylist implements dmp.PlaylistProvider.
func (y *YouTube) MatchPlaylist(u string) bool {
	return youtubePlaylistRe.MatchString(u)
}

// Playlist implements dmp.PlaylistProvider.
func (y *YouTube) Playlist(ctx context.Context, u string, limit int) (*dmp.RawPlaylist, error) {
	name, entries, err := ytdlpExtractPlaylist(ctx, u, limit)
	if err != nil {
		return nil, err
	}
	pl := &dmp.RawPlaylist{
		Name: name,
		URL:  u,
		Kind: "playlist",
	}
	for _, e := range entries {
		if e.URL == "" {
			continue
		}
		pl.Songs = append(pl.Songs, &dmp.RawSong{
			Name:     e.Title,
			Author:   e.Uploader,
			URL:      e.URL,
			Duration: dmp.MsToTime(e.Duration.Milliseconds()),
		})
	}
	return pl, nil
}

// parseTimecode extracts a t= query parameter in seconds and returns it
// in milliseconds. Malformed values count as zero.
func parseTimecode(u string) int64 {
	parsed, err := url.Parse(u)
	if err != nil {
		return 0
	}
	t := parsed.Query().Get("t")
	if t == "" {
		return 0
	}
	t = strings.TrimSuffix(t, "s")
	secs, err := strconv.ParseInt(t, 10, 64)
	if err != nil || secs < 0 {
		return 0
	}
	return secs * 1000
}
