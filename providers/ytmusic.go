package providers

import (
	"context"

	"github.com/raitonoberu/ytmusic"
	"golang.org/x/time/rate"

	dmp "github.com/ArthesTN/discord-music-player"
)

// YTMusicSearch answers free-text queries against youtube music, which
// returns richer track metadata (artist, duration, cover art) than the
// plain youtube search. It does not support refinements; refined
// queries keep their previous handle.
type YTMusicSearch struct {
	limiter *rate.Limiter
}

// NewYTMusicSearch builds the youtube music search provider.
func NewYTMusicSearch() *YTMusicSearch {
	return &YTMusicSearch{
		limiter: rate.NewLimiter(rate.Limit(10), 10),
	}
}

// Open implements dmp.SearchProvider.
func (y *YTMusicSearch) Open(ctx context.Context, query string) (dmp.SearchHandle, error) {
	return &ytmusicHandle{provider: y, query: query}, nil
}

type ytmusicHandle struct {
	provider *YTMusicSearch
	query    string
}

func (h *ytmusicHandle) Refine(ctx context.Context, knob dmp.RefineKnob, value string) (dmp.SearchHandle, error) {
	return nil, dmp.ErrSearchNull
}

func (h *ytmusicHandle) Results(ctx context.Context, limit int) ([]*dmp.RawSong, error) {
	if err := h.provider.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	s := ytmusic.TrackSearch(h.query)
	r, err := s.Next()
	if err != nil {
		return nil, err
	}

	out := make([]*dmp.RawSong, 0, limit)
	for _, v := range r.Tracks {
		if len(out) >= limit {
			break
		}
		if v.VideoID == "" {
			out = append(out, nil)
			continue
		}
		raw := &dmp.RawSong{
			Name:     v.Title,
			URL:      "https://music.youtube.com/watch?v=" + v.VideoID,
			Duration: dmp.MsToTime(int64(v.Duration) * 1000),
		}
		if len(v.Artists) > 0 {
			raw.Author = v.Artists[0].Name
		}
		if len(v.Thumbnails) > 0 {
			raw.Thumbnail = v.Thumbnails[len(v.Thumbnails)-1].URL
		}
		out = append(out, raw)
	}
	return out, nil
}
