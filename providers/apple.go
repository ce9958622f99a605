package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	dmp "github.com/ArthesTN/discord-music-player"
)

var (
	appleSongRe  = regexp.MustCompile(`(?:https?://)?music\.apple\.com/[a-z]{2}/(?:song/[^/]+/|album/[^/]+/\d+\?i=)(\d+)`)
	appleAlbumRe = regexp.MustCompile(`(?:https?://)?music\.apple\.com/[a-z]{2}/album/[^/]+/(\d+)`)
)

// appleLookupURL is a var so tests can point it at a local server.
var appleLookupURL = "https://itunes.apple.com/lookup"

// AppleMusic resolves apple music song and album URLs through the
// public itunes lookup API. Like spotify, apple cannot be streamed, so
// results come back as re-search queries. User playlist URLs are not
// exposed by the lookup API and are rejected.
type AppleMusic struct {
	httpClient *http.Client
}

// NewAppleMusic returns the apple music provider.
func NewAppleMusic() *AppleMusic {
	return &AppleMusic{
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type itunesResult struct {
	WrapperType      string `json:"wrapperType"`
	TrackName        string `json:"trackName"`
	ArtistName       string `json:"artistName"`
	CollectionName   string `json:"collectionName"`
	TrackTimeMillis  int64  `json:"trackTimeMillis"`
	ArtworkURL       string `json:"artworkUrl100"`
	CollectionViewer string `json:"collectionViewUrl"`
}

type itunesResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []itunesResult `json:"results"`
}

func (a *AppleMusic) lookup(ctx context.Context, id, entity string) (*itunesResponse, error) {
	u := fmt.Sprintf("%s?id=%s", appleLookupURL, id)
	if entity != "" {
		u += "&entity=" + entity
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("itunes lookup: status %d", resp.StatusCode)
	}
	var out itunesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MatchTrack implements dmp.TrackProvider.
func (a *AppleMusic) MatchTrack(u string) bool {
	return appleSongRe.MatchString(u)
}

// Track implements dmp.TrackProvider.
func (a *AppleMusic) Track(ctx context.Context, u string, _ bool) (*dmp.RawSong, *dmp.TrackMatch, error) {
	m := appleSongRe.FindStringSubmatch(u)
	if m == nil {
		return nil, nil, dmp.ErrSearchNull
	}
	res, err := a.lookup(ctx, m[1], "")
	if err != nil {
		return nil, nil, err
	}
	for _, r := range res.Results {
		if r.WrapperType != "track" {
			continue
		}
		raw := &dmp.RawSong{
			Name:      r.TrackName,
			Author:    r.ArtistName,
			Thumbnail: r.ArtworkURL,
			Duration:  dmp.MsToTime(r.TrackTimeMillis),
		}
		return nil, &dmp.TrackMatch{
			Song:  raw,
			Query: r.ArtistName + " - " + r.TrackName,
		}, nil
	}
	return nil, nil, dmp.ErrSearchNull
}

// MatchPlaylist implements dmp.PlaylistProvider.
func (a *AppleMusic) MatchPlaylist(u string) bool {
	return appleAlbumRe.MatchString(u) && !appleSongRe.MatchString(u)
}

// Playlist implements dmp.PlaylistProvider.
func (a *AppleMusic) Playlist(ctx context.Context, u string, limit int) (*dmp.RawPlaylist, error) {
	m := appleAlbumRe.FindStringSubmatch(u)
	if m == nil {
		return nil, dmp.ErrInvalidPlaylist
	}
	res, err := a.lookup(ctx, m[1], "song")
	if err != nil {
		return nil, err
	}

	out := &dmp.RawPlaylist{URL: u, Kind: "album"}
	for _, r := range res.Results {
		switch r.WrapperType {
		case "collection":
			out.Name = r.CollectionName
			out.Author = r.ArtistName
		case "track":
			out.Items = append(out.Items, dmp.PlaylistItem{
				Title:  r.TrackName,
				Author: r.ArtistName,
			})
			if limit > 0 && len(out.Items) >= limit {
				return out, nil
			}
		}
	}
	if len(out.Items) == 0 {
		return nil, dmp.ErrInvalidPlaylist
	}
	return out, nil
}
