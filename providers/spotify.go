package providers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	dmp "github.com/ArthesTN/discord-music-player"
)

var (
	spotifyTrackRe    = regexp.MustCompile(`(?:https?://)?open\.spotify\.com/(?:intl-[a-z]+/)?track/([a-zA-Z0-9]+)`)
	spotifyPlaylistRe = regexp.MustCompile(`(?:https?://)?open\.spotify\.com/(?:intl-[a-z]+/)?(playlist|album)/([a-zA-Z0-9]+)`)
)

// spotifyPageSize is the item count the playlist endpoints return per
// request.
const spotifyPageSize = 100

// Spotify resolves spotify track, playlist, and album URLs. Spotify
// cannot be streamed directly, so tracks come back as re-search queries
// carrying the spotify metadata.
type Spotify struct {
	client *spotify.Client
}

// NewSpotify authenticates with the client credentials flow, which is
// enough for public catalog reads.
func NewSpotify(ctx context.Context, clientID, clientSecret string) (*Spotify, error) {
	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	httpClient := config.Client(ctx)
	return &Spotify{client: spotify.New(httpClient)}, nil
}

// MatchTrack implements dmp.TrackProvider.
func (s *Spotify) MatchTrack(u string) bool {
	return spotifyTrackRe.MatchString(u)
}

// Track implements dmp.TrackProvider.
func (s *Spotify) Track(ctx context.Context, u string, _ bool) (*dmp.RawSong, *dmp.TrackMatch, error) {
	m := spotifyTrackRe.FindStringSubmatch(u)
	if m == nil {
		return nil, nil, dmp.ErrSearchNull
	}
	track, err := s.client.GetTrack(ctx, spotify.ID(m[1]))
	if err != nil {
		return nil, nil, fmt.Errorf("spotify track lookup: %w", err)
	}

	raw := &dmp.RawSong{
		Name:     track.Name,
		Author:   joinArtists(track.Artists),
		Duration: dmp.MsToTime(int64(track.Duration)),
	}
	if len(track.Album.Images) > 0 {
		raw.Thumbnail = track.Album.Images[0].URL
	}
	return nil, &dmp.TrackMatch{
		Song:  raw,
		Query: joinArtists(track.Artists) + " - " + track.Name,
	}, nil
}

// MatchPlaylist implements dmp.PlaylistProvider.
func (s *Spotify) MatchPlaylist(u string) bool {
	return spotifyPlaylistRe.MatchString(u)
}

// Playlist implements dmp.PlaylistProvider. Entries come back as
// re-search items carrying title and artist.
func (s *Spotify) Playlist(ctx context.Context, u string, limit int) (*dmp.RawPlaylist, error) {
	m := spotifyPlaylistRe.FindStringSubmatch(u)
	if m == nil {
		return nil, dmp.ErrInvalidPlaylist
	}
	kind, id := m[1], spotify.ID(m[2])
	if kind == "album" {
		return s.album(ctx, u, id, limit)
	}

	pl, err := s.client.GetPlaylist(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("spotify playlist lookup: %w", err)
	}
	out := &dmp.RawPlaylist{
		Name:   pl.Name,
		Author: pl.Owner.DisplayName,
		URL:    u,
		Kind:   "playlist",
	}

	offset := 0
	for {
		page, err := s.client.GetPlaylistItems(ctx, id,
			spotify.Limit(spotifyPageSize), spotify.Offset(offset))
		if err != nil {
			return nil, fmt.Errorf("spotify playlist page: %w", err)
		}
		for i := range page.Items {
			track := page.Items[i].Track.Track
			if track == nil {
				continue
			}
			out.Items = append(out.Items, dmp.PlaylistItem{
				Title:  track.Name,
				Author: joinArtists(track.Artists),
			})
			if limit > 0 && len(out.Items) >= limit {
				return out, nil
			}
		}
		if len(page.Items) < spotifyPageSize {
			break
		}
		offset += spotifyPageSize
	}
	return out, nil
}

func (s *Spotify) album(ctx context.Context, u string, id spotify.ID, limit int) (*dmp.RawPlaylist, error) {
	album, err := s.client.GetAlbum(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("spotify album lookup: %w", err)
	}
	out := &dmp.RawPlaylist{
		Name:   album.Name,
		Author: joinArtists(album.Artists),
		URL:    u,
		Kind:   "album",
	}

	page := &album.Tracks
	for {
		for i := range page.Tracks {
			out.Items = append(out.Items, dmp.PlaylistItem{
				Title:  page.Tracks[i].Name,
				Author: joinArtists(page.Tracks[i].Artists),
			})
			if limit > 0 && len(out.Items) >= limit {
				return out, nil
			}
		}
		err := s.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("spotify album page: %w", err)
		}
	}
	return out, nil
}

func joinArtists(artists []spotify.SimpleArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}
