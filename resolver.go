package dmp

import (
	"context"
	"io"
	"sync"
)

// RawSong is provider output before it is attached to a queue.
type RawSong struct {
	Name      string
	Author    string
	URL       string
	Thumbnail string
	Duration  string
	IsLive    bool
	SeekTime  int64
}

// PlaylistItem is a playlist entry that still needs its own resolution,
// typically a track name from a provider that cannot stream directly.
type PlaylistItem struct {
	Title  string
	Author string
}

// RawPlaylist is provider output for a collection. Providers fill either
// Songs (directly playable) or Items (need re-search), never both.
type RawPlaylist struct {
	Name   string
	Author string
	URL    string
	Kind   string
	Songs  []*RawSong
	Items  []PlaylistItem
}

// RefineKnob names a search refinement dimension.
type RefineKnob string

const (
	RefineSortBy     RefineKnob = "sort_by"
	RefineDuration   RefineKnob = "duration"
	RefineUploadDate RefineKnob = "upload_date"
)

// SearchHandle is an open search whose result set can be narrowed before
// results are pulled.
type SearchHandle interface {
	// Refine narrows the result set along one knob, returning a new
	// handle. The receiver stays valid.
	Refine(ctx context.Context, knob RefineKnob, value string) (SearchHandle, error)
	// Results returns up to limit entries. Nil entries mark non-video
	// results (channels, mixes) and are skipped by the resolver.
	Results(ctx context.Context, limit int) ([]*RawSong, error)
}

// SearchProvider answers free-text queries.
type SearchProvider interface {
	Open(ctx context.Context, query string) (SearchHandle, error)
}

// TrackMatch asks the resolver to re-run a provider's canonical query
// through text search. Providers that cannot stream return it from Track.
type TrackMatch struct {
	// Song carries metadata for the matched track, may be nil.
	Song *RawSong
	// Query is the text searched in the Song's place.
	Query string
}

// TrackProvider resolves a single URL it claims via MatchTrack.
type TrackProvider interface {
	MatchTrack(url string) bool
	// Track resolves the URL. A *TrackMatch result (instead of a filled
	// RawSong) defers to text search.
	Track(ctx context.Context, url string, timecode bool) (*RawSong, *TrackMatch, error)
}

// PlaylistProvider resolves a collection URL it claims via MatchPlaylist.
type PlaylistProvider interface {
	MatchPlaylist(url string) bool
	// Playlist resolves up to limit entries, -1 for no cap.
	Playlist(ctx context.Context, url string, limit int) (*RawPlaylist, error)
}

// StreamSource turns a resolved song into its audio byte stream.
type StreamSource interface {
	OpenStream(ctx context.Context, s *Song) (io.ReadCloser, error)
}

// Resolver dispatches play requests across registered providers: the
// first track provider whose MatchTrack claims the input wins, otherwise
// the input is treated as a text query.
type Resolver struct {
	Search    SearchProvider
	Tracks    []TrackProvider
	Playlists []PlaylistProvider
}

// searchResultLimit bounds how many entries a text search pulls before
// picking the first playable one.
const searchResultLimit = 5

// Resolve turns a Play input into a song. Accepted inputs: a *Song
// (returned untouched), a URL claimed by a track provider, or a text
// query for the search provider.
func (r *Resolver) Resolve(ctx context.Context, search any, opts *PlayOptions, q *Queue) (*Song, error) {
	if s, ok := search.(*Song); ok {
		return s, nil
	}
	query, ok := search.(string)
	if !ok || query == "" {
		return nil, ErrSearchNull
	}

	for _, p := range r.Tracks {
		if !p.MatchTrack(query) {
			continue
		}
		raw, match, err := p.Track(ctx, query, opts.Timecode)
		if err != nil {
			break
		}
		if raw != nil {
			return newSong(raw, q), nil
		}
		if match != nil {
			raw, err := r.searchOne(ctx, match.Query, opts)
			if err != nil {
				return nil, err
			}
			if match.Song != nil {
				raw.Name = match.Song.Name
				raw.Author = match.Song.Author
				if match.Song.Thumbnail != "" {
					raw.Thumbnail = match.Song.Thumbnail
				}
			}
			return newSong(raw, q), nil
		}
		break
	}

	raw, err := r.searchOne(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	return newSong(raw, q), nil
}

func (r *Resolver) searchOne(ctx context.Context, query string, opts *PlayOptions) (*RawSong, error) {
	if r.Search == nil {
		return nil, ErrSearchNull
	}
	handle, err := r.Search.Open(ctx, query)
	if err != nil {
		return nil, err
	}
	handle = refine(ctx, handle, RefineSortBy, opts.SortBy, "relevance")
	handle = refine(ctx, handle, RefineDuration, opts.Duration, "all")
	handle = refine(ctx, handle, RefineUploadDate, opts.UploadDate, "all")

	results, err := handle.Results(ctx, searchResultLimit)
	if err != nil {
		return nil, err
	}
	for _, res := range results {
		if res != nil {
			return res, nil
		}
	}
	return nil, ErrSearchNull
}

// refine applies one knob, keeping the previous handle when the value is
// unset, the no-op default, or the provider rejects it.
func refine(ctx context.Context, h SearchHandle, knob RefineKnob, value, noop string) SearchHandle {
	if value == "" || value == noop {
		return h
	}
	next, err := h.Refine(ctx, knob, value)
	if err != nil || next == nil {
		return h
	}
	return next
}

// ResolvePlaylist turns a Playlist input into resolved songs. Entries
// that fail resolution are dropped; zero survivors is an error.
func (r *Resolver) ResolvePlaylist(ctx context.Context, search any, opts *PlaylistOptions, q *Queue) (*Playlist, error) {
	if p, ok := search.(*Playlist); ok {
		return p, nil
	}
	query, ok := search.(string)
	if !ok || query == "" {
		return nil, ErrInvalidPlaylist
	}

	var raw *RawPlaylist
	for _, p := range r.Playlists {
		if !p.MatchPlaylist(query) {
			continue
		}
		var err error
		raw, err = p.Playlist(ctx, query, opts.MaxSongs)
		if err != nil {
			return nil, err
		}
		break
	}
	if raw == nil {
		return nil, ErrInvalidPlaylist
	}

	pl := newPlaylist(raw, q)
	songs := make([]*Song, 0, len(raw.Songs)+len(raw.Items))
	for _, rs := range raw.Songs {
		if rs == nil {
			continue
		}
		songs = append(songs, newSong(rs, q))
	}

	if len(raw.Items) > 0 {
		resolved := r.resolveItems(ctx, raw.Items, opts)
		songs = append(songs, resolveToSongs(resolved, q)...)
	}

	if opts.MaxSongs > 0 && len(songs) > opts.MaxSongs {
		songs = songs[:opts.MaxSongs]
	}
	if len(songs) == 0 {
		return nil, ErrInvalidPlaylist
	}
	if opts.Shuffle {
		songs = ShuffleSongs(songs)
	}
	for _, s := range songs {
		s.Data = opts.Data
	}
	pl.Songs = songs
	return pl, nil
}

// resolveItems searches every re-search entry concurrently, preserving
// playlist order. Failed entries come back nil.
func (r *Resolver) resolveItems(ctx context.Context, items []PlaylistItem, opts *PlaylistOptions) []*RawSong {
	if opts.MaxSongs > 0 && len(items) > opts.MaxSongs {
		items = items[:opts.MaxSongs]
	}
	results := make([]*RawSong, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item PlaylistItem) {
			defer wg.Done()
			query := item.Title
			if item.Author != "" {
				query = item.Author + " - " + item.Title
			}
			raw, err := r.searchOne(ctx, query, DefaultPlayOptions())
			if err != nil {
				return
			}
			results[i] = raw
		}(i, item)
	}
	wg.Wait()
	return results
}

func resolveToSongs(raws []*RawSong, q *Queue) []*Song {
	songs := make([]*Song, 0, len(raws))
	for _, raw := range raws {
		if raw == nil {
			continue
		}
		songs = append(songs, newSong(raw, q))
	}
	return songs
}
