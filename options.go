package dmp

import "time"

// RepeatMode controls what happens to the current song when it finishes.
type RepeatMode int

const (
	// RepeatModeDisabled plays the queue front to back and stops.
	RepeatModeDisabled RepeatMode = iota
	// RepeatModeTrack replays the current song indefinitely.
	RepeatModeTrack
	// RepeatModeAll moves finished songs to the back of the queue.
	RepeatModeAll
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatModeDisabled:
		return "disabled"
	case RepeatModeTrack:
		return "track"
	case RepeatModeAll:
		return "all"
	default:
		return "unknown"
	}
}

// PlayerOptions configure defaults applied to every queue the player creates.
type PlayerOptions struct {
	// LeaveOnEnd disconnects after the queue drains and Timeout elapses.
	LeaveOnEnd bool
	// LeaveOnStop disconnects after Stop and Timeout elapses.
	LeaveOnStop bool
	// DeafenOnJoin requests self-deafen on the voice connection.
	DeafenOnJoin bool
	// Timeout is the grace period before a scheduled disconnect fires.
	Timeout time.Duration
	// Volume is the initial queue volume in percent.
	Volume int
}

// DefaultPlayerOptions mirror the defaults applied when NewPlayer receives
// a nil options struct.
func DefaultPlayerOptions() PlayerOptions {
	return PlayerOptions{
		LeaveOnEnd:   true,
		LeaveOnStop:  true,
		DeafenOnJoin: true,
		Timeout:      0,
		Volume:       100,
	}
}

// PlayOptions tune a single Play call.
type PlayOptions struct {
	// Filters are applied to the song when it starts streaming.
	Filters []string
	// SortBy refines text searches ("relevance", "date", "view count", "rating").
	SortBy string
	// Duration refines text searches ("all", "short", "long").
	Duration string
	// UploadDate refines text searches ("all", "hour", "today", "week", "month", "year").
	UploadDate string
	// Timecode honors a t= parameter in the URL as the initial seek point.
	Timecode bool
	// Index inserts the song at the given position among the upcoming
	// songs, after whatever is playing. -1 appends.
	Index int
	// Data is attached to the resolved song as-is.
	Data any

	// immediate playback replaces the current stream instead of queueing.
	immediate bool
	// seek is the start offset in milliseconds for immediate playback.
	seek int64
}

// DefaultPlayOptions returns the options used when Play receives nil.
func DefaultPlayOptions() *PlayOptions {
	return &PlayOptions{
		SortBy:     "relevance",
		Duration:   "all",
		UploadDate: "all",
		Index:      -1,
	}
}

// PlaylistOptions tune a single Playlist call.
type PlaylistOptions struct {
	// MaxSongs caps how many playlist entries are resolved, -1 is unlimited.
	MaxSongs int
	// Shuffle randomizes the resolved songs before they enter the queue.
	Shuffle bool
	// Index inserts the block at the given position among the upcoming
	// songs, after whatever is playing. -1 appends.
	Index int
	// Data is attached to every resolved song as-is.
	Data any
}

// DefaultPlaylistOptions returns the options used when Playlist receives nil.
func DefaultPlaylistOptions() *PlaylistOptions {
	return &PlaylistOptions{
		MaxSongs: -1,
		Index:    -1,
	}
}

func (o *PlayOptions) withDefaults() *PlayOptions {
	if o == nil {
		return DefaultPlayOptions()
	}
	out := *o
	if out.SortBy == "" {
		out.SortBy = "relevance"
	}
	if out.Duration == "" {
		out.Duration = "all"
	}
	if out.UploadDate == "" {
		out.UploadDate = "all"
	}
	return &out
}

func (o *PlaylistOptions) withDefaults() *PlaylistOptions {
	if o == nil {
		return DefaultPlaylistOptions()
	}
	out := *o
	if out.MaxSongs == 0 {
		out.MaxSongs = -1
	}
	return &out
}
