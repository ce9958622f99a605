package dmp

import "fmt"

// Song is a single playable track attached to a queue.
type Song struct {
	player *Player
	queue  *Queue

	// Name is the track title.
	Name string
	// Author is the uploader or artist name.
	Author string
	// URL is the canonical page URL of the track.
	URL string
	// Thumbnail is a cover image URL, possibly empty.
	Thumbnail string
	// Duration is the track length formatted as HH:MM:SS.
	Duration string
	// IsLive marks livestreams, which have no meaningful duration.
	IsLive bool
	// Filters are the audio filter names applied when the song streams.
	Filters []string
	// SeekTime is the position in milliseconds playback starts from.
	SeekTime int64
	// Data carries arbitrary caller data through the queue.
	Data any

	isFirst          bool
	firstTimeInQueue bool
}

func newSong(raw *RawSong, q *Queue) *Song {
	s := &Song{
		queue:            q,
		Name:             raw.Name,
		Author:           raw.Author,
		URL:              raw.URL,
		Thumbnail:        raw.Thumbnail,
		Duration:         raw.Duration,
		IsLive:           raw.IsLive,
		SeekTime:         raw.SeekTime,
		firstTimeInQueue: true,
	}
	if q != nil {
		s.player = q.player
	}
	return s
}

// Queue returns the queue the song belongs to.
func (s *Song) Queue() *Queue {
	return s.queue
}

// Milliseconds returns the track length in milliseconds. Livestreams
// report zero.
func (s *Song) Milliseconds() int64 {
	if s.IsLive {
		return 0
	}
	return TimeToMs(s.Duration)
}

// SetData attaches arbitrary caller data to the song.
func (s *Song) SetData(data any) {
	s.Data = data
}

func (s *Song) setFirst(first bool) {
	s.isFirst = first
}

func (s *Song) flipFirstTimeInQueue() {
	s.firstTimeInQueue = false
}

func (s *Song) String() string {
	return fmt.Sprintf("%s | %s", s.Name, s.Author)
}
