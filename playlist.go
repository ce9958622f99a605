package dmp

import "fmt"

// Playlist is a resolved collection of songs about to enter a queue.
type Playlist struct {
	queue *Queue

	// Name is the playlist or album title.
	Name string
	// Author is the playlist owner or album artist.
	Author string
	// URL is the canonical page URL of the collection.
	URL string
	// Songs are the resolved playable entries, in playlist order unless
	// shuffled.
	Songs []*Song
}

func newPlaylist(raw *RawPlaylist, q *Queue) *Playlist {
	return &Playlist{
		queue:  q,
		Name:   raw.Name,
		Author: raw.Author,
		URL:    raw.URL,
	}
}

// Queue returns the queue the playlist was resolved for.
func (p *Playlist) Queue() *Queue {
	return p.queue
}

func (p *Playlist) String() string {
	return fmt.Sprintf("%s | %s", p.Name, p.Author)
}
