package dmp

// EventHandlers receive queue lifecycle notifications. All fields are
// optional; nil handlers are skipped. Handlers run synchronously on the
// goroutine that triggered them, after the queue lock has been released,
// so they may call back into the queue.
type EventHandlers struct {
	// OnSongAdd fires when a song is appended or inserted into a queue.
	OnSongAdd func(q *Queue, s *Song)
	// OnSongFirst fires once per song, the first time it starts playing.
	OnSongFirst func(q *Queue, s *Song)
	// OnSongChanged fires when playback advances from one song to the next.
	OnSongChanged func(q *Queue, newSong, oldSong *Song)
	// OnQueueEnd fires when the last song finishes and repeat is disabled.
	OnQueueEnd func(q *Queue)
	// OnQueueDestroyed fires when a queue leaves voice or is deleted.
	OnQueueDestroyed func(q *Queue)
	// OnPlaylistAdd fires when a resolved playlist enters a queue.
	OnPlaylistAdd func(q *Queue, p *Playlist)
	// OnError fires for playback and resolution failures.
	OnError func(err error, q *Queue)
}

func (h *EventHandlers) emitSongAdd(q *Queue, s *Song) {
	if h != nil && h.OnSongAdd != nil {
		h.OnSongAdd(q, s)
	}
}

func (h *EventHandlers) emitSongFirst(q *Queue, s *Song) {
	if h != nil && h.OnSongFirst != nil {
		h.OnSongFirst(q, s)
	}
}

func (h *EventHandlers) emitSongChanged(q *Queue, newSong, oldSong *Song) {
	if h != nil && h.OnSongChanged != nil {
		h.OnSongChanged(q, newSong, oldSong)
	}
}

func (h *EventHandlers) emitQueueEnd(q *Queue) {
	if h != nil && h.OnQueueEnd != nil {
		h.OnQueueEnd(q)
	}
}

func (h *EventHandlers) emitQueueDestroyed(q *Queue) {
	if h != nil && h.OnQueueDestroyed != nil {
		h.OnQueueDestroyed(q)
	}
}

func (h *EventHandlers) emitPlaylistAdd(q *Queue, p *Playlist) {
	if h != nil && h.OnPlaylistAdd != nil {
		h.OnPlaylistAdd(q, p)
	}
}

func (h *EventHandlers) emitError(err error, q *Queue) {
	if h != nil && h.OnError != nil {
		h.OnError(err, q)
	}
}
