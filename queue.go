package dmp

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// forcefullyRemovedName replaces the title of the head song when its
// stream could not be opened and nothing remained to advance to.
const forcefullyRemovedName = "NOTHING - FORCEFULLY REMOVED"

// streamAttempts is how many times a song's stream is reopened before
// the song is evicted.
const streamAttempts = 5

// Queue holds the playback state of one guild.
type Queue struct {
	player *Player

	// GuildID identifies the guild this queue belongs to.
	GuildID snowflake.ID

	mu         sync.Mutex
	songs      []*Song
	isPlaying  bool
	repeatMode RepeatMode
	destroyed  bool
	paused     bool
	connection *StreamConnection
	leaveTimer *time.Timer
	data       any

	options PlayerOptions
}

func newQueue(p *Player, guildID snowflake.ID, options PlayerOptions) *Queue {
	return &Queue{
		player:  p,
		GuildID: guildID,
		options: options,
	}
}

// Destroyed reports whether the queue has been torn down. A destroyed
// queue rejects every operation.
func (q *Queue) Destroyed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.destroyed
}

// IsPlaying reports whether a stream is currently active.
func (q *Queue) IsPlaying() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.isPlaying
}

// Songs returns a snapshot of the queue contents, head first.
func (q *Queue) Songs() []*Song {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Song, len(q.songs))
	copy(out, q.songs)
	return out
}

// RepeatMode returns the active repeat mode.
func (q *Queue) RepeatMode() RepeatMode {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.repeatMode
}

// Data returns data previously attached with SetData.
func (q *Queue) Data() any {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.data
}

// SetData attaches arbitrary caller data to the queue.
func (q *Queue) SetData(data any) {
	q.mu.Lock()
	q.data = data
	q.mu.Unlock()
}

// Connection returns the active stream connection, nil before Join.
func (q *Queue) Connection() *StreamConnection {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.connection
}

// Join connects the queue to a voice channel. Joining while already
// connected is a no-op.
func (q *Queue) Join(ctx context.Context, channelID snowflake.ID) error {
	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		q.emitError(ErrQueueDestroyed)
		return ErrQueueDestroyed
	}
	if q.connection != nil {
		q.mu.Unlock()
		return nil
	}
	deafen := q.options.DeafenOnJoin
	volume := q.options.Volume
	q.mu.Unlock()

	conn, err := q.player.connector.Connect(ctx, q.GuildID, channelID, deafen)
	if err != nil {
		q.emitError(err)
		return err
	}

	sc := newStreamConnection(conn, volume)
	sc.onStart = q.onStreamStart
	sc.onEnd = q.onStreamEnd
	sc.onError = q.onStreamError

	q.mu.Lock()
	q.connection = sc
	q.mu.Unlock()
	return nil
}

// Play resolves the input and queues it, or starts playback when the
// queue was idle. It returns the resolved song.
func (q *Queue) Play(ctx context.Context, search any, opts *PlayOptions) (*Song, error) {
	opts = opts.withDefaults()

	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		q.emitError(ErrQueueDestroyed)
		return nil, ErrQueueDestroyed
	}
	if q.connection == nil {
		q.mu.Unlock()
		q.emitError(ErrNoVoiceConnection)
		return nil, ErrNoVoiceConnection
	}
	q.mu.Unlock()

	song, err := q.player.resolver.Resolve(ctx, search, opts, q)
	if err != nil {
		q.emitError(err)
		return nil, err
	}
	song.queue = q
	song.player = q.player
	if len(opts.Filters) > 0 {
		song.Filters = opts.Filters
	}
	if opts.Data != nil {
		song.Data = opts.Data
	}

	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		q.emitError(ErrQueueDestroyed)
		return nil, ErrQueueDestroyed
	}

	if !opts.immediate {
		if len(q.songs) > 0 {
			q.insertLocked(song, opts.Index)
			q.mu.Unlock()
			q.player.Handlers.emitSongAdd(q, song)
			return song, nil
		}
		song.setFirst(true)
		q.insertLocked(song, opts.Index)
		q.mu.Unlock()
		q.player.Handlers.emitSongAdd(q, song)
	} else {
		if len(q.songs) == 0 {
			q.mu.Unlock()
			q.emitError(ErrNothingPlaying)
			return nil, ErrNothingPlaying
		}
		if opts.seek > 0 {
			q.songs[0].SeekTime = opts.seek
		}
		q.mu.Unlock()
		// An explicit seek applies even while repeating.
		if err := q.stream(ctx, opts.seek); err != nil {
			return nil, err
		}
		return song, nil
	}

	if err := q.stream(ctx, noSeekOverride); err != nil {
		return nil, err
	}
	return song, nil
}

// Playlist resolves a playlist input and queues its songs, starting
// playback when the queue was idle.
func (q *Queue) Playlist(ctx context.Context, search any, opts *PlaylistOptions) (*Playlist, error) {
	opts = opts.withDefaults()

	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		q.emitError(ErrQueueDestroyed)
		return nil, ErrQueueDestroyed
	}
	if q.connection == nil {
		q.mu.Unlock()
		q.emitError(ErrNoVoiceConnection)
		return nil, ErrNoVoiceConnection
	}
	q.mu.Unlock()

	pl, err := q.player.resolver.ResolvePlaylist(ctx, search, opts, q)
	if err != nil {
		q.emitError(err)
		return nil, err
	}
	for _, s := range pl.Songs {
		s.queue = q
		s.player = q.player
	}

	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		q.emitError(ErrQueueDestroyed)
		return nil, ErrQueueDestroyed
	}
	wasEmpty := len(q.songs) == 0
	if wasEmpty && len(pl.Songs) > 0 {
		pl.Songs[0].setFirst(true)
	}
	// Position zero is the playing head, so inserts land after it.
	pos := opts.Index + 1
	if opts.Index >= 0 && pos < len(q.songs) {
		rest := make([]*Song, len(q.songs[pos:]))
		copy(rest, q.songs[pos:])
		q.songs = append(append(q.songs[:pos], pl.Songs...), rest...)
	} else {
		q.songs = append(q.songs, pl.Songs...)
	}
	q.mu.Unlock()

	q.player.Handlers.emitPlaylistAdd(q, pl)

	if wasEmpty {
		if err := q.stream(ctx, noSeekOverride); err != nil {
			return nil, err
		}
	}
	return pl, nil
}

// insertLocked places a song after the head at the given index,
// appending when the index is out of range. Position zero is the song
// being played and never gets displaced. Caller holds q.mu.
func (q *Queue) insertLocked(song *Song, index int) {
	pos := index + 1
	if index < 0 || pos > len(q.songs) {
		q.songs = append(q.songs, song)
		return
	}
	q.songs = append(q.songs, nil)
	copy(q.songs[pos+1:], q.songs[pos:])
	q.songs[pos] = song
}

// noSeekOverride tells stream to fall back to the song's stored
// SeekTime, which is only honored while repeat is disabled.
const noSeekOverride = int64(-1)

// stream opens the head song's audio and hands it to the connection,
// retrying the open a fixed number of times before evicting the song.
func (q *Queue) stream(ctx context.Context, seekOverride int64) error {
	q.mu.Lock()
	if q.destroyed || len(q.songs) == 0 {
		q.mu.Unlock()
		return nil
	}
	song := q.songs[0]
	conn := q.connection
	repeat := q.repeatMode
	q.mu.Unlock()

	seek := seekOverride
	if seek < 0 {
		seek = 0
		if repeat == RepeatModeDisabled {
			seek = song.SeekTime
		}
	}

	var stream io.ReadCloser
	var lastErr error
	for attempt := 0; attempt < streamAttempts; attempt++ {
		if q.Destroyed() {
			return ErrQueueDestroyed
		}
		stream, lastErr = q.openSong(ctx, song, seek, conn.Volume())
		if lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		return q.evictHead(song, lastErr)
	}

	res := &AudioResource{Song: song, stream: stream}
	go func() {
		if err := conn.PlayAudioStream(context.Background(), res); err != nil {
			q.onStreamError(err)
		}
	}()
	return nil
}

// openSong opens the raw stream and wraps it in a transcode when filters,
// seeking, or a non-default volume require one.
func (q *Queue) openSong(ctx context.Context, song *Song, seek int64, volume int) (io.ReadCloser, error) {
	raw, err := q.player.source.OpenStream(ctx, song)
	if err != nil {
		return nil, err
	}
	needsPipeline := len(song.Filters) > 0 || seek > 0 || (volume >= 0 && volume != 100)
	if !needsPipeline {
		return raw, nil
	}
	opts := &FFmpegStreamOptions{
		Filters: ResolveFilters(song.Filters),
		Seek:    seek,
		Volume:  volume,
	}
	stream, err := q.player.pipeline(raw, opts)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	return stream, nil
}

// evictHead removes a song whose stream never opened. When another song
// is waiting, playback advances to it; otherwise the dead entry stays
// visible under a sentinel name so callers can see what happened.
func (q *Queue) evictHead(song *Song, cause error) error {
	q.emitError(fmt.Errorf("%w: %v", ErrSearchNull, cause))

	q.mu.Lock()
	if len(q.songs) > 0 && q.songs[0] == song {
		q.songs = q.songs[1:]
	}
	var next *Song
	empty := len(q.songs) == 0
	if !empty {
		next = q.songs[0]
	}
	q.mu.Unlock()

	if empty {
		song.Name = forcefullyRemovedName
		q.player.Handlers.emitSongChanged(q, song, song)
		return fmt.Errorf("%w: %v", ErrSearchNull, cause)
	}
	q.player.Handlers.emitSongChanged(q, next, song)
	return q.stream(context.Background(), noSeekOverride)
}

// onStreamStart flags the queue as playing and fires the once-per-song
// first-play event. A seek replay of a song that already announced
// itself stays silent.
func (q *Queue) onStreamStart(res *AudioResource) {
	s := res.Song

	q.mu.Lock()
	q.isPlaying = true
	q.cancelLeaveLocked()
	fire := s.firstTimeInQueue && ((s.isFirst && s.SeekTime == 0) || s.SeekTime != 0)
	if fire {
		s.flipFirstTimeInQueue()
	}
	q.mu.Unlock()

	if fire {
		q.player.Handlers.emitSongFirst(q, s)
	}
}

// onStreamEnd advances the queue according to the repeat mode.
func (q *Queue) onStreamEnd(res *AudioResource) {
	old := res.Song

	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		q.player.Handlers.emitQueueDestroyed(q)
		return
	}

	if len(q.songs) > 0 && q.songs[0] == old {
		q.songs = q.songs[1:]
	}

	switch q.repeatMode {
	case RepeatModeTrack:
		old.setFirst(false)
		q.songs = append([]*Song{old}, q.songs...)
	case RepeatModeAll:
		old.setFirst(false)
		q.songs = append(q.songs, old)
	}

	if len(q.songs) == 0 {
		q.isPlaying = false
		leave := q.options.LeaveOnEnd
		timeout := q.options.Timeout
		q.mu.Unlock()
		q.player.Handlers.emitQueueEnd(q)
		if leave {
			q.scheduleLeave(timeout)
		}
		return
	}

	next := q.songs[0]
	q.mu.Unlock()

	q.player.Handlers.emitSongChanged(q, next, old)
	if err := q.stream(context.Background(), noSeekOverride); err != nil {
		q.emitError(err)
	}
}

func (q *Queue) onStreamError(err error) {
	q.emitError(err)
}

// Seek restarts the current song at the given millisecond offset.
// Seeking past the end of the song skips it instead.
func (q *Queue) Seek(ctx context.Context, ms int64) (*Song, error) {
	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		q.emitError(ErrQueueDestroyed)
		return nil, ErrQueueDestroyed
	}
	if !q.isPlaying || len(q.songs) == 0 {
		q.mu.Unlock()
		q.emitError(ErrNothingPlaying)
		return nil, ErrNothingPlaying
	}
	current := q.songs[0]
	q.mu.Unlock()

	if ms < 1 {
		ms = 0
	}
	if !current.IsLive && ms >= current.Milliseconds() {
		return q.Skip(0)
	}

	return q.Play(ctx, current, &PlayOptions{immediate: true, seek: ms})
}

// Skip drops n songs after the current one and ends the current stream,
// letting playback advance. It returns the song that will play next,
// nil when the queue drains.
func (q *Queue) Skip(n int) (*Song, error) {
	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		q.emitError(ErrQueueDestroyed)
		return nil, ErrQueueDestroyed
	}
	if len(q.songs) == 0 {
		q.mu.Unlock()
		q.emitError(ErrNothingPlaying)
		return nil, ErrNothingPlaying
	}
	if n < 0 {
		n = 0
	}
	rest := q.songs[1:]
	if n > len(rest) {
		n = len(rest)
	}
	q.songs = append([]*Song{q.songs[0]}, rest[n:]...)
	var next *Song
	if len(q.songs) > 1 {
		next = q.songs[1]
	}
	conn := q.connection
	q.mu.Unlock()

	if conn != nil {
		conn.Stop()
	}
	return next, nil
}

// Stop clears the queue and ends playback.
func (q *Queue) Stop() error {
	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		q.emitError(ErrQueueDestroyed)
		return ErrQueueDestroyed
	}
	q.repeatMode = RepeatModeDisabled
	if len(q.songs) > 1 {
		q.songs = q.songs[:1]
	}
	conn := q.connection
	leave := q.options.LeaveOnStop
	timeout := q.options.Timeout
	q.isPlaying = false
	q.mu.Unlock()

	if conn != nil {
		conn.Stop()
	}
	if leave {
		q.scheduleLeave(timeout)
	}
	return nil
}

// Shuffle randomizes the queue while keeping the current song in place.
// It returns the new order.
func (q *Queue) Shuffle() ([]*Song, error) {
	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		q.emitError(ErrQueueDestroyed)
		return nil, ErrQueueDestroyed
	}
	if len(q.songs) > 2 {
		rest := ShuffleSongs(q.songs[1:])
		q.songs = append(q.songs[:1], rest...)
	}
	out := make([]*Song, len(q.songs))
	copy(out, q.songs)
	q.mu.Unlock()
	return out, nil
}

// SetRepeatMode switches the repeat mode. It returns false when the mode
// did not change.
func (q *Queue) SetRepeatMode(mode RepeatMode) (bool, error) {
	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		q.emitError(ErrQueueDestroyed)
		return false, ErrQueueDestroyed
	}
	if mode < RepeatModeDisabled || mode > RepeatModeAll {
		q.mu.Unlock()
		q.emitError(ErrUnknownRepeatMode)
		return false, ErrUnknownRepeatMode
	}
	changed := q.repeatMode != mode
	q.repeatMode = mode
	q.mu.Unlock()
	return changed, nil
}

// Remove drops the song at the given index and returns it. Index zero is
// the current song; removing it does not interrupt playback.
func (q *Queue) Remove(index int) (*Song, error) {
	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		q.emitError(ErrQueueDestroyed)
		return nil, ErrQueueDestroyed
	}
	if index < 0 || index >= len(q.songs) {
		q.mu.Unlock()
		q.emitError(ErrUnknownSong)
		return nil, ErrUnknownSong
	}
	song := q.songs[index]
	q.songs = append(q.songs[:index], q.songs[index+1:]...)
	q.mu.Unlock()
	return song, nil
}

// ClearQueue drops every song except the one playing.
func (q *Queue) ClearQueue() error {
	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		q.emitError(ErrQueueDestroyed)
		return ErrQueueDestroyed
	}
	if len(q.songs) > 1 {
		q.songs = q.songs[:1]
	}
	q.mu.Unlock()
	return nil
}

// NowPlaying returns the song currently streaming, falling back to the
// queue head, nil when idle.
func (q *Queue) NowPlaying() *Song {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.destroyed {
		return nil
	}
	if q.connection != nil {
		if res := q.connection.Resource(); res != nil {
			return res.Song
		}
	}
	if len(q.songs) > 0 {
		return q.songs[0]
	}
	return nil
}

// SetVolume changes the playback volume in percent. It applies when the
// next stream is built.
func (q *Queue) SetVolume(volume int) error {
	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		q.emitError(ErrQueueDestroyed)
		return ErrQueueDestroyed
	}
	conn := q.connection
	q.options.Volume = volume
	q.mu.Unlock()

	if conn == nil {
		q.emitError(ErrNoVoiceConnection)
		return ErrNoVoiceConnection
	}
	conn.SetVolume(volume)
	return nil
}

// Volume returns the queue volume in percent.
func (q *Queue) Volume() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.connection != nil {
		return q.connection.Volume()
	}
	return q.options.Volume
}

// SetPaused freezes or resumes playback.
func (q *Queue) SetPaused(paused bool) error {
	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		q.emitError(ErrQueueDestroyed)
		return ErrQueueDestroyed
	}
	conn := q.connection
	playing := q.isPlaying
	q.paused = paused
	q.mu.Unlock()

	if conn == nil {
		q.emitError(ErrNoVoiceConnection)
		return ErrNoVoiceConnection
	}
	if !playing {
		q.emitError(ErrNothingPlaying)
		return ErrNothingPlaying
	}
	conn.SetPaused(paused)
	return nil
}

// Paused reports whether playback is frozen.
func (q *Queue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// CreateProgressBar renders the current playback position as a text bar.
func (q *Queue) CreateProgressBar(size int) (string, error) {
	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		q.emitError(ErrQueueDestroyed)
		return "", ErrQueueDestroyed
	}
	if !q.isPlaying || len(q.songs) == 0 || q.connection == nil {
		q.mu.Unlock()
		q.emitError(ErrNothingPlaying)
		return "", ErrNothingPlaying
	}
	song := q.songs[0]
	conn := q.connection
	q.mu.Unlock()

	if size < 4 {
		size = 20
	}
	total := song.Milliseconds()
	pos := conn.PlaybackPosition().Milliseconds() + song.SeekTime
	if total > 0 && pos > total {
		pos = total
	}

	filled := 0
	if total > 0 {
		filled = int(float64(pos) / float64(total) * float64(size))
		if filled > size {
			filled = size
		}
	}
	bar := strings.Repeat("▬", filled) + "🔘" + strings.Repeat("▬", size-filled)
	if song.IsLive {
		return fmt.Sprintf("%s %s/◉ LIVE", bar, MsToTime(pos)), nil
	}
	return fmt.Sprintf("%s %s/%s", bar, MsToTime(pos), MsToTime(total)), nil
}

// Leave destroys the queue: the voice connection closes, the song list
// empties, and the queue is removed from the player.
func (q *Queue) Leave(ctx context.Context) {
	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		return
	}
	q.destroyed = true
	q.isPlaying = false
	q.songs = nil
	q.cancelLeaveLocked()
	conn := q.connection
	q.connection = nil
	q.mu.Unlock()

	if conn != nil {
		conn.Leave(ctx)
	}
	q.player.removeQueue(q.GuildID)
	q.player.Handlers.emitQueueDestroyed(q)
}

// scheduleLeave arms a disconnect that fires after the timeout unless
// playback resumed in the meantime.
func (q *Queue) scheduleLeave(timeout time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.destroyed {
		return
	}
	if q.leaveTimer != nil {
		q.leaveTimer.Stop()
	}
	if timeout <= 0 {
		go func() {
			if q.IsPlaying() || q.Destroyed() {
				return
			}
			q.Leave(context.Background())
		}()
		return
	}
	q.leaveTimer = time.AfterFunc(timeout, func() {
		if q.IsPlaying() || q.Destroyed() {
			return
		}
		q.Leave(context.Background())
	})
}

func (q *Queue) cancelLeaveLocked() {
	if q.leaveTimer != nil {
		q.leaveTimer.Stop()
		q.leaveTimer = nil
	}
}

func (q *Queue) emitError(err error) {
	q.player.Handlers.emitError(err, q)
}
