package dmp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

type fakeConnector struct {
	conn *fakeVoiceConn
}

func (f *fakeConnector) Connect(ctx context.Context, guildID, channelID snowflake.ID, deafen bool) (VoiceConn, error) {
	return f.conn, nil
}

// fakeSource serves canned ogg streams by song URL. Unknown URLs fail,
// exercising the retry and eviction paths.
type fakeSource struct {
	mu     sync.Mutex
	frames map[string]int
	opens  map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{frames: make(map[string]int), opens: make(map[string]int)}
}

func (f *fakeSource) add(url string, frames int) {
	f.mu.Lock()
	f.frames[url] = frames
	f.mu.Unlock()
}

func (f *fakeSource) openCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens[url]
}

func (f *fakeSource) OpenStream(ctx context.Context, s *Song) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens[s.URL]++
	n, ok := f.frames[s.URL]
	if !ok {
		return nil, errors.New("no stream for " + s.URL)
	}
	return oggStream(nFrames(n)...), nil
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	copy(out, l.events)
	return out
}

func (l *eventLog) count(e string) int {
	n := 0
	for _, got := range l.snapshot() {
		if got == e {
			n++
		}
	}
	return n
}

func (l *eventLog) waitFor(t *testing.T, e string) {
	t.Helper()
	waitFor(t, func() bool { return l.count(e) > 0 }, e)
}

func newTestPlayer(t *testing.T) (*Player, *fakeSource, *fakeVoiceConn, *eventLog) {
	t.Helper()
	source := newFakeSource()
	conn := newFakeVoiceConn()
	log := &eventLog{}

	p := NewPlayer(nil, &Resolver{}, source, &PlayerOptions{Volume: 100})
	p.connector = &fakeConnector{conn: conn}
	p.Handlers = EventHandlers{
		OnSongAdd:     func(q *Queue, s *Song) { log.add("add:" + s.Name) },
		OnSongFirst:   func(q *Queue, s *Song) { log.add("first:" + s.Name) },
		OnSongChanged: func(q *Queue, n, o *Song) { log.add(fmt.Sprintf("changed:%s->%s", o.Name, n.Name)) },
		OnQueueEnd:    func(q *Queue) { log.add("end") },
		OnQueueDestroyed: func(q *Queue) {
			log.add("destroyed")
		},
		OnPlaylistAdd: func(q *Queue, pl *Playlist) { log.add("playlist:" + pl.Name) },
		OnError:       func(err error, q *Queue) { log.add("error:" + err.Error()) },
	}
	return p, source, conn, log
}

func joinedQueue(t *testing.T, p *Player) *Queue {
	t.Helper()
	q := p.CreateQueue(snowflake.ID(1))
	if err := q.Join(context.Background(), snowflake.ID(2)); err != nil {
		t.Fatalf("Join: %v", err)
	}
	return q
}

func testSong(q *Queue, name, url string) *Song {
	return newSong(&RawSong{Name: name, URL: url, Duration: "00:00:10"}, q)
}

func TestQueuePlayLifecycle(t *testing.T) {
	p, source, _, log := newTestPlayer(t)
	q := joinedQueue(t, p)
	source.add("u1", 5)

	song, err := q.Play(context.Background(), testSong(q, "one", "u1"), nil)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if song.Name != "one" {
		t.Errorf("resolved song = %q", song.Name)
	}

	log.waitFor(t, "end")
	events := log.snapshot()
	want := []string{"add:one", "first:one", "end"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, events[i], want[i])
		}
	}
	if q.IsPlaying() {
		t.Error("queue still playing after drain")
	}
}

func TestQueuePlayWithoutJoin(t *testing.T) {
	p, _, _, _ := newTestPlayer(t)
	q := p.CreateQueue(snowflake.ID(1))
	if _, err := q.Play(context.Background(), testSong(q, "x", "u"), nil); !errors.Is(err, ErrNoVoiceConnection) {
		t.Errorf("Play without join: %v, want ErrNoVoiceConnection", err)
	}
}

func TestQueueAdvance(t *testing.T) {
	p, source, _, log := newTestPlayer(t)
	q := joinedQueue(t, p)
	source.add("u1", 5)
	source.add("u2", 5)

	if _, err := q.Play(context.Background(), testSong(q, "one", "u1"), nil); err != nil {
		t.Fatalf("Play one: %v", err)
	}
	if _, err := q.Play(context.Background(), testSong(q, "two", "u2"), nil); err != nil {
		t.Fatalf("Play two: %v", err)
	}

	log.waitFor(t, "end")
	if log.count("changed:one->two") != 1 {
		t.Errorf("events = %v, want one advance to two", log.snapshot())
	}
	if log.count("first:two") != 0 {
		t.Errorf("songFirst fired for a non-first song: %v", log.snapshot())
	}
}

func TestQueueSongFirstOnce(t *testing.T) {
	p, source, _, log := newTestPlayer(t)
	q := joinedQueue(t, p)
	source.add("u1", 5)

	if _, err := q.Play(context.Background(), testSong(q, "one", "u1"), nil); err != nil {
		t.Fatalf("Play: %v", err)
	}
	log.waitFor(t, "end")
	if got := log.count("first:one"); got != 1 {
		t.Errorf("songFirst fired %d times, want 1", got)
	}
}

func TestQueueRepeatTrack(t *testing.T) {
	p, source, _, log := newTestPlayer(t)
	q := joinedQueue(t, p)
	source.add("u1", 3)

	if _, err := q.SetRepeatMode(RepeatModeTrack); err != nil {
		t.Fatalf("SetRepeatMode: %v", err)
	}
	if _, err := q.Play(context.Background(), testSong(q, "one", "u1"), nil); err != nil {
		t.Fatalf("Play: %v", err)
	}

	waitFor(t, func() bool { return source.openCount("u1") >= 3 }, "track repeats")
	if log.count("end") != 0 {
		t.Error("queue ended while repeat track active")
	}
	if _, err := q.SetRepeatMode(RepeatModeDisabled); err != nil {
		t.Fatalf("SetRepeatMode: %v", err)
	}
	log.waitFor(t, "end")
}

func TestQueueRepeatAll(t *testing.T) {
	p, source, _, log := newTestPlayer(t)
	q := joinedQueue(t, p)
	source.add("u1", 3)
	source.add("u2", 3)

	if _, err := q.SetRepeatMode(RepeatModeAll); err != nil {
		t.Fatalf("SetRepeatMode: %v", err)
	}
	if _, err := q.Play(context.Background(), testSong(q, "one", "u1"), nil); err != nil {
		t.Fatalf("Play one: %v", err)
	}
	if _, err := q.Play(context.Background(), testSong(q, "two", "u2"), nil); err != nil {
		t.Fatalf("Play two: %v", err)
	}

	// With repeat all the two songs keep rotating.
	waitFor(t, func() bool { return log.count("changed:two->one") >= 2 }, "rotation")
	if _, err := q.SetRepeatMode(RepeatModeDisabled); err != nil {
		t.Fatalf("SetRepeatMode: %v", err)
	}
	log.waitFor(t, "end")
}

func TestQueueSkip(t *testing.T) {
	p, source, conn, log := newTestPlayer(t)
	conn.interval = 5 * time.Millisecond
	q := joinedQueue(t, p)
	source.add("long", 2000)
	source.add("u2", 3)
	source.add("u3", 3)

	if _, err := q.Play(context.Background(), testSong(q, "one", "long"), nil); err != nil {
		t.Fatalf("Play one: %v", err)
	}
	if _, err := q.Play(context.Background(), testSong(q, "two", "u2"), nil); err != nil {
		t.Fatalf("Play two: %v", err)
	}
	if _, err := q.Play(context.Background(), testSong(q, "three", "u3"), nil); err != nil {
		t.Fatalf("Play three: %v", err)
	}

	next, err := q.Skip(1)
	if err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if next == nil || next.Name != "three" {
		t.Fatalf("Skip returned %v, want three", next)
	}

	log.waitFor(t, "changed:one->three")
	log.waitFor(t, "end")
	if log.count("changed:one->two") != 0 {
		t.Errorf("skipped song still played: %v", log.snapshot())
	}
}

func TestQueueSkipEmpty(t *testing.T) {
	p, _, _, _ := newTestPlayer(t)
	q := joinedQueue(t, p)
	if _, err := q.Skip(0); !errors.Is(err, ErrNothingPlaying) {
		t.Errorf("Skip on empty queue: %v, want ErrNothingPlaying", err)
	}
}

func TestQueuePlayInsertKeepsHead(t *testing.T) {
	p, source, conn, log := newTestPlayer(t)
	conn.interval = 5 * time.Millisecond
	q := joinedQueue(t, p)
	source.add("long", 2000)
	source.add("u2", 3)
	source.add("u3", 3)

	if _, err := q.Play(context.Background(), testSong(q, "one", "long"), nil); err != nil {
		t.Fatalf("Play one: %v", err)
	}
	log.waitFor(t, "first:one")
	if _, err := q.Play(context.Background(), testSong(q, "two", "u2"), nil); err != nil {
		t.Fatalf("Play two: %v", err)
	}
	// Index 0 lands right after the playing head, never in its place.
	if _, err := q.Play(context.Background(), testSong(q, "three", "u3"), &PlayOptions{Index: 0}); err != nil {
		t.Fatalf("Play three: %v", err)
	}

	songs := q.Songs()
	if len(songs) != 3 || songs[0].Name != "one" || songs[1].Name != "three" || songs[2].Name != "two" {
		t.Errorf("songs = %v, want [one three two]", songs)
	}
	if got := q.NowPlaying(); got == nil || got.Name != "one" {
		t.Errorf("now playing = %v, want one", got)
	}

	if err := q.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	log.waitFor(t, "end")
}

func TestQueuePlaylistInsertKeepsHead(t *testing.T) {
	p, source, conn, log := newTestPlayer(t)
	conn.interval = 5 * time.Millisecond
	q := joinedQueue(t, p)
	source.add("long", 2000)
	source.add("u2", 3)

	if _, err := q.Play(context.Background(), testSong(q, "one", "long"), nil); err != nil {
		t.Fatalf("Play one: %v", err)
	}
	log.waitFor(t, "first:one")
	if _, err := q.Play(context.Background(), testSong(q, "two", "u2"), nil); err != nil {
		t.Fatalf("Play two: %v", err)
	}

	pl := &Playlist{Name: "mix", Songs: []*Song{
		testSong(q, "a", "ua"),
		testSong(q, "b", "ub"),
	}}
	if _, err := q.Playlist(context.Background(), pl, &PlaylistOptions{Index: 0}); err != nil {
		t.Fatalf("Playlist: %v", err)
	}

	songs := q.Songs()
	want := []string{"one", "a", "b", "two"}
	if len(songs) != len(want) {
		t.Fatalf("songs = %v, want %v", songs, want)
	}
	for i, name := range want {
		if songs[i].Name != name {
			t.Errorf("songs[%d] = %q, want %q", i, songs[i].Name, name)
		}
	}
	if got := q.NowPlaying(); got == nil || got.Name != "one" {
		t.Errorf("now playing = %v, want one", got)
	}

	if err := q.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	log.waitFor(t, "end")
}

func TestQueueStop(t *testing.T) {
	p, source, conn, log := newTestPlayer(t)
	conn.interval = 5 * time.Millisecond
	q := joinedQueue(t, p)
	source.add("long", 2000)
	source.add("u2", 3)

	if _, err := q.Play(context.Background(), testSong(q, "one", "long"), nil); err != nil {
		t.Fatalf("Play one: %v", err)
	}
	if _, err := q.Play(context.Background(), testSong(q, "two", "u2"), nil); err != nil {
		t.Fatalf("Play two: %v", err)
	}
	if _, err := q.SetRepeatMode(RepeatModeAll); err != nil {
		t.Fatalf("SetRepeatMode: %v", err)
	}

	if err := q.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	log.waitFor(t, "end")

	if q.RepeatMode() != RepeatModeDisabled {
		t.Error("Stop did not reset repeat mode")
	}
	if len(q.Songs()) != 0 {
		t.Errorf("songs after stop: %v", q.Songs())
	}
	if log.count("changed:one->two") != 0 {
		t.Error("queue advanced after Stop")
	}
}

func TestQueueSeekRestartsStream(t *testing.T) {
	p, source, conn, log := newTestPlayer(t)
	conn.interval = 5 * time.Millisecond
	q := joinedQueue(t, p)
	source.add("long", 2000)

	var mu sync.Mutex
	var seeks []int64
	p.pipeline = func(stream io.ReadCloser, opts *FFmpegStreamOptions) (io.ReadCloser, error) {
		mu.Lock()
		seeks = append(seeks, opts.Seek)
		mu.Unlock()
		return stream, nil
	}

	if _, err := q.Play(context.Background(), testSong(q, "one", "long"), nil); err != nil {
		t.Fatalf("Play: %v", err)
	}
	log.waitFor(t, "first:one")

	song, err := q.Seek(context.Background(), 4000)
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if song.Name != "one" {
		t.Errorf("Seek returned %q", song.Name)
	}

	waitFor(t, func() bool { return source.openCount("long") >= 2 }, "seek reopen")
	mu.Lock()
	gotSeeks := append([]int64(nil), seeks...)
	mu.Unlock()
	if len(gotSeeks) != 1 || gotSeeks[0] != 4000 {
		t.Errorf("pipeline seeks = %v, want [4000]", gotSeeks)
	}
	// A seek replay must not advance or re-announce the song.
	if log.count("end") != 0 {
		t.Errorf("queue ended on seek: %v", log.snapshot())
	}
	if got := log.count("first:one"); got != 1 {
		t.Errorf("songFirst fired %d times across seek, want 1", got)
	}
	if len(q.Songs()) != 1 {
		t.Errorf("songs after seek = %v", q.Songs())
	}
}

func TestQueueSeekUnderRepeatTrack(t *testing.T) {
	p, source, conn, log := newTestPlayer(t)
	conn.interval = 5 * time.Millisecond
	q := joinedQueue(t, p)
	source.add("long", 2000)

	var mu sync.Mutex
	var seeks []int64
	p.pipeline = func(stream io.ReadCloser, opts *FFmpegStreamOptions) (io.ReadCloser, error) {
		mu.Lock()
		seeks = append(seeks, opts.Seek)
		mu.Unlock()
		return stream, nil
	}

	if _, err := q.SetRepeatMode(RepeatModeTrack); err != nil {
		t.Fatalf("SetRepeatMode: %v", err)
	}
	if _, err := q.Play(context.Background(), testSong(q, "one", "long"), nil); err != nil {
		t.Fatalf("Play: %v", err)
	}
	log.waitFor(t, "first:one")

	// An explicit seek restarts the stream at the offset even while
	// repeating.
	if _, err := q.Seek(context.Background(), 4000); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seeks) >= 1
	}, "seek reopen")
	mu.Lock()
	gotSeeks := append([]int64(nil), seeks...)
	mu.Unlock()
	if len(gotSeeks) != 1 || gotSeeks[0] != 4000 {
		t.Errorf("pipeline seeks = %v, want [4000]", gotSeeks)
	}

	// Ending the stream requeues the song. The replay starts at zero
	// while the seek point stays stored on the song.
	if _, err := q.Skip(0); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	waitFor(t, func() bool { return source.openCount("long") >= 3 }, "repeat replay")
	if got := q.Songs(); len(got) != 1 || got[0].SeekTime != 4000 {
		t.Errorf("songs after requeue = %v, want one entry with seek point 4000", got)
	}
	mu.Lock()
	replaySeeks := append([]int64(nil), seeks...)
	mu.Unlock()
	if len(replaySeeks) != 1 {
		t.Errorf("replay applied a seek: %v", replaySeeks)
	}

	if _, err := q.SetRepeatMode(RepeatModeDisabled); err != nil {
		t.Fatalf("SetRepeatMode: %v", err)
	}
	if _, err := q.Skip(0); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	log.waitFor(t, "end")
}

func TestQueueSeekPastEndSkips(t *testing.T) {
	p, source, conn, log := newTestPlayer(t)
	conn.interval = 5 * time.Millisecond
	q := joinedQueue(t, p)
	source.add("long", 2000)

	if _, err := q.Play(context.Background(), testSong(q, "one", "long"), nil); err != nil {
		t.Fatalf("Play: %v", err)
	}
	log.waitFor(t, "first:one")

	// Duration is 10s, so seeking to 15s skips instead.
	next, err := q.Seek(context.Background(), 15000)
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if next != nil {
		t.Errorf("Seek past end returned %v, want nil", next)
	}
	log.waitFor(t, "end")
}

func TestQueueSeekNothingPlaying(t *testing.T) {
	p, _, _, _ := newTestPlayer(t)
	q := joinedQueue(t, p)
	if _, err := q.Seek(context.Background(), 1000); !errors.Is(err, ErrNothingPlaying) {
		t.Errorf("Seek on idle queue: %v, want ErrNothingPlaying", err)
	}
}

func TestQueueEvictDeadHead(t *testing.T) {
	p, _, _, log := newTestPlayer(t)
	q := joinedQueue(t, p)

	song := testSong(q, "broken", "missing")
	_, err := q.Play(context.Background(), song, nil)
	if !errors.Is(err, ErrSearchNull) {
		t.Fatalf("Play dead song: %v, want ErrSearchNull", err)
	}
	if song.Name != forcefullyRemovedName {
		t.Errorf("song name = %q, want sentinel", song.Name)
	}
	if log.count("changed:"+forcefullyRemovedName+"->"+forcefullyRemovedName) != 1 {
		t.Errorf("events = %v, want sentinel songChanged", log.snapshot())
	}
}

func TestQueueEvictAdvancesToNext(t *testing.T) {
	p, source, conn, log := newTestPlayer(t)
	conn.interval = 5 * time.Millisecond
	q := joinedQueue(t, p)
	source.add("long", 2000)
	source.add("u3", 3)

	if _, err := q.Play(context.Background(), testSong(q, "one", "long"), nil); err != nil {
		t.Fatalf("Play one: %v", err)
	}
	if _, err := q.Play(context.Background(), testSong(q, "broken", "missing"), nil); err != nil {
		t.Fatalf("Play broken: %v", err)
	}
	if _, err := q.Play(context.Background(), testSong(q, "three", "u3"), nil); err != nil {
		t.Fatalf("Play three: %v", err)
	}

	if _, err := q.Skip(0); err != nil {
		t.Fatalf("Skip: %v", err)
	}

	// The broken song is evicted and playback lands on the third.
	log.waitFor(t, "changed:broken->three")
	log.waitFor(t, "end")
}

func TestQueueShuffleKeepsHead(t *testing.T) {
	p, _, _, _ := newTestPlayer(t)
	q := joinedQueue(t, p)
	for i := 0; i < 10; i++ {
		q.songs = append(q.songs, testSong(q, fmt.Sprintf("s%d", i), fmt.Sprintf("u%d", i)))
	}

	shuffled, err := q.Shuffle()
	if err != nil {
		t.Fatalf("Shuffle: %v", err)
	}
	if shuffled[0].Name != "s0" {
		t.Errorf("head after shuffle = %q, want s0", shuffled[0].Name)
	}
	if len(shuffled) != 10 {
		t.Errorf("len = %d, want 10", len(shuffled))
	}
	seen := make(map[string]bool)
	for _, s := range shuffled {
		seen[s.Name] = true
	}
	for i := 0; i < 10; i++ {
		if !seen[fmt.Sprintf("s%d", i)] {
			t.Errorf("song s%d lost in shuffle", i)
		}
	}
}

func TestQueueRemove(t *testing.T) {
	p, _, _, _ := newTestPlayer(t)
	q := joinedQueue(t, p)
	q.songs = []*Song{testSong(q, "a", "ua"), testSong(q, "b", "ub"), testSong(q, "c", "uc")}

	song, err := q.Remove(1)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if song.Name != "b" {
		t.Errorf("removed %q, want b", song.Name)
	}
	if got := q.Songs(); len(got) != 2 || got[1].Name != "c" {
		t.Errorf("songs after remove = %v", got)
	}

	if _, err := q.Remove(5); !errors.Is(err, ErrUnknownSong) {
		t.Errorf("Remove out of range: %v, want ErrUnknownSong", err)
	}
}

func TestQueueClear(t *testing.T) {
	p, _, _, _ := newTestPlayer(t)
	q := joinedQueue(t, p)
	q.songs = []*Song{testSong(q, "a", "ua"), testSong(q, "b", "ub"), testSong(q, "c", "uc")}

	if err := q.ClearQueue(); err != nil {
		t.Fatalf("ClearQueue: %v", err)
	}
	if got := q.Songs(); len(got) != 1 || got[0].Name != "a" {
		t.Errorf("songs after clear = %v", got)
	}
}

func TestQueueSetRepeatMode(t *testing.T) {
	p, _, _, _ := newTestPlayer(t)
	q := joinedQueue(t, p)

	changed, err := q.SetRepeatMode(RepeatModeTrack)
	if err != nil || !changed {
		t.Errorf("SetRepeatMode(track) = %v, %v", changed, err)
	}
	changed, err = q.SetRepeatMode(RepeatModeTrack)
	if err != nil || changed {
		t.Errorf("SetRepeatMode same mode = %v, %v, want false", changed, err)
	}
	if _, err := q.SetRepeatMode(RepeatMode(9)); !errors.Is(err, ErrUnknownRepeatMode) {
		t.Errorf("SetRepeatMode(9): %v, want ErrUnknownRepeatMode", err)
	}
}

func TestQueueVolume(t *testing.T) {
	p, _, _, _ := newTestPlayer(t)
	q := p.CreateQueue(snowflake.ID(1))

	if err := q.SetVolume(50); !errors.Is(err, ErrNoVoiceConnection) {
		t.Errorf("SetVolume before join: %v, want ErrNoVoiceConnection", err)
	}
	if err := q.Join(context.Background(), snowflake.ID(2)); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := q.SetVolume(50); err != nil {
		t.Fatalf("SetVolume: %v", err)
	}
	if got := q.Volume(); got != 50 {
		t.Errorf("Volume = %d, want 50", got)
	}
}

func TestQueuePause(t *testing.T) {
	p, source, conn, log := newTestPlayer(t)
	conn.interval = 5 * time.Millisecond
	q := joinedQueue(t, p)
	source.add("long", 2000)

	if err := q.SetPaused(true); !errors.Is(err, ErrNothingPlaying) {
		t.Errorf("SetPaused while idle: %v, want ErrNothingPlaying", err)
	}

	if _, err := q.Play(context.Background(), testSong(q, "one", "long"), nil); err != nil {
		t.Fatalf("Play: %v", err)
	}
	log.waitFor(t, "first:one")

	if err := q.SetPaused(true); err != nil {
		t.Fatalf("SetPaused: %v", err)
	}
	if !q.Paused() {
		t.Error("queue not paused")
	}
	if err := q.SetPaused(false); err != nil {
		t.Fatalf("SetPaused(false): %v", err)
	}
	if q.Paused() {
		t.Error("queue still paused")
	}
}

func TestQueueProgressBar(t *testing.T) {
	p, source, conn, log := newTestPlayer(t)
	conn.interval = 5 * time.Millisecond
	q := joinedQueue(t, p)
	source.add("long", 2000)

	if _, err := q.CreateProgressBar(20); !errors.Is(err, ErrNothingPlaying) {
		t.Errorf("progress bar while idle: %v, want ErrNothingPlaying", err)
	}

	if _, err := q.Play(context.Background(), testSong(q, "one", "long"), nil); err != nil {
		t.Fatalf("Play: %v", err)
	}
	log.waitFor(t, "first:one")

	bar, err := q.CreateProgressBar(20)
	if err != nil {
		t.Fatalf("CreateProgressBar: %v", err)
	}
	if !strings.Contains(bar, "🔘") || !strings.Contains(bar, "00:00:10") {
		t.Errorf("bar = %q", bar)
	}
}

func TestQueuePlaylist(t *testing.T) {
	p, source, _, log := newTestPlayer(t)
	q := joinedQueue(t, p)
	source.add("u1", 3)
	source.add("u2", 3)
	source.add("u3", 3)

	pl := &Playlist{Name: "mix", Songs: []*Song{
		testSong(q, "one", "u1"),
		testSong(q, "two", "u2"),
		testSong(q, "three", "u3"),
	}}
	got, err := q.Playlist(context.Background(), pl, nil)
	if err != nil {
		t.Fatalf("Playlist: %v", err)
	}
	if got.Name != "mix" {
		t.Errorf("playlist name = %q", got.Name)
	}

	log.waitFor(t, "end")
	if log.count("playlist:mix") != 1 {
		t.Errorf("events = %v, want one playlist add", log.snapshot())
	}
	if log.count("first:one") != 1 {
		t.Errorf("songFirst for playlist head fired %d times", log.count("first:one"))
	}
	if log.count("changed:one->two") != 1 || log.count("changed:two->three") != 1 {
		t.Errorf("playlist did not advance in order: %v", log.snapshot())
	}
}

func TestQueueLeaveDestroys(t *testing.T) {
	p, _, conn, log := newTestPlayer(t)
	q := joinedQueue(t, p)

	q.Leave(context.Background())

	if !q.Destroyed() {
		t.Error("queue not destroyed after Leave")
	}
	if !conn.closed {
		t.Error("voice connection not closed")
	}
	if p.HasQueue(snowflake.ID(1)) {
		t.Error("player still tracks destroyed queue")
	}
	if log.count("destroyed") != 1 {
		t.Errorf("destroyed fired %d times", log.count("destroyed"))
	}
}

func TestQueueImmediateLeaveRechecksPlayback(t *testing.T) {
	p, source, conn, log := newTestPlayer(t)
	conn.interval = 5 * time.Millisecond
	q := joinedQueue(t, p)
	source.add("long", 2000)

	if _, err := q.Play(context.Background(), testSong(q, "one", "long"), nil); err != nil {
		t.Fatalf("Play: %v", err)
	}
	log.waitFor(t, "first:one")

	// A zero-timeout leave must back off when playback is active.
	q.scheduleLeave(0)
	time.Sleep(50 * time.Millisecond)
	if q.Destroyed() {
		t.Fatal("immediate leave destroyed a playing queue")
	}
	if log.count("destroyed") != 0 {
		t.Errorf("events = %v, want no destroy", log.snapshot())
	}

	if err := q.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	log.waitFor(t, "end")

	// Once idle it goes through.
	q.scheduleLeave(0)
	log.waitFor(t, "destroyed")
	if !q.Destroyed() {
		t.Error("idle queue not destroyed by immediate leave")
	}
}

func TestQueueDestroyedRejectsEverything(t *testing.T) {
	p, _, _, _ := newTestPlayer(t)
	q := joinedQueue(t, p)
	q.Leave(context.Background())

	if _, err := q.Play(context.Background(), testSong(q, "x", "u"), nil); !errors.Is(err, ErrQueueDestroyed) {
		t.Errorf("Play: %v", err)
	}
	if _, err := q.Playlist(context.Background(), &Playlist{}, nil); !errors.Is(err, ErrQueueDestroyed) {
		t.Errorf("Playlist: %v", err)
	}
	if _, err := q.Skip(0); !errors.Is(err, ErrQueueDestroyed) {
		t.Errorf("Skip: %v", err)
	}
	if err := q.Stop(); !errors.Is(err, ErrQueueDestroyed) {
		t.Errorf("Stop: %v", err)
	}
	if _, err := q.Seek(context.Background(), 0); !errors.Is(err, ErrQueueDestroyed) {
		t.Errorf("Seek: %v", err)
	}
	if _, err := q.Shuffle(); !errors.Is(err, ErrQueueDestroyed) {
		t.Errorf("Shuffle: %v", err)
	}
	if err := q.SetVolume(10); !errors.Is(err, ErrQueueDestroyed) {
		t.Errorf("SetVolume: %v", err)
	}
	if err := q.SetPaused(true); !errors.Is(err, ErrQueueDestroyed) {
		t.Errorf("SetPaused: %v", err)
	}
	if err := q.Join(context.Background(), snowflake.ID(2)); !errors.Is(err, ErrQueueDestroyed) {
		t.Errorf("Join: %v", err)
	}
	if q.NowPlaying() != nil {
		t.Error("NowPlaying on destroyed queue")
	}
}

func TestPlayerQueueLifecycle(t *testing.T) {
	p, _, _, _ := newTestPlayer(t)

	q := p.CreateQueue(snowflake.ID(7))
	if p.CreateQueue(snowflake.ID(7)) != q {
		t.Error("CreateQueue did not reuse the live queue")
	}
	if p.GetQueue(snowflake.ID(7)) != q {
		t.Error("GetQueue mismatch")
	}
	if !p.HasQueue(snowflake.ID(7)) {
		t.Error("HasQueue = false for live queue")
	}
	if len(p.Queues()) != 1 {
		t.Errorf("Queues = %v", p.Queues())
	}

	p.DeleteQueue(snowflake.ID(7))
	if !q.Destroyed() {
		t.Error("DeleteQueue did not destroy the queue")
	}
	if p.HasQueue(snowflake.ID(7)) {
		t.Error("HasQueue = true after delete")
	}
	if p.CreateQueue(snowflake.ID(7)) == q {
		t.Error("CreateQueue returned the destroyed queue")
	}
}
