package dmp

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/snowflake/v2"
)

// oggPage builds a single ogg page holding the given packets.
func oggPage(packets ...[]byte) []byte {
	var segTable []byte
	var payload []byte
	for _, p := range packets {
		l := len(p)
		for l >= 255 {
			segTable = append(segTable, 255)
			l -= 255
		}
		segTable = append(segTable, byte(l))
		payload = append(payload, p...)
	}

	header := make([]byte, 27)
	copy(header, "OggS")
	header[26] = byte(len(segTable))
	return append(append(header, segTable...), payload...)
}

// oggStream builds a playable stream: header packets followed by data
// packets, one page per packet.
func oggStream(frames ...[]byte) io.ReadCloser {
	var buf bytes.Buffer
	buf.Write(oggPage(append([]byte("OpusHead"), 1, 2, 3)))
	buf.Write(oggPage(append([]byte("OpusTags"), 0)))
	for _, f := range frames {
		buf.Write(oggPage(f))
	}
	return io.NopCloser(&buf)
}

func nFrames(n int) [][]byte {
	frames := make([][]byte, n)
	for i := range frames {
		frames[i] = []byte{0xfc, byte(i), byte(i >> 8)}
	}
	return frames
}

// fakeVoiceConn pumps the installed provider like the gateway would.
type fakeVoiceConn struct {
	mu       sync.Mutex
	open     bool
	closed   bool
	provider voice.OpusFrameProvider
	interval time.Duration
}

func newFakeVoiceConn() *fakeVoiceConn {
	return &fakeVoiceConn{interval: time.Millisecond}
}

func (c *fakeVoiceConn) Open(ctx context.Context, channelID snowflake.ID, selfMute, selfDeaf bool) error {
	c.mu.Lock()
	c.open = true
	c.mu.Unlock()
	return nil
}

func (c *fakeVoiceConn) Close(ctx context.Context) {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeVoiceConn) SetOpusFrameProvider(p voice.OpusFrameProvider) {
	c.mu.Lock()
	c.provider = p
	c.mu.Unlock()
	if p == nil {
		return
	}
	go func() {
		for {
			if _, err := p.ProvideOpusFrame(); err != nil {
				return
			}
			time.Sleep(c.interval)
		}
	}()
}

func (c *fakeVoiceConn) SetSpeaking(ctx context.Context, flags voice.SpeakingFlags) error {
	return nil
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestOpusProviderParsesPackets(t *testing.T) {
	frames := nFrames(3)
	p := newOpusProvider(oggStream(frames...))

	for i, want := range frames {
		got, err := p.ProvideOpusFrame()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d = %v, want %v", i, got, want)
		}
	}
	if _, err := p.ProvideOpusFrame(); err == nil {
		t.Error("expected error after stream end")
	}
}

func TestOpusProviderSkipsHeaders(t *testing.T) {
	p := newOpusProvider(oggStream([]byte{0xfc, 0x01}))
	got, err := p.ProvideOpusFrame()
	if err != nil {
		t.Fatalf("ProvideOpusFrame: %v", err)
	}
	if bytes.HasPrefix(got, []byte("OpusHead")) || bytes.HasPrefix(got, []byte("OpusTags")) {
		t.Errorf("header packet leaked: %v", got)
	}
}

func TestOpusProviderLargePacket(t *testing.T) {
	// A packet spanning multiple 255-byte segments.
	big := make([]byte, 600)
	for i := range big {
		big[i] = byte(i)
	}
	p := newOpusProvider(oggStream(big))
	got, err := p.ProvideOpusFrame()
	if err != nil {
		t.Fatalf("ProvideOpusFrame: %v", err)
	}
	if !bytes.Equal(got, big) {
		t.Errorf("large packet mangled: got %d bytes, want %d", len(got), len(big))
	}
}

func TestOpusProviderResyncsOnGarbage(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("garbage-before-page")
	buf.Write(oggPage(append([]byte("OpusHead"), 1)))
	buf.Write(oggPage([]byte{0xfc, 0x02}))

	p := newOpusProvider(io.NopCloser(&buf))
	got, err := p.ProvideOpusFrame()
	if err != nil {
		t.Fatalf("ProvideOpusFrame: %v", err)
	}
	if !bytes.Equal(got, []byte{0xfc, 0x02}) {
		t.Errorf("got %v after garbage", got)
	}
}

func TestOpusProviderPosition(t *testing.T) {
	p := newOpusProvider(oggStream(nFrames(5)...))
	for i := 0; i < 5; i++ {
		if _, err := p.ProvideOpusFrame(); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	if got := p.position(); got != 100*time.Millisecond {
		t.Errorf("position = %v, want 100ms", got)
	}
}

func TestStreamConnectionLifecycle(t *testing.T) {
	conn := newFakeVoiceConn()
	sc := newStreamConnection(conn, 100)

	var mu sync.Mutex
	var started, ended bool
	sc.onStart = func(res *AudioResource) {
		mu.Lock()
		started = true
		mu.Unlock()
	}
	sc.onEnd = func(res *AudioResource) {
		mu.Lock()
		ended = true
		mu.Unlock()
	}

	song := &Song{Name: "test"}
	res := &AudioResource{Song: song, stream: oggStream(nFrames(3)...)}
	if err := sc.PlayAudioStream(context.Background(), res); err != nil {
		t.Fatalf("PlayAudioStream: %v", err)
	}

	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return started }, "stream start")
	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return ended }, "stream end")

	if sc.Resource() != nil {
		t.Error("resource should be cleared after end")
	}
}

func TestStreamConnectionStopFiresEnd(t *testing.T) {
	conn := newFakeVoiceConn()
	conn.interval = 5 * time.Millisecond
	sc := newStreamConnection(conn, 100)

	endCh := make(chan struct{})
	sc.onEnd = func(res *AudioResource) { close(endCh) }

	res := &AudioResource{Song: &Song{Name: "long"}, stream: oggStream(nFrames(500)...)}
	if err := sc.PlayAudioStream(context.Background(), res); err != nil {
		t.Fatalf("PlayAudioStream: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	sc.Stop()

	select {
	case <-endCh:
	case <-time.After(3 * time.Second):
		t.Fatal("end callback never fired after Stop")
	}
}

func TestStreamConnectionReplaceSkipsEnd(t *testing.T) {
	conn := newFakeVoiceConn()
	conn.interval = 5 * time.Millisecond
	sc := newStreamConnection(conn, 100)

	var mu sync.Mutex
	ends := 0
	sc.onEnd = func(res *AudioResource) {
		mu.Lock()
		ends++
		mu.Unlock()
	}

	first := &AudioResource{Song: &Song{Name: "first"}, stream: oggStream(nFrames(500)...)}
	if err := sc.PlayAudioStream(context.Background(), first); err != nil {
		t.Fatalf("PlayAudioStream first: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	// Replace while the first stream is still running: only the second
	// stream should report an end.
	second := &AudioResource{Song: &Song{Name: "second"}, stream: oggStream(nFrames(3)...)}
	if err := sc.PlayAudioStream(context.Background(), second); err != nil {
		t.Fatalf("PlayAudioStream second: %v", err)
	}

	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return ends > 0 }, "second stream end")
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if ends != 1 {
		t.Errorf("end fired %d times, want 1", ends)
	}
}

func TestStreamConnectionPause(t *testing.T) {
	conn := newFakeVoiceConn()
	conn.interval = 2 * time.Millisecond
	sc := newStreamConnection(conn, 100)

	endCh := make(chan struct{})
	sc.onEnd = func(res *AudioResource) { close(endCh) }

	res := &AudioResource{Song: &Song{Name: "pausable"}, stream: oggStream(nFrames(30)...)}
	if err := sc.PlayAudioStream(context.Background(), res); err != nil {
		t.Fatalf("PlayAudioStream: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	sc.SetPaused(true)
	if !sc.Paused() {
		t.Error("expected paused state")
	}
	posBefore := sc.PlaybackPosition()
	time.Sleep(30 * time.Millisecond)
	posAfter := sc.PlaybackPosition()
	// At most one frame can slip through between the pause flag and the
	// blocked pump.
	if posAfter-posBefore > 20*time.Millisecond {
		t.Errorf("position advanced while paused: %v -> %v", posBefore, posAfter)
	}

	sc.SetPaused(false)
	select {
	case <-endCh:
	case <-time.After(3 * time.Second):
		t.Fatal("stream never finished after resume")
	}
}
