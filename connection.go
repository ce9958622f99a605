package dmp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/snowflake/v2"
)

// VoiceConn is the slice of a gateway voice connection the player needs.
// disgo's voice.Conn satisfies it.
type VoiceConn interface {
	Open(ctx context.Context, channelID snowflake.ID, selfMute bool, selfDeaf bool) error
	Close(ctx context.Context)
	SetOpusFrameProvider(provider voice.OpusFrameProvider)
	SetSpeaking(ctx context.Context, flags voice.SpeakingFlags) error
}

// Connector establishes voice connections for queues. The default
// implementation lives in the bot layer and wraps disgo's VoiceManager.
type Connector interface {
	Connect(ctx context.Context, guildID, channelID snowflake.ID, deafen bool) (VoiceConn, error)
}

// connectTimeout bounds the gateway voice handshake.
const connectTimeout = 15 * time.Second

// gatewayConnector connects through disgo's voice manager, validating
// the target channel against the cache first.
type gatewayConnector struct {
	client *bot.Client
}

func (g *gatewayConnector) Connect(ctx context.Context, guildID, channelID snowflake.ID, deafen bool) (VoiceConn, error) {
	channel, ok := g.client.Caches.Channel(channelID)
	if !ok {
		return nil, ErrUnknownVoice
	}
	switch channel.Type() {
	case discord.ChannelTypeGuildVoice, discord.ChannelTypeGuildStageVoice:
	default:
		return nil, ErrChannelTypeInvalid
	}

	conn := g.client.VoiceManager.CreateConn(guildID)
	openCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := conn.Open(openCtx, channelID, false, deafen); err != nil {
		conn.Close(context.Background())
		return nil, fmt.Errorf("%w: %v", ErrVoiceConnection, err)
	}
	return conn, nil
}

// AudioResource pairs a song with its open audio stream.
type AudioResource struct {
	Song   *Song
	stream io.ReadCloser
}

func (r *AudioResource) close() {
	if r.stream != nil {
		_ = r.stream.Close()
	}
}

// StreamConnection drives playback over one voice connection. It owns
// the opus provider and reports stream lifecycle through callbacks.
type StreamConnection struct {
	conn VoiceConn

	mu       sync.Mutex
	provider *opusProvider
	resource *AudioResource
	paused   bool
	volume   int

	onStart func(res *AudioResource)
	onEnd   func(res *AudioResource)
	onError func(err error)
}

func newStreamConnection(conn VoiceConn, volume int) *StreamConnection {
	return &StreamConnection{conn: conn, volume: volume}
}

// PlayAudioStream replaces whatever is playing with the given resource.
// A replaced stream is torn down without firing the end callback, so a
// seek replay does not advance the queue.
func (c *StreamConnection) PlayAudioStream(ctx context.Context, res *AudioResource) error {
	c.mu.Lock()
	if old := c.provider; old != nil {
		old.cancel()
	}
	p := newOpusProvider(res.stream)
	c.provider = p
	c.resource = res
	c.mu.Unlock()

	c.conn.SetOpusFrameProvider(p)
	if err := c.conn.SetSpeaking(ctx, voice.SpeakingFlagMicrophone); err != nil {
		return err
	}

	go c.watch(p, res)
	return nil
}

// watch waits for the provider lifecycle and fires the callbacks. A
// cancelled provider (replaced by a newer stream) ends silently.
func (c *StreamConnection) watch(p *opusProvider, res *AudioResource) {
	select {
	case <-p.started:
		if c.onStart != nil {
			c.onStart(res)
		}
	case <-p.done:
	}

	<-p.done
	res.close()

	c.mu.Lock()
	current := c.provider == p
	if current {
		c.provider = nil
		c.resource = nil
	}
	c.mu.Unlock()

	if p.replaced() {
		return
	}
	if current {
		c.conn.SetOpusFrameProvider(nil)
		_ = c.conn.SetSpeaking(context.TODO(), 0)
	}
	if err := p.err(); err != nil && c.onError != nil {
		c.onError(err)
	}
	if c.onEnd != nil {
		c.onEnd(res)
	}
}

// Stop ends the current stream as if it had drained, firing the end
// callback. It is a no-op when nothing is playing.
func (c *StreamConnection) Stop() {
	c.mu.Lock()
	p := c.provider
	c.mu.Unlock()
	if p != nil {
		p.finish()
	}
}

// SetPaused freezes or resumes frame delivery.
func (c *StreamConnection) SetPaused(paused bool) {
	c.mu.Lock()
	p := c.provider
	c.paused = paused
	c.mu.Unlock()
	if p != nil {
		p.setPaused(paused)
	}
}

// Paused reports whether frame delivery is frozen.
func (c *StreamConnection) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// SetVolume records the playback volume in percent. It takes effect the
// next time a stream is built.
func (c *StreamConnection) SetVolume(volume int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = volume
}

// Volume returns the recorded playback volume in percent.
func (c *StreamConnection) Volume() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// Resource returns the resource currently streaming, nil when idle.
func (c *StreamConnection) Resource() *AudioResource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resource
}

// PlaybackPosition returns how much of the current stream has been
// delivered, derived from the opus frame count.
func (c *StreamConnection) PlaybackPosition() time.Duration {
	c.mu.Lock()
	p := c.provider
	c.mu.Unlock()
	if p == nil {
		return 0
	}
	return p.position()
}

// Leave tears down the voice connection.
func (c *StreamConnection) Leave(ctx context.Context) {
	c.mu.Lock()
	p := c.provider
	c.provider = nil
	c.resource = nil
	c.mu.Unlock()
	if p != nil {
		p.cancel()
	}
	c.conn.Close(ctx)
}

// opusProvider parses ogg/opus pages into 20ms opus frames for the voice
// gateway, gating delivery while paused.
type opusProvider struct {
	reader    *bufio.Reader
	header    []byte
	segBuf    []byte
	packetBuf bytes.Buffer
	queue     [][]byte

	mu         sync.Mutex
	pausedCond *sync.Cond
	paused     bool
	frames     int64
	readErr    error
	canceled   bool

	started   chan struct{}
	startOnce sync.Once
	done      chan struct{}
	doneOnce  sync.Once
}

func newOpusProvider(r io.Reader) *opusProvider {
	p := &opusProvider{
		reader:  bufio.NewReaderSize(r, 16384),
		header:  make([]byte, 27),
		segBuf:  make([]byte, 255),
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
	p.pausedCond = sync.NewCond(&p.mu)
	return p
}

func (p *opusProvider) Close() {}

func (p *opusProvider) finish() {
	p.doneOnce.Do(func() {
		close(p.done)
	})
	p.setPaused(false)
}

// cancel marks the provider as replaced so the watcher skips the end
// callback, then releases it.
func (p *opusProvider) cancel() {
	p.mu.Lock()
	p.canceled = true
	p.mu.Unlock()
	p.finish()
}

func (p *opusProvider) replaced() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canceled
}

func (p *opusProvider) err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readErr == io.EOF || p.readErr == io.ErrUnexpectedEOF {
		return nil
	}
	return p.readErr
}

func (p *opusProvider) setPaused(paused bool) {
	p.mu.Lock()
	p.paused = paused
	p.mu.Unlock()
	p.pausedCond.Broadcast()
}

func (p *opusProvider) position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Duration(p.frames) * 20 * time.Millisecond
}

// ProvideOpusFrame implements voice.OpusFrameProvider. The gateway calls
// it once per 20ms frame slot.
func (p *opusProvider) ProvideOpusFrame() ([]byte, error) {
	p.mu.Lock()
	for p.paused && !p.canceled {
		p.pausedCond.Wait()
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil, io.EOF
	default:
	}

	frame, err := p.nextFrame()
	if err != nil {
		p.mu.Lock()
		p.readErr = err
		p.mu.Unlock()
		p.finish()
		return nil, err
	}

	p.startOnce.Do(func() {
		close(p.started)
	})
	p.mu.Lock()
	p.frames++
	p.mu.Unlock()
	return frame, nil
}

// nextFrame parses forward to the next opus packet: find an "OggS" page
// boundary, read the segment table, then concatenate segments until one
// is shorter than 255 bytes. OpusHead and OpusTags packets are skipped.
func (p *opusProvider) nextFrame() ([]byte, error) {
	if len(p.queue) > 0 {
		frame := p.queue[0]
		p.queue = p.queue[1:]
		return frame, nil
	}

	for {
		sig, err := p.reader.Peek(4)
		if err != nil {
			return nil, err
		}

		if string(sig) != "OggS" {
			_, _ = p.reader.Discard(1)
			continue
		}
		if _, err := io.ReadFull(p.reader, p.header); err != nil {
			return nil, err
		}

		numSegs := int(p.header[26])
		segTable := p.segBuf[:numSegs]
		if _, err := io.ReadFull(p.reader, segTable); err != nil {
			return nil, err
		}

		for _, segLen := range segTable {
			l := int(segLen)
			if _, err := io.CopyN(&p.packetBuf, p.reader, int64(l)); err != nil {
				return nil, err
			}

			if l < 255 {
				payload := p.packetBuf.Bytes()
				frame := make([]byte, len(payload))
				copy(frame, payload)
				p.packetBuf.Reset()

				if len(frame) > 8 && (string(frame[:8]) == "OpusHead" || string(frame[:8]) == "OpusTags") {
					continue
				}
				p.queue = append(p.queue, frame)
			}
		}

		if len(p.queue) > 0 {
			frame := p.queue[0]
			p.queue = p.queue[1:]
			return frame, nil
		}
	}
}
