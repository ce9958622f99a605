// Package dmp implements per-guild music queues over discord voice:
// track and playlist resolution, an ffmpeg filter pipeline, and a queue
// state machine with repeat, shuffle, and seek.
package dmp

import (
	"context"
	"io"
	"sync"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/snowflake/v2"
)

// PipelineBuilder wraps a raw audio stream in a transcode. Replaceable
// in tests; the default shells out to ffmpeg.
type PipelineBuilder func(stream io.ReadCloser, opts *FFmpegStreamOptions) (io.ReadCloser, error)

// Player owns one queue per guild and the shared provider stack.
type Player struct {
	client    *bot.Client
	connector Connector
	resolver  *Resolver
	source    StreamSource
	pipeline  PipelineBuilder
	options   PlayerOptions

	// Handlers receive queue lifecycle events.
	Handlers EventHandlers

	mu     sync.Mutex
	queues map[snowflake.ID]*Queue
}

// NewPlayer builds a player on top of a gateway client. A nil options
// pointer applies the defaults.
func NewPlayer(client *bot.Client, resolver *Resolver, source StreamSource, options *PlayerOptions) *Player {
	opts := DefaultPlayerOptions()
	if options != nil {
		opts = *options
	}
	if opts.Volume == 0 {
		opts.Volume = 100
	}
	p := &Player{
		client:   client,
		resolver: resolver,
		source:   source,
		pipeline: CreateFFmpegStream,
		options:  opts,
		queues:   make(map[snowflake.ID]*Queue),
	}
	if client != nil {
		p.connector = &gatewayConnector{client: client}
	}
	return p
}

// Client returns the gateway client the player was built on.
func (p *Player) Client() *bot.Client {
	return p.client
}

// CreateQueue returns the guild's queue, creating it on first use.
func (p *Player) CreateQueue(guildID snowflake.ID) *Queue {
	p.mu.Lock()
	defer p.mu.Unlock()
	if q, ok := p.queues[guildID]; ok && !q.destroyed {
		return q
	}
	q := newQueue(p, guildID, p.options)
	p.queues[guildID] = q
	return q
}

// GetQueue returns the guild's queue, nil when none exists.
func (p *Player) GetQueue(guildID snowflake.ID) *Queue {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queues[guildID]
}

// HasQueue reports whether the guild has a live queue.
func (p *Player) HasQueue(guildID snowflake.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.queues[guildID]
	return ok && !q.destroyed
}

// Queues returns a snapshot of every live queue.
func (p *Player) Queues() []*Queue {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Queue, 0, len(p.queues))
	for _, q := range p.queues {
		out = append(out, q)
	}
	return out
}

// DeleteQueue destroys the guild's queue if one exists.
func (p *Player) DeleteQueue(guildID snowflake.ID) {
	p.mu.Lock()
	q := p.queues[guildID]
	p.mu.Unlock()
	if q != nil {
		q.Leave(context.Background())
	}
}

func (p *Player) removeQueue(guildID snowflake.ID) {
	p.mu.Lock()
	delete(p.queues, guildID)
	p.mu.Unlock()
}
