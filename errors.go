package dmp

import "errors"

// Errors returned by queue and player operations. Callers can match them
// with errors.Is; the player also forwards them to the OnError handler.
var (
	// ErrQueueDestroyed is returned by every operation on a queue that
	// has already left the voice channel or been deleted.
	ErrQueueDestroyed = errors.New("queue destroyed")

	// ErrUnknownVoice is returned when the requested voice channel does
	// not exist in the cache.
	ErrUnknownVoice = errors.New("unknown voice channel")

	// ErrChannelTypeInvalid is returned when the requested channel exists
	// but is not a voice or stage channel.
	ErrChannelTypeInvalid = errors.New("channel type invalid")

	// ErrVoiceConnection is returned when the gateway voice handshake
	// does not complete in time.
	ErrVoiceConnection = errors.New("voice connection failed")

	// ErrNoVoiceConnection is returned by playback operations on a queue
	// that never joined a voice channel.
	ErrNoVoiceConnection = errors.New("no voice connection")

	// ErrUnknownSong is returned when a queue index is out of range.
	ErrUnknownSong = errors.New("unknown song")

	// ErrNothingPlaying is returned by operations that require an active
	// track, such as seeking or pausing.
	ErrNothingPlaying = errors.New("nothing playing")

	// ErrUnknownRepeatMode is returned for repeat modes outside the
	// defined set.
	ErrUnknownRepeatMode = errors.New("unknown repeat mode")

	// ErrInvalidPlaylist is returned when playlist resolution yields no
	// playable songs.
	ErrInvalidPlaylist = errors.New("invalid playlist")

	// ErrSearchNull is returned when search or stream resolution produces
	// no usable result.
	ErrSearchNull = errors.New("search returned nothing")
)
