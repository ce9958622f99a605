package dmp

import (
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// FFmpegPath is the ffmpeg binary invoked for transcoding. Override it
// when ffmpeg is not on PATH.
var FFmpegPath = "ffmpeg"

// FFmpegStreamOptions shape a single transcode invocation.
type FFmpegStreamOptions struct {
	// Filters are raw -af fragments, joined with commas.
	Filters []string
	// Seek is the start offset in milliseconds.
	Seek int64
	// Volume is the playback volume in percent. 100 and below-zero
	// values are passed through untouched.
	Volume int
}

// FFmpegArgs returns the base output arguments shared by every
// transcode: raw opus in an ogg container at discord's sample rate.
func FFmpegArgs() []string {
	return []string{
		"-analyzeduration", "0",
		"-loglevel", "0",
		"-acodec", "libopus",
		"-f", "opus",
		"-ar", "48000",
		"-ac", "2",
	}
}

// BuildStreamArgs assembles the option-dependent argument list: filter
// fragments first, then the seek offset, then the base output arguments.
func BuildStreamArgs(opts *FFmpegStreamOptions) []string {
	var args []string
	if opts != nil {
		frags := opts.Filters
		if opts.Volume >= 0 && opts.Volume != 100 {
			frags = append(append([]string{}, frags...), fmt.Sprintf("volume=%0.2f", float64(opts.Volume)/100))
		}
		if len(frags) > 0 {
			args = append(args, "-af", strings.Join(frags, ","))
		}
		if opts.Seek > 0 {
			args = append(args, "-ss", fmt.Sprintf("%.3f", float64(opts.Seek)/1000))
		}
	}
	return append(args, FFmpegArgs()...)
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	source io.Closer
}

func (f *ffmpegStream) Read(p []byte) (int, error) {
	return f.stdout.Read(p)
}

func (f *ffmpegStream) Close() error {
	if f.cmd.Process != nil {
		_ = f.cmd.Process.Kill()
	}
	_ = f.cmd.Wait()
	if f.source != nil {
		_ = f.source.Close()
	}
	return f.stdout.Close()
}

// CreateFFmpegStream pipes an existing audio stream through ffmpeg,
// applying the given filters and seek offset. The returned stream owns
// both the process and the source.
func CreateFFmpegStream(stream io.ReadCloser, opts *FFmpegStreamOptions) (io.ReadCloser, error) {
	args := append([]string{"-i", "pipe:0"}, BuildStreamArgs(opts)...)
	args = append(args, "pipe:1")

	cmd := exec.Command(FFmpegPath, args...)
	cmd.Stdin = stream

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &ffmpegStream{cmd: cmd, stdout: stdout, source: stream}, nil
}

// OpenFFmpegInput transcodes a URL or local path directly. Network
// inputs get reconnect flags so transient drops do not kill playback.
func OpenFFmpegInput(input string, opts *FFmpegStreamOptions) (io.ReadCloser, error) {
	args := []string{"-i", input}
	if strings.HasPrefix(input, "http") {
		args = append([]string{
			"-reconnect", "1",
			"-reconnect_at_eof", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "2",
			"-user_agent", "Mozilla/5.0",
		}, args...)
	}
	args = append(args, BuildStreamArgs(opts)...)
	args = append(args, "pipe:1")

	cmd := exec.Command(FFmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &ffmpegStream{cmd: cmd, stdout: stdout}, nil
}
