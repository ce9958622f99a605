package dmp

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// MsToTime formats a millisecond duration as zero-padded HH:MM:SS.
func MsToTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	seconds := ms / 1000
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds%60)
}

// TimeToMs parses a colon-separated duration such as "02:30" or
// "01:02:30" into milliseconds. Malformed segments count as zero.
func TimeToMs(t string) int64 {
	var ms int64
	parts := strings.Split(t, ":")
	multiplier := int64(1000)
	for i := len(parts) - 1; i >= 0; i-- {
		n, err := strconv.ParseInt(strings.TrimSpace(parts[i]), 10, 64)
		if err != nil {
			n = 0
		}
		ms += n * multiplier
		multiplier *= 60
	}
	return ms
}

// ShuffleSongs returns a new slice with the songs in random order. The
// input slice is left untouched.
func ShuffleSongs(songs []*Song) []*Song {
	out := make([]*Song, len(songs))
	copy(out, songs)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
