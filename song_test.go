package dmp

import "testing"

func TestSongMilliseconds(t *testing.T) {
	s := newSong(&RawSong{Name: "x", Duration: "00:03:20"}, nil)
	if got := s.Milliseconds(); got != 200000 {
		t.Errorf("Milliseconds = %d, want 200000", got)
	}

	live := newSong(&RawSong{Name: "stream", Duration: "00:00:00", IsLive: true}, nil)
	if got := live.Milliseconds(); got != 0 {
		t.Errorf("live Milliseconds = %d, want 0", got)
	}
}

func TestSongString(t *testing.T) {
	s := newSong(&RawSong{Name: "Title", Author: "Artist"}, nil)
	if got := s.String(); got != "Title | Artist" {
		t.Errorf("String = %q", got)
	}
}

func TestRepeatModeString(t *testing.T) {
	cases := []struct {
		mode RepeatMode
		want string
	}{
		{RepeatModeDisabled, "disabled"},
		{RepeatModeTrack, "track"},
		{RepeatModeAll, "all"},
		{RepeatMode(9), "unknown"},
	}
	for _, c := range cases {
		if got := c.mode.String(); got != c.want {
			t.Errorf("String(%d) = %q, want %q", c.mode, got, c.want)
		}
	}
}
