package dmp

import "testing"

func TestMsToTime(t *testing.T) {
	cases := []struct {
		ms   int64
		want string
	}{
		{0, "00:00:00"},
		{1000, "00:00:01"},
		{150000, "00:02:30"},
		{3600000, "01:00:00"},
		{3723000, "01:02:03"},
		{-5, "00:00:00"},
	}
	for _, c := range cases {
		if got := MsToTime(c.ms); got != c.want {
			t.Errorf("MsToTime(%d) = %q, want %q", c.ms, got, c.want)
		}
	}
}

func TestTimeToMs(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"00:00", 0},
		{"02:30", 150000},
		{"00:02:30", 150000},
		{"01:00:00", 3600000},
		{"45", 45000},
		{"bad:30", 30000},
	}
	for _, c := range cases {
		if got := TimeToMs(c.in); got != c.want {
			t.Errorf("TimeToMs(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestTimeToMsRoundTrip(t *testing.T) {
	for _, ms := range []int64{0, 1000, 90000, 3723000} {
		if got := TimeToMs(MsToTime(ms)); got != ms {
			t.Errorf("round trip %d = %d", ms, got)
		}
	}
}

func TestShuffleSongsKeepsInput(t *testing.T) {
	songs := []*Song{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}}
	out := ShuffleSongs(songs)

	if len(out) != len(songs) {
		t.Fatalf("shuffled length %d, want %d", len(out), len(songs))
	}
	if songs[0].Name != "a" || songs[3].Name != "d" {
		t.Error("input slice was mutated")
	}

	seen := make(map[string]bool)
	for _, s := range out {
		seen[s.Name] = true
	}
	for _, s := range songs {
		if !seen[s.Name] {
			t.Errorf("song %s missing after shuffle", s.Name)
		}
	}
}
