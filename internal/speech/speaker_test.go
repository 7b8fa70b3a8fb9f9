package speech

import "testing"

func TestNewEspeakClampsAmplitude(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{80, 80},
		{0, 0},
		{100, 100},
		{-5, 0},
		{150, 100},
	}
	for _, tc := range cases {
		if got := NewEspeak(tc.in).Volume; got != tc.want {
			t.Errorf("NewEspeak(%d).Volume = %d, want %d", tc.in, got, tc.want)
		}
	}
}
