package booking

import "testing"

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		mins int
	}{
		{"00:00", 0},
		{"09:00", 540},
		{"17:30", 1050},
		{"23:59", 1439},
		{" 10:15 ", 615},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", tc.in, err)
		}
		if got != tc.mins {
			t.Fatalf("ParseClock(%q) = %d, want %d", tc.in, got, tc.mins)
		}
	}

	for _, bad := range []string{"", "9", "24:00", "12:60", "ab:cd", "-1:00"} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("ParseClock(%q) should fail", bad)
		}
	}
}

func TestFormatClock(t *testing.T) {
	if got := FormatClock(540); got != "09:00" {
		t.Fatalf("FormatClock(540) = %q", got)
	}
	if got := FormatClock(1050); got != "17:30" {
		t.Fatalf("FormatClock(1050) = %q", got)
	}
}
