package worker

import "testing"

func TestLoyaltyPoints(t *testing.T) {
	cases := []struct {
		total string
		want  int64
	}{
		{"", 0},
		{"0", 0},
		{"100.00", 100},
		{"59.99", 59},
		{"-10", 0},
		{"not-a-number", 0},
	}
	for _, tc := range cases {
		if got := loyaltyPoints(tc.total); got != tc.want {
			t.Fatalf("loyaltyPoints(%q) = %d, want %d", tc.total, got, tc.want)
		}
	}
}
