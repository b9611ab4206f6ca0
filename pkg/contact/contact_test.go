package contact

import "testing"

func TestIsE164(t *testing.T) {
	cases := map[string]bool{
		"+15555550123": true,
		"+447911123456": true,
		"5555550123":    false, // missing +
		"+":             false,
		"+1555555012a":  false, // non-digit
		"":               false,
	}
	for phone, want := range cases {
		if got := IsE164(phone); got != want {
			t.Errorf("IsE164(%q) = %v, want %v", phone, got, want)
		}
	}
}
