package publisher

import "testing"

func TestSubjectToken(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"100040", "100040"},
		{"7427", "7427"},
		{"A Line", "A_Line"},
		{"route.40", "route_40"},
		{"a/b", "a_b"},
		{"*", "_"},
		{">", "_"},
		{"", "_"},
		{"  ", "_"},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := subjectToken(tc.in); got != tc.expected {
				t.Errorf("subjectToken(%q) = %q, expected %q", tc.in, got, tc.expected)
			}
		})
	}
}
