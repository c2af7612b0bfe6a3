package redis

import "testing"

func TestGameIDFromTimerKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
		ok   bool
	}{
		{"game:abc-123:timer", "abc-123", true},
		{timerKey("g1"), "g1", true},
		{"game::timer", "", false},
		{"game:abc:state", "", false},
		{"other:abc:timer", "", false},
	}
	for _, tt := range tests {
		got, ok := GameIDFromTimerKey(tt.key)
		if got != tt.want || ok != tt.ok {
			t.Errorf("GameIDFromTimerKey(%q) = %q, %v; want %q, %v", tt.key, got, ok, tt.want, tt.ok)
		}
	}
}
