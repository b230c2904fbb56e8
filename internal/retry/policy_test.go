package retry

import "testing"

func TestPolicyNext(t *testing.T) {
	p := NewPolicy(3)

	tests := []struct {
		name     string
		attempts int
		want     Outcome
	}{
		{"first failure", 0, Outcome{Attempts: 1}},
		{"second failure", 1, Outcome{Attempts: 2}},
		{"third failure is terminal", 2, Outcome{Attempts: 3, Terminal: true}},
		{"past the budget stays terminal", 5, Outcome{Attempts: 6, Terminal: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Next(tt.attempts); got != tt.want {
				t.Errorf("Next(%d) = %+v, want %+v", tt.attempts, got, tt.want)
			}
		})
	}
}

func TestSingleAttemptPolicy(t *testing.T) {
	if got := NewPolicy(1).Next(0); !got.Terminal {
		t.Errorf("Next(0) = %+v, want terminal with a budget of one", got)
	}
}

func TestPolicyExhausted(t *testing.T) {
	p := NewPolicy(3)
	for attempts, want := range map[int]bool{0: false, 2: false, 3: true, 4: true} {
		if got := p.Exhausted(attempts); got != want {
			t.Errorf("Exhausted(%d) = %v, want %v", attempts, got, want)
		}
	}
}

func TestZeroPolicyUsesDefault(t *testing.T) {
	var p Policy
	if !p.Exhausted(DefaultMaxAttempts) || p.Exhausted(DefaultMaxAttempts-1) {
		t.Error("zero policy should fall back to DefaultMaxAttempts")
	}
	if NewPolicy(-1).MaxAttempts != DefaultMaxAttempts {
		t.Error("NewPolicy should clamp non-positive budgets")
	}
}
