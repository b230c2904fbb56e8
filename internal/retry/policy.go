// Package retry holds the bounded attempt policy shared by outbound
// integrations that persist their attempt counter between ticks.
package retry

// DefaultMaxAttempts is the attempt budget before a call is given up on.
const DefaultMaxAttempts = 3

// Policy is a bounded retry budget. Attempts are counted by the caller and
// stored with the record, so the policy itself is stateless.
type Policy struct {
	MaxAttempts int
}

func NewPolicy(maxAttempts int) Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return Policy{MaxAttempts: maxAttempts}
}

// Outcome is the attempt counter after a failed call and whether the record
// must now move to its terminal state.
type Outcome struct {
	Attempts int
	Terminal bool
}

// Next spends one attempt for a failure observed after attempts prior
// failures. Every failure counts the same; only the budget ends retries.
func (p Policy) Next(attempts int) Outcome {
	n := attempts + 1
	return Outcome{
		Attempts: n,
		Terminal: p.Exhausted(n),
	}
}

// Exhausted reports whether no attempts remain.
func (p Policy) Exhausted(attempts int) bool {
	return attempts >= p.max()
}

func (p Policy) max() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}
