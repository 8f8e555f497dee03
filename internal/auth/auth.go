// Package auth verifies an accumulated credential against the system
// credential backend.
//
// Two backends exist behind one interface: direct comparison against the
// invoking account's shadow hash, and delegation to the PAM stack. Both
// expose exactly two outcomes; nothing about why an attempt failed is
// observable from outside.
package auth

// Verdict is the two-valued result of a verification attempt.
type Verdict int

const (
	// Incorrect covers every failed attempt uniformly: wrong secret,
	// backend hiccup, undecodable input. No further granularity leaks.
	Incorrect Verdict = iota

	// Correct means the typed secret matches the account credential.
	Correct
)

func (v Verdict) String() string {
	if v == Correct {
		return "correct"
	}
	return "incorrect"
}

// Authenticator checks a typed secret. Implementations must be
// deterministic: the same secret always yields the same verdict, and no
// attempt counter escalates or degrades later attempts.
type Authenticator interface {
	Verify(secret string) Verdict
}
