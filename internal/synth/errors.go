package synth

import "fmt"

// SyntaxError reports a candidate that failed validation: it either does not
// parse, or parses without binding a callable of the expected name.
type SyntaxError struct {
	Message string
}

func (e *SyntaxError) Error() string {
	return "invalid candidate: " + e.Message
}

// ExhaustedError is the terminal failure of a repair loop: every attempt was
// spent without producing a valid candidate. Nothing is ever stored on this
// path.
type ExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("synthesis failed after %d attempt(s): %v", e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }
