// Package synth turns a function spec into validated source code: one oracle
// call per attempt, a parse-only validator, and a bounded repair loop that
// feeds failures back into the next prompt.
package synth

import (
	"context"
	"strings"

	"funcsmith/internal/logger"
	"funcsmith/internal/oracle"
)

// Synthesizer issues a single oracle call and normalizes the response. It
// does not judge syntactic correctness (the Validator does) and it does not
// retry (the RepairLoop does, with a different prompt).
type Synthesizer struct {
	client oracle.Client
	log    *logger.LogEntry
}

func NewSynthesizer(client oracle.Client) *Synthesizer {
	return &Synthesizer{client: client, log: logger.Named("synth")}
}

// Synthesize sends prompt to the oracle and returns the candidate source.
// Transport failures and empty responses are both reported as *oracle.Error.
func (s *Synthesizer) Synthesize(ctx context.Context, prompt string) (string, error) {
	out, err := s.client.Complete(ctx, prompt)
	if err != nil {
		return "", &oracle.Error{Reason: oracle.ReasonRequestFailed, Err: err}
	}
	code := stripFences(out)
	if code == "" {
		return "", &oracle.Error{Reason: oracle.ReasonEmptyResponse}
	}
	s.log.WithField("bytes", len(code)).Debug("oracle returned candidate")
	return code, nil
}

// stripFences removes a single surrounding markdown code fence if the oracle
// ignored the no-fences rule. The content itself is passed through untouched.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
	}
	return text
}
