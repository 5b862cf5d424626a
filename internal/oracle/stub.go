package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// StubClient is a fallback when no API key is available. It reads the
// function name out of the prompt's "Name:" line and answers with an
// identity function, which keeps the define/invoke pipeline usable offline.
type StubClient struct{}

func (StubClient) Complete(_ context.Context, prompt string) (string, error) {
	name := ""
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "Name:"); ok {
			name = strings.TrimSpace(rest)
			break
		}
	}
	if name == "" {
		return "", errors.New("prompt carries no Name line")
	}
	return fmt.Sprintf("function %s(params) {\n  return JSON.stringify(params);\n}\n", name), nil
}
