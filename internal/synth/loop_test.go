package synth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"funcsmith/internal/funcdef"
	"funcsmith/internal/oracle"
)

// scriptedClient replays canned responses. A step with err != nil fails the
// call; otherwise code is returned verbatim.
type scriptedClient struct {
	steps []scriptedStep
	calls int
}

type scriptedStep struct {
	code string
	err  error
}

func (c *scriptedClient) Complete(context.Context, string) (string, error) {
	if c.calls >= len(c.steps) {
		return "", errors.New("scripted client exhausted")
	}
	step := c.steps[c.calls]
	c.calls++
	return step.code, step.err
}

// recordingClient keeps every prompt it sees.
type recordingClient struct {
	scriptedClient
	prompts []string
}

func (c *recordingClient) Complete(ctx context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	return c.scriptedClient.Complete(ctx, prompt)
}

var addSpec = funcdef.Spec{
	Name:        "add",
	Description: "adds two numbers",
	Parameters: funcdef.Schema{
		Type: "object",
		Properties: map[string]funcdef.Property{
			"a": {Type: "number"},
			"b": {Type: "number"},
		},
		Required: []string{"a", "b"},
	},
}

const validAdd = "function add(params) { return String(params.a + params.b); }"

func TestRepairLoopFirstAttemptSucceeds(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{steps: []scriptedStep{{code: validAdd}}}
	loop := NewRepairLoop(NewSynthesizer(client), 3)

	def, err := loop.Run(context.Background(), addSpec, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("oracle calls = %d, want 1", client.calls)
	}
	if def.Name != "add" || def.Code != validAdd {
		t.Fatalf("definition mismatch: %#v", def)
	}
	if def.Description != addSpec.Description {
		t.Fatalf("description not carried over: %#v", def)
	}
}

func TestRepairLoopRecoversAfterFailure(t *testing.T) {
	t.Parallel()

	client := &recordingClient{scriptedClient: scriptedClient{steps: []scriptedStep{
		{code: "function add(params) { return params.a + ; }"}, // parse error
		{code: validAdd},
	}}}
	loop := NewRepairLoop(NewSynthesizer(client), 3)

	def, err := loop.Run(context.Background(), addSpec, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("oracle calls = %d, want 2 (stop on first success)", client.calls)
	}
	if def.Code != validAdd {
		t.Fatalf("kept wrong candidate: %q", def.Code)
	}
	// Second prompt must be a repair prompt embedding the first candidate.
	if !strings.Contains(client.prompts[1], "rejected") && !strings.Contains(client.prompts[1], "Rejected") {
		t.Fatalf("second prompt is not a repair prompt:\n%s", client.prompts[1])
	}
	if !strings.Contains(client.prompts[1], "params.a + ;") {
		t.Fatalf("repair prompt missing previous code:\n%s", client.prompts[1])
	}
}

func TestRepairLoopExhaustsBudget(t *testing.T) {
	t.Parallel()

	bad := scriptedStep{code: "function wrong_name(params) { return '0'; }"}
	client := &scriptedClient{steps: []scriptedStep{bad, bad, bad, bad, bad, bad}}
	loop := NewRepairLoop(NewSynthesizer(client), 3)

	_, err := loop.Run(context.Background(), addSpec, "")
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Run = %v, want *ExhaustedError", err)
	}
	if client.calls != 4 {
		t.Fatalf("oracle calls = %d, want 4 (1 synthesis + 3 repairs)", client.calls)
	}
	if exhausted.Attempts != 4 {
		t.Fatalf("Attempts = %d, want 4", exhausted.Attempts)
	}
	var syntaxErr *SyntaxError
	if !errors.As(exhausted.LastErr, &syntaxErr) {
		t.Fatalf("LastErr = %v, want *SyntaxError", exhausted.LastErr)
	}
}

func TestRepairLoopOracleErrorSpendsAttempt(t *testing.T) {
	t.Parallel()

	client := &recordingClient{scriptedClient: scriptedClient{steps: []scriptedStep{
		{err: errors.New("connection reset")},
		{code: validAdd},
	}}}
	loop := NewRepairLoop(NewSynthesizer(client), 1)

	def, err := loop.Run(context.Background(), addSpec, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("oracle calls = %d, want 2", client.calls)
	}
	if def.Code != validAdd {
		t.Fatalf("definition code = %q", def.Code)
	}
	// No candidate existed yet, so the retry must repeat the synthesis prompt.
	if client.prompts[0] != client.prompts[1] {
		t.Fatalf("retry after early oracle failure should repeat the synthesis prompt")
	}
}

func TestRepairLoopOracleErrorAfterCandidateReusesIt(t *testing.T) {
	t.Parallel()

	client := &recordingClient{scriptedClient: scriptedClient{steps: []scriptedStep{
		{code: "function add(params) { return params.a + ; }"},
		{err: errors.New("timeout")},
		{code: validAdd},
	}}}
	loop := NewRepairLoop(NewSynthesizer(client), 3)

	if _, err := loop.Run(context.Background(), addSpec, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Third prompt still repairs against the only candidate ever produced.
	if !strings.Contains(client.prompts[2], "params.a + ;") {
		t.Fatalf("third prompt lost the last candidate:\n%s", client.prompts[2])
	}
}

func TestRepairLoopEmptyResponseIsOracleError(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{steps: []scriptedStep{{code: "   \n"}}}
	loop := NewRepairLoop(NewSynthesizer(client), 0)

	_, err := loop.Run(context.Background(), addSpec, "")
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Run = %v, want *ExhaustedError", err)
	}
	var oracleErr *oracle.Error
	if !errors.As(exhausted.LastErr, &oracleErr) || oracleErr.Reason != oracle.ReasonEmptyResponse {
		t.Fatalf("LastErr = %v, want oracle empty_response", exhausted.LastErr)
	}
}

func TestSynthesizerStripsFences(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{steps: []scriptedStep{
		{code: "```javascript\n" + validAdd + "\n```"},
	}}
	code, err := NewSynthesizer(client).Synthesize(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if code != validAdd {
		t.Fatalf("fence not stripped: %q", code)
	}
}
