package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"funcsmith/internal/capability"
	"funcsmith/internal/funcdef"
	"funcsmith/internal/store"
)

// countingClient counts oracle calls and replays canned responses.
type countingClient struct {
	responses []string
	errs      []error
	calls     int
}

func (c *countingClient) Complete(context.Context, string) (string, error) {
	i := c.calls
	c.calls++
	var err error
	if i < len(c.errs) {
		err = c.errs[i]
	}
	resp := ""
	if i < len(c.responses) {
		resp = c.responses[i]
	}
	return resp, err
}

const validAdd = "function add(params) { return String(params.a + params.b); }"

func newTestDispatcher(t *testing.T, client *countingClient) (*Dispatcher, store.Store) {
	t.Helper()
	s, err := store.NewFileStore(filepath.Join(t.TempDir(), "functions.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	d := New(Options{
		Store:       s,
		Oracle:      client,
		MaxRepairs:  3,
		ExecTimeout: 2 * time.Second,
	})
	return d, s
}

func defineParams() map[string]any {
	return map[string]any{
		"new_function_name":        "add",
		"new_function_description": "adds two numbers",
		"new_function_parameters_schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"a": map[string]any{"type": "number"},
				"b": map[string]any{"type": "number"},
			},
			"required": []any{"a", "b"},
		},
	}
}

func assertError(t *testing.T, out, fragment string) {
	t.Helper()
	var payload map[string]string
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("result is not JSON: %q", out)
	}
	if !strings.Contains(payload["error"], fragment) {
		t.Fatalf("error %q does not mention %q", payload["error"], fragment)
	}
}

func TestDefineThenInvoke(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	client := &countingClient{responses: []string{validAdd}}
	d, s := newTestDispatcher(t, client)

	out := d.Dispatch(ctx, Request{Name: DefineFunctionTool, Params: defineParams()})
	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("define result not JSON: %q", out)
	}
	if payload["success"] != true {
		t.Fatalf("define failed: %q", out)
	}
	if client.calls != 1 {
		t.Fatalf("oracle calls = %d, want 1", client.calls)
	}

	def, err := s.Get(ctx, "add")
	if err != nil {
		t.Fatalf("definition not stored: %v", err)
	}
	if def.Code != validAdd {
		t.Fatalf("stored code = %q", def.Code)
	}

	got := d.Dispatch(ctx, Request{Name: "add", Params: map[string]any{"a": 2, "b": 3}})
	if got != "5" {
		t.Fatalf("invoke = %q, want %q", got, "5")
	}
}

func TestDefineRejectsInvalidIdentifierBeforeOracle(t *testing.T) {
	t.Parallel()

	client := &countingClient{responses: []string{validAdd}}
	d, _ := newTestDispatcher(t, client)

	for _, bad := range []string{"123bad", "has space", ""} {
		params := defineParams()
		params["new_function_name"] = bad
		out := d.Dispatch(context.Background(), Request{Name: DefineFunctionTool, Params: params})
		assertError(t, out, "invalid request")
	}
	if client.calls != 0 {
		t.Fatalf("oracle called %d times for invalid requests", client.calls)
	}
}

func TestDefineRejectsMissingFields(t *testing.T) {
	t.Parallel()

	client := &countingClient{responses: []string{validAdd}}
	d, _ := newTestDispatcher(t, client)

	for _, missing := range []string{"new_function_description", "new_function_parameters_schema"} {
		params := defineParams()
		delete(params, missing)
		out := d.Dispatch(context.Background(), Request{Name: DefineFunctionTool, Params: params})
		assertError(t, out, missing)
	}
	if client.calls != 0 {
		t.Fatalf("oracle called %d times for incomplete requests", client.calls)
	}
}

func TestDefineSurfacesExhaustion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	bad := "function nope(params) { return '0'; }"
	client := &countingClient{responses: []string{bad, bad, bad, bad}}
	d, s := newTestDispatcher(t, client)

	out := d.Dispatch(ctx, Request{Name: DefineFunctionTool, Params: defineParams()})
	assertError(t, out, "synthesis failed after 4 attempt(s)")
	if client.calls != 4 {
		t.Fatalf("oracle calls = %d, want 4", client.calls)
	}
	// Broken definitions are never stored.
	if _, err := s.Get(ctx, "add"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("broken definition was stored: %v", err)
	}
}

func TestInvokeUnknownFunction(t *testing.T) {
	t.Parallel()

	client := &countingClient{}
	d, _ := newTestDispatcher(t, client)

	if err := d.Predefine(context.Background(), funcdef.Definition{
		Name: "add", Description: "adds", Code: validAdd,
	}); err != nil {
		t.Fatalf("Predefine: %v", err)
	}

	out := d.Dispatch(context.Background(), Request{Name: "ad", Params: nil})
	assertError(t, out, `function "ad" not found`)
	if !strings.Contains(out, `did you mean \"add\"`) {
		t.Fatalf("no fuzzy suggestion in %q", out)
	}
	if client.calls != 0 {
		t.Fatalf("oracle consulted for an invocation: %d calls", client.calls)
	}
}

func TestInvokeCapabilityOverride(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	base := capability.NewRegistry()
	base.Register("who", "", func(context.Context, map[string]any) (string, error) { return "base", nil })
	override := capability.NewRegistry()
	override.Register("who", "", func(context.Context, map[string]any) (string, error) { return "override", nil })

	client := &countingClient{}
	s, err := store.NewFileStore(filepath.Join(t.TempDir(), "functions.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	d := New(Options{Store: s, Oracle: client, Registry: base, MaxRepairs: 1, ExecTimeout: 2 * time.Second})

	if err := d.Predefine(ctx, funcdef.Definition{
		Name: "who", Description: "asks the registry",
		Code: "function who(params) { return api.who({}); }",
	}); err != nil {
		t.Fatalf("Predefine: %v", err)
	}

	if got := d.Dispatch(ctx, Request{Name: "who"}); got != "base" {
		t.Fatalf("default registry answer = %q", got)
	}
	if got := d.Dispatch(ctx, Request{Name: "who", Capabilities: override}); got != "override" {
		t.Fatalf("override answer = %q", got)
	}
	// Override is per-call: the next call is back on the base registry.
	if got := d.Dispatch(ctx, Request{Name: "who"}); got != "base" {
		t.Fatalf("registry mutated by override: %q", got)
	}
}

func TestPredefineValidates(t *testing.T) {
	t.Parallel()

	client := &countingClient{}
	d, _ := newTestDispatcher(t, client)

	err := d.Predefine(context.Background(), funcdef.Definition{
		Name: "add", Code: "function add(params { broken",
	})
	if err == nil {
		t.Fatalf("Predefine accepted invalid code")
	}
	if client.calls != 0 {
		t.Fatalf("Predefine touched the oracle")
	}
}

func TestInvokeSandboxErrorIsStringResult(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	client := &countingClient{}
	d, _ := newTestDispatcher(t, client)
	if err := d.Predefine(ctx, funcdef.Definition{
		Name: "boom", Description: "throws",
		Code: "function boom(params) { throw new Error('kaput'); }",
	}); err != nil {
		t.Fatalf("Predefine: %v", err)
	}

	out := d.Dispatch(ctx, Request{Name: "boom"})
	assertError(t, out, "runtime_fault")
	assertError(t, out, "kaput")
}
