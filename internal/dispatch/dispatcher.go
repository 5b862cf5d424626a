// Package dispatch routes tool requests: the reserved definition tool goes
// through the repair loop and the store, everything else is a lookup plus a
// sandbox run. The external contract is a single string per request —
// success and failure alike — so nothing above this boundary ever handles a
// Go error from generated code.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sahilm/fuzzy"

	"funcsmith/internal/capability"
	"funcsmith/internal/funcdef"
	"funcsmith/internal/logger"
	"funcsmith/internal/oracle"
	"funcsmith/internal/sandbox"
	"funcsmith/internal/store"
	"funcsmith/internal/synth"
)

// DefineFunctionTool is the reserved request name that triggers synthesis of
// a new function instead of an invocation.
const DefineFunctionTool = "define_new_function"

// Request is one call into the dispatcher. Capabilities, when set, replaces
// the dispatcher's registry for this call only.
type Request struct {
	Name         string
	Params       map[string]any
	Capabilities *capability.Registry
}

// Options wires the dispatcher's collaborators once at construction; there
// is no package-level state.
type Options struct {
	Store       store.Store
	Oracle      oracle.Client
	Registry    *capability.Registry
	MaxRepairs  int
	ExecTimeout time.Duration
}

type Dispatcher struct {
	store       store.Store
	loop        *synth.RepairLoop
	exec        *sandbox.Executor
	registry    *capability.Registry
	execTimeout time.Duration
	log         *logger.LogEntry
}

func New(opts Options) *Dispatcher {
	registry := opts.Registry
	if registry == nil {
		registry = capability.NewRegistry()
	}
	timeout := opts.ExecTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		store:       opts.Store,
		loop:        synth.NewRepairLoop(synth.NewSynthesizer(opts.Oracle), opts.MaxRepairs),
		exec:        sandbox.NewExecutor(),
		registry:    registry,
		execTimeout: timeout,
		log:         logger.Named("dispatch"),
	}
}

// Dispatch handles one request and always returns a descriptive string.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) string {
	if req.Name == DefineFunctionTool {
		return d.define(ctx, req)
	}
	return d.invoke(ctx, req)
}

// defineArgs is the wire schema of the definition tool.
type defineArgs struct {
	Name          string         `json:"new_function_name"`
	Description   string         `json:"new_function_description"`
	Schema        funcdef.Schema `json:"new_function_parameters_schema"`
	CapabilityDoc string         `json:"host_provided_api_description_for_new_func"`
}

func (d *Dispatcher) define(ctx context.Context, req Request) string {
	var args defineArgs
	raw, err := json.Marshal(req.Params)
	if err != nil {
		return errorString(fmt.Sprintf("invalid request: %v", err))
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return errorString(fmt.Sprintf("invalid request: %v", err))
	}

	// All three required fields are checked before any oracle call.
	switch {
	case args.Name == "":
		return errorString("invalid request: new_function_name is required")
	case !funcdef.ValidIdent(args.Name):
		return errorString(fmt.Sprintf("invalid request: %q is not a valid identifier", args.Name))
	case args.Description == "":
		return errorString("invalid request: new_function_description is required")
	}
	if _, ok := req.Params["new_function_parameters_schema"]; !ok {
		return errorString("invalid request: new_function_parameters_schema is required")
	}

	capDoc := args.CapabilityDoc
	if capDoc == "" {
		capDoc = d.registry.Describe()
	}

	spec := funcdef.Spec{Name: args.Name, Description: args.Description, Parameters: args.Schema}
	def, err := d.loop.Run(ctx, spec, capDoc)
	if err != nil {
		var exhausted *synth.ExhaustedError
		if errors.As(err, &exhausted) {
			d.log.WithField("function", args.Name).Warnf("synthesis exhausted: %v", exhausted)
		}
		return errorString(err.Error())
	}
	if err := d.store.Put(ctx, def); err != nil {
		return errorString(fmt.Sprintf("storing %q failed: %v", def.Name, err))
	}
	d.log.WithField("function", def.Name).Info("function defined")
	return successString(fmt.Sprintf("function %q defined", def.Name))
}

func (d *Dispatcher) invoke(ctx context.Context, req Request) string {
	if !funcdef.ValidIdent(req.Name) {
		return errorString(fmt.Sprintf("invalid request: %q is not a valid identifier", req.Name))
	}
	def, err := d.store.Get(ctx, req.Name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return d.notFound(ctx, req.Name)
		}
		return errorString(fmt.Sprintf("loading %q failed: %v", req.Name, err))
	}

	caps := d.registry
	if req.Capabilities != nil {
		caps = req.Capabilities
	}
	out, err := d.exec.Run(ctx, def.Code, def.Name, req.Params, caps, d.execTimeout)
	if err != nil {
		return errorString(err.Error())
	}
	return out
}

// notFound builds the tagged not-found answer, with a fuzzy suggestion when
// a stored name comes close.
func (d *Dispatcher) notFound(ctx context.Context, name string) string {
	msg := fmt.Sprintf("function %q not found", name)
	defs, err := d.store.List(ctx)
	if err != nil {
		return errorString(msg)
	}
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	if matches := fuzzy.Find(name, names); len(matches) > 0 {
		msg += fmt.Sprintf(" (did you mean %q?)", matches[0].Str)
	}
	return errorString(msg)
}

// Predefine stores a host-authored definition, bypassing synthesis but not
// validation.
func (d *Dispatcher) Predefine(ctx context.Context, def funcdef.Definition) error {
	if !funcdef.ValidIdent(def.Name) {
		return fmt.Errorf("%q is not a valid identifier", def.Name)
	}
	if err := synth.Validate(def.Code, def.Name); err != nil {
		return err
	}
	return d.store.Put(ctx, def)
}

func successString(msg string) string {
	data, _ := json.Marshal(map[string]any{"success": true, "message": msg})
	return string(data)
}

func errorString(msg string) string {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return string(data)
}
