// Package sandbox runs synthesized code inside an isolated goja VM. The
// evaluation context contains exactly the injected params, the capability
// object and a small fixed utility set; there is no require/import, no
// process, no filesystem and no network. Every failure is caught at the Run
// boundary and reported as a typed *Error.
package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"

	"funcsmith/internal/capability"
	"funcsmith/internal/logger"
)

// Executor builds one fresh VM per Run: nothing leaks between executions.
type Executor struct {
	log *logger.LogEntry
}

func NewExecutor() *Executor {
	return &Executor{log: logger.Named("sandbox")}
}

// errDeadline is the interrupt payload used to tell a timeout apart from
// other interrupts.
var errDeadline = errors.New("sandbox deadline exceeded")

// Run evaluates code, invokes the callable bound to entry with params and
// coerces the result to a string. timeout is a hard wall-clock deadline:
// once it elapses Run returns KindTimeout, interrupting running script and
// abandoning any capability call still in flight. Cancellation of the
// in-flight call is best-effort via its context; it is never forcibly
// unwound.
func (e *Executor) Run(ctx context.Context, code, entry string, params map[string]any, caps *capability.Registry, timeout time.Duration) (string, error) {
	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	vm := goja.New()
	if err := e.installGlobals(callCtx, vm, caps); err != nil {
		return "", &Error{Kind: KindRuntimeFault, Detail: err.Error()}
	}

	// Interrupt the VM when the deadline elapses or the caller cancels. The
	// watcher dies with callCtx; interrupting an idle VM is a no-op.
	go func() {
		<-callCtx.Done()
		vm.Interrupt(errDeadline)
	}()

	start := time.Now()
	type outcome struct {
		out string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &Error{Kind: KindRuntimeFault, Detail: fmt.Sprintf("panic: %v", r)}}
			}
		}()
		out, err := e.evaluate(vm, code, entry, params)
		done <- outcome{out: out, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return "", o.err
		}
		e.log.WithFields(logger.Fields{"entry": entry, "took": time.Since(start).Round(time.Millisecond)}).Debug("execution finished")
		return o.out, nil
	case <-callCtx.Done():
		return "", &Error{Kind: KindTimeout, Detail: "execution deadline exceeded"}
	}
}

// evaluate runs the whole compile → invoke → settle → coerce sequence on vm.
// It runs on the goroutine Run spawns so a stalled capability call cannot
// hold up the timeout path.
func (e *Executor) evaluate(vm *goja.Runtime, code, entry string, params map[string]any) (string, error) {
	prog, err := goja.Compile(entry+".js", code, false)
	if err != nil {
		return "", &Error{Kind: KindRuntimeFault, Detail: err.Error()}
	}
	if _, err := vm.RunProgram(prog); err != nil {
		return "", e.classify(err)
	}

	fnVal, err := vm.RunString(entry)
	if err != nil {
		return "", e.classify(err)
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return "", &Error{Kind: KindRuntimeFault, Detail: fmt.Sprintf("%q is not a function", entry)}
	}

	res, err := fn(goja.Undefined(), vm.ToValue(params))
	if err != nil {
		return "", e.classify(err)
	}
	res, serr := settle(res)
	if serr != nil {
		return "", serr
	}

	out, cerr := coerce(res)
	if cerr != nil {
		return "", cerr
	}
	return out, nil
}

// installGlobals populates the allow-list context: the api object, log(),
// uid(). JSON and Math are ECMAScript built-ins and need no installation; a
// bare goja runtime has no other way out.
func (e *Executor) installGlobals(ctx context.Context, vm *goja.Runtime, caps *capability.Registry) error {
	api := vm.NewObject()
	if caps != nil {
		for _, name := range caps.Names() {
			fn, _ := caps.Lookup(name)
			if err := api.Set(name, e.capabilityFunc(ctx, vm, name, fn)); err != nil {
				return err
			}
		}
	}
	if err := vm.Set("api", api); err != nil {
		return err
	}
	if err := vm.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		e.log.Info(strings.Join(parts, " "))
		return goja.Undefined()
	}); err != nil {
		return err
	}
	return vm.Set("uid", func() string { return uuid.NewString() })
}

// capabilityFunc bridges one host capability into the VM. Host errors are
// rethrown as JS exceptions so generated code can catch them; uncaught they
// surface as a runtime_fault.
func (e *Executor) capabilityFunc(ctx context.Context, vm *goja.Runtime, name string, fn capability.Func) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		var args map[string]any
		if len(call.Arguments) > 0 {
			if m, ok := call.Argument(0).Export().(map[string]any); ok {
				args = m
			}
		}
		out, err := fn(ctx, args)
		if err != nil {
			panic(vm.NewGoError(fmt.Errorf("capability %s: %w", name, err)))
		}
		return vm.ToValue(out)
	}
}

// settle unwraps a promise returned by an async entry function. Capabilities
// resolve synchronously inside the VM, so a well-formed candidate's promise
// is settled by the time the call returns.
func settle(res goja.Value) (goja.Value, *Error) {
	if res == nil {
		return res, nil
	}
	p, ok := res.Export().(*goja.Promise)
	if !ok {
		return res, nil
	}
	switch p.State() {
	case goja.PromiseStateFulfilled:
		return p.Result(), nil
	case goja.PromiseStateRejected:
		detail := "promise rejected"
		if v := p.Result(); v != nil {
			detail = v.String()
		}
		return nil, &Error{Kind: KindRuntimeFault, Detail: detail}
	default:
		return nil, &Error{Kind: KindRuntimeFault, Detail: "function returned a promise that never settled"}
	}
}

// coerce turns the callable's return value into the string contract: strings
// pass through, everything else becomes its canonical JSON encoding.
func coerce(res goja.Value) (string, *Error) {
	if res == nil || goja.IsUndefined(res) || goja.IsNull(res) {
		return "null", nil
	}
	exported := res.Export()
	if s, ok := exported.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(exported)
	if err != nil {
		return "", &Error{Kind: KindUnserializable, Detail: err.Error()}
	}
	return string(data), nil
}

// classify maps a goja error to the sandbox taxonomy.
func (e *Executor) classify(err error) *Error {
	var intr *goja.InterruptedError
	if errors.As(err, &intr) {
		if v, ok := intr.Value().(error); ok && errors.Is(v, errDeadline) {
			return &Error{Kind: KindTimeout, Detail: "execution deadline exceeded"}
		}
		return &Error{Kind: KindRuntimeFault, Detail: fmt.Sprintf("interrupted: %v", intr.Value())}
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return &Error{Kind: KindRuntimeFault, Detail: strings.TrimSpace(ex.Error())}
	}
	return &Error{Kind: KindRuntimeFault, Detail: err.Error()}
}
