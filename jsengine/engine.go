// Package jsengine executes stored JavaScript functions inside a disposable sandbox.
//
// Every Run builds a fresh interpreter runtime, installs a console shim as the only
// bridge out of the sandbox, evaluates the script source, and calls the named
// function with positional arguments derived from a JSON parameter object (see
// PositionalArgs for the ordering contract). No interpreter state survives a call.
package jsengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Result is the uniform outcome of one sandboxed invocation. Exactly one of a
// meaningful Value or a non-empty Error is set; Console carries the newline-joined
// captured console lines in emission order (empty when nothing was logged or on failure).
type Result struct {
	Value   any    `json:"result"`
	Console string `json:"console"`
	Error   string `json:"error"`
}

// identRe matches names that are safe to splice into a guest call expression.
var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// consoleShim is evaluated before the script source. It replaces the console global
// with a capturing implementation: each call appends one space-joined line to an
// in-context buffer, JSON-stringifying object arguments and String()-converting the
// rest. The buffer is drained into Result.Console after the call.
const consoleShim = `
var __console = [];
function __fmtLog(args) {
	return args.map(function (a) {
		return (a !== null && typeof a === 'object') ? JSON.stringify(a) : String(a);
	}).join(' ');
}
var console = {
	log: function () { __console.push(__fmtLog(Array.prototype.slice.call(arguments))); },
	warn: function () { __console.push('[warn] ' + __fmtLog(Array.prototype.slice.call(arguments))); },
	error: function () { __console.push('[error] ' + __fmtLog(Array.prototype.slice.call(arguments))); }
};
`

// Engine runs scripts in per-invocation sandboxes. Safe for concurrent use: Run
// shares no state between invocations.
type Engine struct {
	log *zap.Logger
}

// New creates an Engine. A nil logger disables console mirroring to host logs.
func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{log: logger}
}

// Run evaluates source in a fresh sandbox and calls functionName with args in order.
// Arguments are spliced into the generated call expression as JSON literals. The
// context bounds execution: when it is cancelled or times out, the interpreter is
// interrupted and the invocation fails with an error Result. Run never panics and
// never returns a partial envelope — every failure mode is folded into Result.Error.
func (e *Engine) Run(ctx context.Context, source, functionName string, args []any) Result {
	if !identRe.MatchString(functionName) {
		return failure(fmt.Sprintf("invalid function name: %q", functionName))
	}

	vm := goja.New()
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	if _, err := vm.RunString(consoleShim); err != nil {
		return failure("console shim setup failed: " + guestMessage(err))
	}

	if _, err := vm.RunString(source); err != nil {
		return failure(fmt.Sprintf("script load error in %q: %s", functionName, guestMessage(err)))
	}

	call, err := buildCall(functionName, args)
	if err != nil {
		return failure(err.Error())
	}
	// The call result is bound to __result so normalization can re-serialize it
	// guest-side without invoking the function a second time.
	val, err := vm.RunString("var __result = " + call + "; __result")
	if err != nil {
		return failure(fmt.Sprintf("execution error in %q: %s", functionName, guestMessage(err)))
	}

	return Result{
		Value:   e.normalize(vm, val),
		Console: e.drainConsole(vm, functionName),
	}
}

// normalize converts the guest return value into a host JSON value. Primitives pass
// through from the exported value; anything else is serialized guest-side with
// JSON.stringify and parsed host-side, falling back to the raw string form when the
// value is not JSON-representable (circular, function, symbol).
func (e *Engine) normalize(vm *goja.Runtime, val goja.Value) any {
	exported := val.Export()
	switch exported.(type) {
	case nil, bool, string, int64, float64:
		return exported
	}
	sv, err := vm.RunString("JSON.stringify(__result)")
	if err != nil || goja.IsUndefined(sv) || goja.IsNull(sv) {
		return val.String()
	}
	var out any
	if err := json.Unmarshal([]byte(sv.String()), &out); err != nil {
		return val.String()
	}
	return out
}

// drainConsole serializes the capture buffer guest-side and joins the lines.
// Lines are mirrored to the host log at debug level, matching emission order.
func (e *Engine) drainConsole(vm *goja.Runtime, functionName string) string {
	cv, err := vm.RunString("JSON.stringify(__console)")
	if err != nil {
		return ""
	}
	var lines []string
	if err := json.Unmarshal([]byte(cv.String()), &lines); err != nil {
		return ""
	}
	for _, line := range lines {
		e.log.Debug("js console", zap.String("function", functionName), zap.String("line", line))
	}
	return strings.Join(lines, "\n")
}

func failure(msg string) Result {
	return Result{Error: msg}
}

// guestMessage reduces an interpreter error to a single line: the thrown value's
// string form for guest exceptions, a fixed phrase for interrupts, and the first
// line of the error text otherwise (compiler errors can span lines).
func guestMessage(err error) string {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return ex.Value().String()
	}
	var intr *goja.InterruptedError
	if errors.As(err, &intr) {
		return "execution interrupted"
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}
