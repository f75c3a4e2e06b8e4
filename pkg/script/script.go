// Package script evaluates layout scripts. A script is a small Lisp program
// run in a sandboxed zygomys environment whose builtins describe a room,
// a view mode and a placed fixture. Evaluation produces a room.Layout that
// the session applies in one step.
package script

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/chazu/badplaner/pkg/room"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError is a non-fatal error in user code, such as a parse error or a
// failed builtin call.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Engine runs layout scripts. It is safe for concurrent use; each call to
// Evaluate gets a fresh sandbox.
type Engine struct {
	mu         sync.Mutex
	generation uint64
}

// NewEngine creates a new Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate runs source and returns the layout it describes.
//
// Return semantics:
//   - On success: layout + nil errors + nil error
//   - On parse/eval failure: empty layout + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): empty layout + nil + error
func (e *Engine) Evaluate(source string) (room.Layout, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		l, evalErrs, err := e.evaluate(source)
		ch <- evalResult{layout: l, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation)
}

func (e *Engine) evaluate(source string) (room.Layout, []EvalError, error) {
	var layout room.Layout
	if strings.TrimSpace(source) == "" {
		return layout, nil, nil
	}

	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env, &layout)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return room.Layout{}, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return room.Layout{}, parseZygomysError(err), nil
	}
	return layout, nil, nil
}

// linePattern matches zygomys errors of the form "Error on line N: ...".
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches "line N: ...".
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalErrors, extracting
// the line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
