// Package opa is the narrow adapter around the external policy engine:
// compose the evaluation input, shell out with a hard timeout, unwrap the
// response envelope, and validate the decision before anything downstream
// sees it. Decision-shape validation is a separate pure function so it can
// be tested without spawning a process.
package opa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/reqgate/reqgate/internal/model"
)

// DefaultTimeout bounds one engine invocation. The subprocess is killed on
// expiry, never left orphaned.
const DefaultTimeout = 30 * time.Second

// DefaultRule is the engine rule queried when none is given.
const DefaultRule = "decision"

// DefaultBinary is the engine executable looked up on PATH.
const DefaultBinary = "opa"

// Input is the composed evaluation input handed to the engine on stdin.
type Input struct {
	Requirement model.Requirement `json:"requirement"`
	Facts       model.Facts       `json:"facts"`
	Context     map[string]any    `json:"context"`
}

// ComposeInput builds the engine input from a requirement, facts, and
// optional context. A nil context becomes an empty object.
func ComposeInput(req model.Requirement, facts model.Facts, evalCtx map[string]any) Input {
	if evalCtx == nil {
		evalCtx = map[string]any{}
	}
	return Input{Requirement: req, Facts: facts, Context: evalCtx}
}

// Options configures one evaluation.
type Options struct {
	BundlePath string
	Package    string // defaults to the requirement's first rubric package
	Rule       string // defaults to DefaultRule
	Binary     string // defaults to DefaultBinary
	Timeout    time.Duration
	Context    map[string]any
}

// envelope is the engine's response shape:
// {"result":[{"expressions":[{"value":<decision>}]}]}.
type envelope struct {
	Result []struct {
		Expressions []struct {
			Value json.RawMessage `json:"value"`
		} `json:"expressions"`
	} `json:"result"`
}

// Evaluate runs one requirement's rubric against the supplied facts via the
// external engine. It is a pure function of its inputs plus external process
// state; neither req nor facts is mutated.
func Evaluate(ctx context.Context, req model.Requirement, facts model.Facts, opts Options) (*model.Decision, error) {
	pkg := opts.Package
	if pkg == "" {
		if len(req.Rubrics) == 0 {
			return nil, model.NewInputError("requirement %s has no rubrics and no package was given", req.UID)
		}
		pkg = req.Rubrics[0].Package
		if pkg == "" {
			return nil, model.NewInputError("requirement %s rubric is missing a package", req.UID)
		}
	}
	rule := opts.Rule
	if rule == "" {
		rule = DefaultRule
	}
	binary := opts.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	info, err := os.Stat(opts.BundlePath)
	if err != nil || !info.IsDir() {
		return nil, model.NewInputError("bundle path is not a directory: %s", opts.BundlePath)
	}

	input, err := json.Marshal(ComposeInput(req, facts, opts.Context))
	if err != nil {
		return nil, &model.PersistenceError{Kind: model.PersistSerialize, Path: "opa input", Err: err}
	}

	raw, err := invoke(ctx, binary, opts.BundlePath, "data."+pkg+"."+rule, input, timeout)
	if err != nil {
		return nil, err
	}

	return ValidateDecision(raw)
}

// invoke shells out to the engine and unwraps the response envelope.
func invoke(ctx context.Context, binary, bundleDir, query string, input []byte, timeout time.Duration) (json.RawMessage, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, binary,
		"eval", "--bundle", bundleDir, "--format", "json", "--stdin-input", query)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// The engine runs in its own process group so cancellation kills the
	// whole tree, not just the direct child. Descendants that survive would
	// otherwise hold the stdout pipe open and stall Run past the deadline;
	// WaitDelay caps that stall even if the kill is not delivered.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if cctx.Err() == context.DeadlineExceeded {
			return nil, evalErr(KindTimeout, nil, "evaluation timed out after %s", timeout)
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, evalErr(KindBinaryNotFound, err, "engine binary %q not found on PATH", binary)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, evalErr(KindExit, nil, "engine exited with code %d: %s",
				exitErr.ExitCode(), bytes.TrimSpace(stderr.Bytes()))
		}
		return nil, evalErr(KindExit, err, "engine invocation failed")
	}

	var env envelope
	if err := json.Unmarshal(stdout.Bytes(), &env); err != nil {
		return nil, evalErr(KindMalformedOutput, err, "engine stdout is not valid JSON")
	}
	if len(env.Result) == 0 {
		return nil, evalErr(KindEnvelope, nil, "engine output has no result")
	}
	if len(env.Result[0].Expressions) == 0 {
		return nil, evalErr(KindEnvelope, nil, "engine result has no expressions")
	}
	value := env.Result[0].Expressions[0].Value
	if len(value) == 0 || string(value) == "null" {
		return nil, evalErr(KindEnvelope, nil, "engine expression has no value")
	}
	return value, nil
}
