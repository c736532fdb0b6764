package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	tagcerrors "github.com/conneroisu/tagc/internal/errors"
)

// ExecCompiler runs an external compiler process per input. The source is
// written to the process's stdin and the compiled text is read from stdout.
type ExecCompiler struct {
	command string
	args    []string
	timeout time.Duration
}

// NewExecCompiler creates a compiler backed by command. A zero timeout
// means the process is bounded only by the caller's context.
func NewExecCompiler(command string, args []string, timeout time.Duration) (*ExecCompiler, error) {
	if err := validateCommand(command); err != nil {
		return nil, err
	}
	return &ExecCompiler{
		command: command,
		args:    append([]string(nil), args...),
		timeout: timeout,
	}, nil
}

// Args returns the full argument list the process is started with for opts.
func (ec *ExecCompiler) Args(opts Options) []string {
	args := append([]string(nil), ec.args...)
	if opts.Compact {
		args = append(args, "--compact")
	}
	if opts.Type != "" {
		args = append(args, "--type="+opts.Type)
	}
	if opts.Template != "" {
		args = append(args, "--template="+opts.Template)
	}
	if opts.Brackets != "" {
		args = append(args, "--brackets="+opts.Brackets)
	}
	if opts.Expr {
		args = append(args, "--expr")
	}
	if opts.Whitespace {
		args = append(args, "--whitespace")
	}
	return args
}

// Compile runs the compiler process on source.
func (ec *ExecCompiler) Compile(ctx context.Context, source string, opts Options) (string, error) {
	return ec.run(ctx, ec.command, ec.Args(opts), source)
}

func (ec *ExecCompiler) run(ctx context.Context, command string, args []string, stdin string) (string, error) {
	if ec.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ec.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stdin = strings.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s timed out: %w", command, ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", &ProcessError{Command: command, Stderr: msg, Err: err}
	}

	return stdout.String(), nil
}

// ProcessError is returned when the compiler or analyzer process exits
// unsuccessfully. Stderr holds the process's diagnostic output.
type ProcessError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Stderr)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// ExecAnalyzer runs an external analyzer process that prints a JSON array of
// Line values for the source written to its stdin.
type ExecAnalyzer struct {
	runner *ExecCompiler
}

// NewExecAnalyzer creates an analyzer backed by command.
func NewExecAnalyzer(command string, args []string, timeout time.Duration) (*ExecAnalyzer, error) {
	runner, err := NewExecCompiler(command, args, timeout)
	if err != nil {
		return nil, err
	}
	return &ExecAnalyzer{runner: runner}, nil
}

// Analyze runs the analyzer process on source.
func (ea *ExecAnalyzer) Analyze(ctx context.Context, source string) ([]Line, error) {
	out, err := ea.runner.run(ctx, ea.runner.command, ea.runner.args, source)
	if err != nil {
		return nil, err
	}

	var lines []Line
	if err := json.Unmarshal([]byte(out), &lines); err != nil {
		return nil, tagcerrors.NewValidationError(tagcerrors.ErrCodeAnalyzeFailed,
			"analyzer output is not a JSON line list: "+err.Error())
	}
	return lines, nil
}

func validateCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return tagcerrors.NewConfigError(tagcerrors.ErrCodeConfigInvalid, "compiler command cannot be empty")
	}
	for _, char := range []string{";", "&", "|", "$", "`", "<", ">"} {
		if strings.Contains(command, char) {
			return tagcerrors.NewConfigError(tagcerrors.ErrCodeConfigInvalid,
				fmt.Sprintf("compiler command %q contains shell metacharacter %q", command, char))
		}
	}
	return nil
}
