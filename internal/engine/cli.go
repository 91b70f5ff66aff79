package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"

	"steward/pkg/logger"
)

// maxLineSize bounds a single NDJSON line from the agent CLI (1 MiB).
const maxLineSize = 1024 * 1024

// CLIConfig configures the agent CLI engine.
type CLIConfig struct {
	// Binary is the agent CLI executable (path or name on PATH).
	Binary string

	// MinVersion, when set, is enforced against `<binary> --version`
	// at construction time.
	MinVersion string

	// ExtraArgs are appended to every invocation.
	ExtraArgs []string
}

// CLIEngine runs the agent CLI as a subprocess, streaming events as
// NDJSON on stdout and answering permission prompts on stdin.
type CLIEngine struct {
	cfg CLIConfig
	log *zerolog.Logger
}

// NewCLIEngine validates the configured binary and returns an engine.
func NewCLIEngine(cfg CLIConfig) (*CLIEngine, error) {
	if cfg.Binary == "" {
		return nil, errors.New("agent binary is required")
	}

	if cfg.MinVersion != "" {
		if err := checkVersion(cfg.Binary, cfg.MinVersion); err != nil {
			return nil, err
		}
	}

	return &CLIEngine{
		cfg: cfg,
		log: logger.Component("engine"),
	}, nil
}

// controlRequest is a permission prompt emitted by the CLI on stdout.
type controlRequest struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	ToolName  string          `json:"tool_name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
}

// controlResponse answers a permission prompt on the CLI's stdin.
type controlResponse struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Response  any    `json:"response"`
}

type cliStream struct {
	events chan Message

	mu  sync.Mutex
	err error
}

func (s *cliStream) Events() <-chan Message { return s.events }

func (s *cliStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *cliStream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Run launches the CLI and streams its events. The subprocess is bound
// to ctx: cancelling it kills the process and the stream terminates
// with context.Canceled.
func (e *CLIEngine) Run(ctx context.Context, opts Options) (Stream, error) {
	args := []string{
		"-p", opts.Prompt,
		"--output-format", "stream-json",
		"--input-format", "stream-json",
		"--verbose",
	}
	if opts.ResumeID != "" {
		args = append(args, "--resume", opts.ResumeID)
	}
	if opts.PermissionMode != "" {
		args = append(args, "--permission-mode", opts.PermissionMode)
	}
	args = append(args, e.cfg.ExtraArgs...)

	cmd := exec.CommandContext(ctx, e.cfg.Binary, args...)
	cmd.Dir = opts.Workdir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start agent: %w", err)
	}

	e.log.Info().
		Str("binary", e.cfg.Binary).
		Str("workdir", opts.Workdir).
		Str("resume", opts.ResumeID).
		Msg("Agent process started")

	stream := &cliStream{events: make(chan Message)}
	go e.pump(ctx, cmd, stdin, stdout, opts, stream)

	return stream, nil
}

// pump reads NDJSON lines until EOF, answering permission prompts
// inline and forwarding everything else in order.
func (e *CLIEngine) pump(ctx context.Context, cmd *exec.Cmd, stdin io.WriteCloser, stdout io.Reader, opts Options, stream *cliStream) {
	defer close(stream.events)
	defer stdin.Close()

	var writeMu sync.Mutex
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, maxLineSize), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		raw := make(json.RawMessage, len(line))
		copy(raw, line)

		msgType, sessionID := peek(raw)

		if msgType == "control_request" {
			e.answerControl(ctx, raw, &writeMu, stdin, opts)
			continue
		}

		select {
		case stream.events <- Message{Raw: raw, SessionID: sessionID, Type: msgType}:
		case <-ctx.Done():
			stream.setErr(context.Canceled)
			cmd.Wait()
			return
		}
	}

	scanErr := scanner.Err()
	waitErr := cmd.Wait()

	switch {
	case ctx.Err() != nil:
		stream.setErr(context.Canceled)
	case scanErr != nil:
		stream.setErr(fmt.Errorf("read agent output: %w", scanErr))
	case waitErr != nil:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			stream.setErr(fmt.Errorf("agent exited with code %d", exitErr.ExitCode()))
		} else {
			stream.setErr(waitErr)
		}
	}
}

// answerControl resolves one permission prompt through the callback and
// writes the response line. The pump blocks meanwhile: the CLI does not
// emit further events while a tool-use decision is outstanding.
func (e *CLIEngine) answerControl(ctx context.Context, raw json.RawMessage, writeMu *sync.Mutex, stdin io.Writer, opts Options) {
	var req controlRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		e.log.Error().Err(err).Msg("Malformed control request from agent")
		return
	}

	if opts.CanUseTool == nil {
		e.log.Warn().
			Str("tool", req.ToolName).
			Msg("No permission callback configured, skipping control request")
		return
	}

	outcome, err := opts.CanUseTool(ctx, req.ToolName, req.Input, CallOptions{ToolUseID: req.ToolUseID})
	if err != nil {
		// The run is being torn down; the process will be killed.
		e.log.Debug().Err(err).
			Str("tool", req.ToolName).
			Msg("Permission callback aborted")
		return
	}

	resp := controlResponse{
		Type:      "control_response",
		RequestID: req.RequestID,
		Response:  outcome,
	}

	data, err := json.Marshal(resp)
	if err != nil {
		e.log.Error().Err(err).Msg("Failed to marshal control response")
		return
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	if _, err := stdin.Write(append(data, '\n')); err != nil {
		e.log.Error().Err(err).Msg("Failed to write control response")
	}
}
