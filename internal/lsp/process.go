package lsp

import (
	"bufio"
	"io"
	"os/exec"
	"strings"

	"codedepth/internal/errors"
	"codedepth/internal/logging"
)

// Spawn launches the language server described by command (an executable
// plus whitespace-separated arguments), wires its stdio into a Client,
// and starts draining stderr to the logger.
func Spawn(command, workDir string, logger *logging.Logger) (*Client, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, errors.New(errors.ConfigInvalid, "language server command is empty", nil)
	}

	cmd := exec.Command(parts[0], parts[1:]...)
	cmd.Dir = workDir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.New(errors.ProcessFailed, "failed to create stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.New(errors.ProcessFailed, "failed to create stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.New(errors.ProcessFailed, "failed to create stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Newf(errors.ProcessFailed, err, "failed to start language server: %q", command)
	}

	logger.Info("started language server", map[string]interface{}{
		"command": parts[0],
		"pid":     cmd.Process.Pid,
	})

	go drainStderr(stderr, logger)

	client := NewClient(stdout, stdin, logger)
	client.cmd = cmd
	return client, nil
}

// drainStderr forwards the server's diagnostic stream to the logger so a
// stalled pipe never blocks the child process.
func drainStderr(r io.Reader, logger *logging.Logger) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		logger.Debug("server stderr", map[string]interface{}{
			"line": scanner.Text(),
		})
	}
}
