// Package remote runs commands and transfers files on the deployment target
// over SSH. Every later deployment stage talks to the host exclusively
// through the Executor interface so tests can substitute a scripted fake.
package remote

import (
	"context"
	"io"
	"io/fs"
)

// Result is the outcome of one remote command that ran to completion.
type Result struct {
	ExitCode int
	Output   []byte
}

// Executor abstracts command execution and file transfer on the target.
//
// Run reports transport and session failures through its error; a command
// that executed and exited non-zero is not an error at this layer — callers
// inspect Result.ExitCode and decide. Output is the combined stdout/stderr.
type Executor interface {
	// Run executes a command or multi-line script body on the target and
	// waits for it to exit.
	Run(ctx context.Context, cmd string) (Result, error)

	// Upload streams src to remotePath and sets its mode. Any failure,
	// including a non-zero exit of the remote write, is an error.
	Upload(ctx context.Context, src io.Reader, remotePath string, mode fs.FileMode) error

	// Stream executes a command with its combined output attached to out,
	// for long-running commands like journal follows. Blocks until the
	// command exits or ctx is done.
	Stream(ctx context.Context, cmd string, out io.Writer) error

	// Close releases the underlying connection.
	Close() error
}
