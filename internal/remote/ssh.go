package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHExecutor is the production Executor. It holds a single SSH connection
// for the whole run; sessions are opened per command.
type SSHExecutor struct {
	logger zerolog.Logger
	client *ssh.Client
}

// Dial connects to the target and authenticates. Auth methods are tried in
// order: the configured key, then the default ~/.ssh keys, then the SSH
// agent. Connection and handshake failures are fatal to the run, there is no
// retry.
func Dial(logger zerolog.Logger, target Target) (*SSHExecutor, error) {
	auths, err := authMethods(target)
	if err != nil {
		return nil, err
	}
	if len(auths) == 0 {
		return nil, fmt.Errorf("no SSH auth available for %s: no usable key and no agent", target)
	}

	hostKeyCB, err := hostKeyCallback(target)
	if err != nil {
		return nil, err
	}

	cfg := &ssh.ClientConfig{
		User:            target.User,
		Auth:            auths,
		HostKeyCallback: hostKeyCB,
		Timeout:         target.ConnectTimeout,
	}

	d := net.Dialer{Timeout: target.ConnectTimeout}
	conn, err := d.Dial("tcp", target.Addr())
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", target.Addr(), err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, target.Addr(), cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", target.Addr(), err)
	}

	e := &SSHExecutor{
		logger: logger.With().Str("component", "ssh").Logger(),
		client: ssh.NewClient(c, chans, reqs),
	}
	e.logger.Info().Str("addr", target.Addr()).Msg("connected")
	return e, nil
}

func authMethods(target Target) ([]ssh.AuthMethod, error) {
	var auths []ssh.AuthMethod

	if target.KeyPath != "" {
		signer, err := loadSigner(target.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("load key %s: %w", target.KeyPath, err)
		}
		auths = append(auths, ssh.PublicKeys(signer))
	} else {
		for _, p := range defaultKeyPaths() {
			signer, err := loadSigner(p)
			if err != nil {
				continue
			}
			auths = append(auths, ssh.PublicKeys(signer))
		}
	}

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			auths = append(auths, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	return auths, nil
}

func loadSigner(path string) (ssh.Signer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := ssh.ParsePrivateKey(b)
	if err == nil {
		return s, nil
	}
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		return nil, fmt.Errorf("key %s is passphrase-protected; add it to ssh-agent instead", path)
	}
	return nil, err
}

func hostKeyCallback(target Target) (ssh.HostKeyCallback, error) {
	if !target.StrictHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	path := target.KnownHostsPath
	if path == "" {
		path = defaultKnownHostsPath()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("strict host key checking needs known_hosts at %s: %w", path, err)
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("parse known_hosts %s: %w", path, err)
	}
	return cb, nil
}

func (e *SSHExecutor) Run(ctx context.Context, cmd string) (Result, error) {
	session, err := e.client.NewSession()
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	type outcome struct {
		res Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		out, err := session.CombinedOutput(cmd)
		if err != nil {
			var ee *ssh.ExitError
			if errors.As(err, &ee) {
				ch <- outcome{Result{ExitCode: ee.ExitStatus(), Output: out}, nil}
				return
			}
			ch <- outcome{Result{ExitCode: -1, Output: out}, fmt.Errorf("run remote command: %w", err)}
			return
		}
		ch <- outcome{Result{ExitCode: 0, Output: out}, nil}
	}()

	select {
	case o := <-ch:
		e.logger.Debug().Str("cmd", cmd).Int("exit", o.res.ExitCode).Msg("remote command finished")
		return o.res, o.err
	case <-ctx.Done():
		session.Close()
		return Result{ExitCode: -1}, ctx.Err()
	}
}

func (e *SSHExecutor) Upload(ctx context.Context, src io.Reader, remotePath string, mode fs.FileMode) error {
	session, err := e.client.NewSession()
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer session.Close()
	session.Stdin = src

	cmd := fmt.Sprintf("cat > %s && chmod %03o %s", Quote(remotePath), mode.Perm(), Quote(remotePath))

	ch := make(chan error, 1)
	go func() {
		out, err := session.CombinedOutput(cmd)
		if err != nil {
			ch <- fmt.Errorf("write %s: %s: %w", remotePath, bytes.TrimSpace(out), err)
			return
		}
		ch <- nil
	}()

	select {
	case err := <-ch:
		if err == nil {
			e.logger.Debug().Str("path", remotePath).Msg("uploaded file")
		}
		return err
	case <-ctx.Done():
		session.Close()
		return ctx.Err()
	}
}

func (e *SSHExecutor) Stream(ctx context.Context, cmd string, out io.Writer) error {
	session, err := e.client.NewSession()
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer session.Close()
	session.Stdout = out
	session.Stderr = out

	ch := make(chan error, 1)
	go func() { ch <- session.Run(cmd) }()

	select {
	case err := <-ch:
		if err != nil {
			return fmt.Errorf("run remote command: %w", err)
		}
		return nil
	case <-ctx.Done():
		session.Close()
		return ctx.Err()
	}
}

func (e *SSHExecutor) Close() error {
	return e.client.Close()
}
