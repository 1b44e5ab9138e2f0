// internal/console/shell.go
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/peterh/liner"
)

// Executor applies a command and returns the text to show the operator.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (string, error)
}

// Shell reads operator commands and writes replies.
type Shell struct {
	exec    Executor
	out     io.Writer
	prompt  string
	history string
}

type Config struct {
	Prompt string
	// History is an optional file for interactive line history.
	History string
}

func New(exec Executor, out io.Writer, cfg Config) (*Shell, error) {
	if exec == nil {
		return nil, errors.New("console: executor required")
	}
	if out == nil {
		out = os.Stdout
	}
	if cfg.Prompt == "" {
		cfg.Prompt = "> "
	}
	return &Shell{
		exec:    exec,
		out:     out,
		prompt:  cfg.Prompt,
		history: cfg.History,
	}, nil
}

// Handle runs one line and writes the reply.
func (s *Shell) Handle(ctx context.Context, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}

	cmd, err := Parse(line)
	if err != nil {
		fmt.Fprintf(s.out, "NAK %v\n", err)
		return
	}
	if cmd.Op == OpHelp {
		fmt.Fprintln(s.out, Help)
		return
	}

	reply, err := s.exec.Execute(ctx, cmd)
	if err != nil {
		fmt.Fprintf(s.out, "NAK %v\n", err)
		return
	}
	if reply == "" {
		fmt.Fprintln(s.out, "ACK")
		return
	}
	fmt.Fprintf(s.out, "ACK %s\n", reply)
}

// Serve reads commands line by line from r until EOF or ctx is done.
func (s *Shell) Serve(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			s.Handle(ctx, line)
		}
	}
}

// Interactive runs a line-editing prompt on the terminal.
// It returns when the operator sends EOF/Ctrl-C or ctx is done.
func (s *Shell) Interactive(ctx context.Context) error {
	ln := liner.NewLiner()
	defer ln.Close()

	ln.SetCtrlCAborts(true)
	s.loadHistory(ln)
	defer s.saveHistory(ln)

	type result struct {
		line string
		err  error
	}
	next := make(chan result, 1)

	for {
		go func() {
			line, err := ln.Prompt(s.prompt)
			next <- result{line, err}
		}()

		var res result
		select {
		case <-ctx.Done():
			return nil
		case res = <-next:
		}

		switch {
		case errors.Is(res.err, liner.ErrPromptAborted), errors.Is(res.err, io.EOF):
			return nil
		case res.err != nil:
			return fmt.Errorf("console: prompt: %w", res.err)
		}

		if strings.TrimSpace(res.line) != "" {
			ln.AppendHistory(res.line)
		}
		s.Handle(ctx, res.line)
	}
}

func (s *Shell) loadHistory(ln *liner.State) {
	if s.history == "" {
		return
	}
	f, err := os.Open(s.history)
	if err != nil {
		return
	}
	defer f.Close()
	if _, err := ln.ReadHistory(f); err != nil {
		slog.Warn("console: history read failed", "path", s.history, "error", err)
	}
}

func (s *Shell) saveHistory(ln *liner.State) {
	if s.history == "" {
		return
	}
	f, err := os.Create(s.history)
	if err != nil {
		slog.Warn("console: history write failed", "path", s.history, "error", err)
		return
	}
	defer f.Close()
	_, _ = ln.WriteHistory(f)
}
