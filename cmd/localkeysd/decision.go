package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gpdir16/LocalKeys/internal/approval"
)

// terminalDecisionSource asks the operator on the controlling terminal. A
// single long-lived goroutine owns stdin; prompts consume lines from it so
// a timed-out prompt never leaves a competing reader behind.
type terminalDecisionSource struct {
	out   io.Writer
	lines chan string
}

func newTerminalDecisionSource(in *bufio.Reader, out io.Writer) *terminalDecisionSource {
	t := &terminalDecisionSource{out: out, lines: make(chan string)}
	go func() {
		defer close(t.lines)
		for {
			line, err := in.ReadString('\n')
			if err != nil {
				return
			}
			t.lines <- line
		}
	}()
	return t
}

func (t *terminalDecisionSource) Decide(ctx context.Context, req approval.Request) (approval.Decision, error) {
	// Drop anything typed before the prompt so a stale line from an
	// expired request cannot answer this one.
drain:
	for {
		select {
		case _, ok := <-t.lines:
			if !ok {
				return approval.Decision{}, errors.New("terminal closed")
			}
		default:
			break drain
		}
	}

	fmt.Fprintf(t.out, "\nApproval needed: read %s from project %s (request %s)\nAllow? [y/N]: ",
		strings.Join(req.Keys, ", "), req.ProjectName, req.ID)

	select {
	case <-ctx.Done():
		fmt.Fprintln(t.out, "(request expired)")
		return approval.Decision{}, ctx.Err()
	case line, ok := <-t.lines:
		if !ok {
			return approval.Decision{}, errors.New("terminal closed")
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return approval.Decision{Approved: true}, nil
		default:
			return approval.Decision{Approved: false, Reason: "Denied by user"}, nil
		}
	}
}
