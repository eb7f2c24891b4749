package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/playgames-bridge/internal/bridge"
	"github.com/playgames-bridge/internal/domain"
)

// CallCmd runs one or more operations. Each step is an action name,
// optionally followed by '=' and the JSON input record.
type CallCmd struct {
	Steps     []string `arg:"" help:"Steps as action or action='{\"key\":value}'."`
	KeepGoing bool     `short:"k" help:"Continue after a failed step."`
}

func (c *CallCmd) Run(globals *CLI) error {
	steps, err := parseSteps(c.Steps)
	if err != nil {
		return err
	}

	ctx := context.Background()
	client, logger, err := globals.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	d := bridge.NewDispatcher(client, logger)
	return runSteps(ctx, d, steps, c.KeepGoing, os.Stdout)
}

type step struct {
	action string
	input  json.RawMessage
}

func parseSteps(args []string) ([]step, error) {
	steps := make([]step, 0, len(args))
	for _, arg := range args {
		s, err := parseStep(arg)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func parseStep(arg string) (step, error) {
	action, input, hasInput := strings.Cut(arg, "=")
	if !domain.IsOperation(action) {
		return step{}, fmt.Errorf("unknown action %q", action)
	}
	if !hasInput {
		return step{action: action}, nil
	}

	raw := json.RawMessage(input)
	if !json.Valid(raw) {
		return step{}, fmt.Errorf("%s: input is not valid JSON", action)
	}
	return step{action: action, input: raw}, nil
}

type outcome struct {
	ok      bool
	payload json.RawMessage
}

var errStepFailed = errors.New("step failed")

// runSteps runs each step after the previous one completes and prints its
// outcome. It stops at the first failure unless keepGoing is set.
func runSteps(ctx context.Context, d *bridge.Dispatcher, steps []step, keepGoing bool, out io.Writer) error {
	var failed int
	for _, s := range steps {
		done := make(chan outcome, 1)
		var input interface{}
		if s.input != nil {
			input = s.input
		}
		d.Call(s.action, input,
			func(p json.RawMessage) { done <- outcome{ok: true, payload: p} },
			func(p json.RawMessage) { done <- outcome{ok: false, payload: p} },
		)

		var o outcome
		select {
		case o = <-done:
		case <-ctx.Done():
			return ctx.Err()
		}

		if o.ok {
			fmt.Fprintf(out, "%s ok %s\n", s.action, compact(o.payload))
			continue
		}

		failed++
		fmt.Fprintf(out, "%s failed: %s\n", s.action, bridge.ParseFailure(o.payload).Error())
		if len(o.payload) > 0 {
			fmt.Fprintf(out, "  %s\n", compact(o.payload))
		}
		if !keepGoing {
			return fmt.Errorf("%s: %w", s.action, errStepFailed)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d steps: %w", failed, len(steps), errStepFailed)
	}
	return nil
}

func compact(payload json.RawMessage) string {
	if len(payload) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return string(payload)
	}
	return buf.String()
}
