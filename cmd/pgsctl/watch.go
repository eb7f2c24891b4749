package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/playgames-bridge/internal/domain"
	"github.com/playgames-bridge/internal/websocket"
)

// WatchCmd prints host notices, such as injected conflicts.
type WatchCmd struct{}

func (c *WatchCmd) Run(globals *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, _, err := globals.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	fmt.Fprintln(os.Stderr, "watching for notices, ^C to stop")
	return watchNotices(ctx, client, os.Stdout)
}

var errHostClosed = errors.New("emulator closed the connection")

type noticeSource interface {
	Notices() <-chan websocket.Notice
	Done() <-chan struct{}
}

// watchNotices prints notices until ctx ends or the connection goes away
func watchNotices(ctx context.Context, src noticeSource, out io.Writer) error {
	show := func(n websocket.Notice) {
		fmt.Fprintf(out, "%s save=%s id=%s\n", n.Event, n.SaveName, n.ID)
	}

	for {
		select {
		case n := <-src.Notices():
			show(n)
		case <-src.Done():
			for {
				select {
				case n := <-src.Notices():
					show(n)
				default:
					return errHostClosed
				}
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// ActionsCmd lists the operation catalogue.
type ActionsCmd struct{}

func (c *ActionsCmd) Run() error {
	for _, op := range domain.Operations {
		fmt.Println(op)
	}
	return nil
}
