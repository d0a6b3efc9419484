package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-feed/internal/proto"
	"github.com/vovakirdan/wirechat-feed/internal/wsclient"
)

// errDisconnected ends tail when the server reports a store outage.
var errDisconnected = errors.New("feed disconnected")

type clientOptions struct {
	addr  string
	user  string
	token string
}

func (o *clientOptions) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&o.addr, "addr", "http://localhost:8080", "server address")
	flags.StringVar(&o.user, "user", "", "display name (anonymous when empty)")
	flags.StringVar(&o.token, "token", os.Getenv("WIRECHAT_TOKEN"), "access token; overrides --user")
}

// connect dials the server and binds the identity.
func (o *clientOptions) connect(ctx context.Context) (*wsclient.Client, string, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c, err := wsclient.Dial(dialCtx, o.addr, nil)
	if err != nil {
		return nil, "", err
	}
	if err := c.Hello(dialCtx, o.user, o.token); err != nil {
		c.Close()
		return nil, "", err
	}
	ev, err := c.WaitFor(dialCtx, proto.EventReady)
	if err != nil {
		c.Close()
		return nil, "", fmt.Errorf("hello: %w", err)
	}
	user := o.user
	if ev.Ready != nil {
		user = ev.Ready.User
	}
	return c, user, nil
}

func newTailCmd() *cobra.Command {
	opts := &clientOptions{}

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print the message history, then follow new messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTail(ctx, opts, cmd.OutOrStdout())
		},
	}
	opts.bind(cmd)
	return cmd
}

func runTail(ctx context.Context, opts *clientOptions, out io.Writer) error {
	c, _, err := opts.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Subscribe(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-c.Events():
			if !ok {
				return c.Err()
			}
			switch {
			case ev.IsError():
				fmt.Fprintf(out, "error: %s: %s\n", ev.Error.Code, ev.Error.Msg)
			case ev.Message != nil:
				fmt.Fprintln(out, formatMessage(ev.Message))
			case ev.Event == proto.EventDisconnected:
				reason := "unknown"
				if ev.Disconnected != nil {
					reason = ev.Disconnected.Reason
				}
				return fmt.Errorf("%w: %s", errDisconnected, reason)
			}
		}
	}
}

func formatMessage(m *proto.EventMessageData) string {
	ts := time.Unix(m.TS, 0).Local().Format("15:04:05")
	if m.ImageURL != nil && m.Text == "" {
		return fmt.Sprintf("[%s] #%d %s: <image %s>", ts, m.ID, m.User, *m.ImageURL)
	}
	return fmt.Sprintf("[%s] #%d %s: %s", ts, m.ID, m.User, m.Text)
}
