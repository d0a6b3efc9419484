package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-feed/internal/proto"
)

type smokeOptions struct {
	clientOptions
	text    string
	timeout time.Duration
}

func newSmokeCmd() *cobra.Command {
	opts := &smokeOptions{}

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Check a running server end to end: hello, subscribe, send, observe",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSmoke(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.text, "text", "hello from smoke test", "message text to send")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "total timeout for the run")
	return cmd
}

// runSmoke passes once the sent text comes back on the live tail.
func runSmoke(ctx context.Context, opts *smokeOptions, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	c, user, err := opts.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	fmt.Fprintf(out, "ready as %s\n", user)

	if err := c.Subscribe(ctx); err != nil {
		return err
	}
	if _, err := c.WaitFor(ctx, proto.EventSubscribed); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	if err := c.Send(ctx, opts.text); err != nil {
		return err
	}

	for {
		ev, err := c.WaitFor(ctx, proto.EventMessage)
		if err != nil {
			return fmt.Errorf("await echo: %w", err)
		}
		if ev.Message.User == user && ev.Message.Text == opts.text {
			fmt.Fprintf(out, "ok: message #%d observed\n", ev.Message.ID)
			return nil
		}
	}
}
