package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-feed/internal/proto"
)

// ackTimeout bounds the wait for the server to accept or reject a message.
const ackTimeout = 5 * time.Second

func newSendCmd() *cobra.Command {
	opts := &clientOptions{}

	cmd := &cobra.Command{
		Use:   "send [text...]",
		Short: "Send one message to the feed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.Context(), opts, strings.Join(args, " "), cmd.OutOrStdout())
		},
	}
	opts.bind(cmd)
	return cmd
}

func runSend(ctx context.Context, opts *clientOptions, text string, out io.Writer) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("nothing to send")
	}

	c, user, err := opts.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Send(ctx, text); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, ackTimeout)
	defer cancel()

	ev, err := c.WaitFor(waitCtx, proto.EventSent)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if ev.Sent == nil {
		return errors.New("send: acknowledgement without id")
	}
	fmt.Fprintf(out, "sent #%d as %s\n", ev.Sent.ID, user)
	return nil
}
