package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sotto/internal/agent"
)

func agentCmd() *cobra.Command {
	var endpoint string

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run a conversational responder on this account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			sess, err := resume(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			var responder agent.Responder = agent.EchoResponder{}
			if endpoint != "" {
				responder = &agent.HTTPResponder{Endpoint: endpoint}
			}

			msgs, cancel := sess.Events().Messages.Subscribe()
			defer cancel()

			loop := agent.NewLoop(responder, sess, appCtx.Config.Logger)
			fmt.Printf("Agent running as %s. Ctrl-C to stop.\n", sess.UserID())

			errCh := make(chan error, 1)
			go func() { errCh <- loop.Run(cmd.Context(), msgs) }()

			select {
			case <-sess.Done():
				return sess.Err()
			case err := <-errCh:
				return err
			}
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "completion endpoint URL (echoes when omitted)")
	return cmd
}
