package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream incoming messages to the terminal",
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

			msgs, cancelMsgs := sess.Events().Messages.Subscribe()
			defer cancelMsgs()
			invites, cancelInvites := sess.Events().Invites.Subscribe()
			defer cancelInvites()

			fmt.Println("Watching. Ctrl-C to stop.")
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-sess.Done():
					return sess.Err()
				case msg, ok := <-msgs:
					if !ok {
						return nil
					}
					lock := " "
					if msg.WasEncrypted {
						lock = "E"
					}
					ts := time.UnixMilli(msg.Timestamp).Format("15:04:05")
					fmt.Printf("%s [%s] %s %s: %s\n", ts, lock, msg.RoomID, msg.SenderDisplayName, msg.Body)
				case inv, ok := <-invites:
					if !ok {
						return nil
					}
					fmt.Printf("invite from %s to %s (accept with: sotto join %s)\n", inv.Inviter, inv.RoomID, inv.RoomID)
				}
			}
		},
	}
}
