package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sotto/internal/client"
)

// waitSynced blocks until the session's baseline arrives or the
// timeout passes. A timeout is not an error; the listing is just stale.
func waitSynced(sess *client.Session, timeout time.Duration) {
	select {
	case <-sess.Synced():
	case <-sess.Done():
	case <-time.After(timeout):
	}
}

func roomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List joined rooms with unread counts",
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
			waitSynced(sess, 10*time.Second)

			rooms := sess.Rooms()
			if len(rooms) == 0 {
				fmt.Println("No rooms.")
				return nil
			}
			for _, room := range rooms {
				marker := " "
				if room.IsEncrypted {
					marker = "E"
				}
				unread := ""
				if room.UnreadCount > 0 {
					unread = fmt.Sprintf(" (%d unread)", room.UnreadCount)
				}
				fmt.Printf("[%s] %s  %s%s\n", marker, room.ID, room.DisplayName, unread)
			}
			return nil
		},
	}
}
