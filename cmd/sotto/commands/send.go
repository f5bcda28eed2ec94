package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sotto/internal/client"
	"sotto/internal/domain"
)

// resolveTarget turns a room ID or @user into a room, creating a direct
// room on first contact with a user.
func resolveTarget(ctx context.Context, sess *client.Session, target string) (domain.RoomID, error) {
	if strings.HasPrefix(target, "@") {
		waitSynced(sess, 10*time.Second)
		return sess.ResolveDirectRoom(ctx, domain.UserID(target), true)
	}
	return domain.RoomID(target), nil
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <room|@user> <message>",
		Short: "Send a text message to a room or user",
		Args:  cobra.ExactArgs(2),
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

			room, err := resolveTarget(cmd.Context(), sess, args[0])
			if err != nil {
				return err
			}
			eventID, err := sess.SendText(cmd.Context(), room, args[1])
			if err != nil {
				return err
			}
			fmt.Printf("Sent %s to %s\n", eventID, room)
			return nil
		},
	}
}
