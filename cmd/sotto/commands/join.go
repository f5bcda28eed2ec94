package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sotto/internal/domain"
)

func joinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <room>",
		Short: "Accept an invite or join a room by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			sess, err := resume(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			room := domain.RoomID(args[0])
			if err := sess.JoinRoom(cmd.Context(), room); err != nil {
				return err
			}
			fmt.Printf("Joined %s\n", room)
			return nil
		},
	}
}

func inviteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invite <room> <user>",
		Short: "Invite a user into a room",
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

			room, user := domain.RoomID(args[0]), domain.UserID(args[1])
			if err := sess.InviteUser(cmd.Context(), room, user); err != nil {
				return err
			}
			fmt.Printf("Invited %s to %s\n", user, room)
			return nil
		},
	}
}
