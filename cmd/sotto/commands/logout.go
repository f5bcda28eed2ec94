package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"sotto/internal/client"
)

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and wipe the credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := resume(cmd.Context())
			if err != nil {
				// An expired session still clears local state.
				if errors.Is(err, client.ErrSessionExpired) {
					if err := appCtx.ClearAccount(); err != nil {
						return err
					}
					fmt.Println("Session already expired; local state cleared.")
					return nil
				}
				return err
			}

			if err := sess.Logout(cmd.Context()); err != nil {
				return err
			}
			if err := appCtx.ClearAccount(); err != nil {
				return err
			}
			fmt.Println("Logged out.")
			return nil
		},
	}
}
