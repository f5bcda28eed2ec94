package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sotto/internal/app"
)

func loginCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Authenticate against the routing server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			if password == "" {
				fmt.Fprint(os.Stderr, "Password: ")
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil {
					return err
				}
				password = strings.TrimRight(line, "\r\n")
			}

			sess, err := appCtx.Client.Authenticate(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := appCtx.SaveAccount(app.Account{
				UserID:   sess.UserID(),
				DeviceID: sess.DeviceID(),
			}); err != nil {
				return err
			}

			fmt.Printf("Logged in as %s (device %s)\n", sess.UserID(), sess.DeviceID())
			if fp, ok := sess.DeviceFingerprint(); ok {
				fmt.Printf("Device fingerprint: %s\n", fp)
			} else {
				fmt.Println("Warning: encryption unavailable, running in plaintext mode")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	return cmd
}
