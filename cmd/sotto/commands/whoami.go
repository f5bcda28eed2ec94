package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the active account and device fingerprint",
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

			fmt.Printf("%s (device %s)\n", sess.UserID(), sess.DeviceID())
			if fp, ok := sess.DeviceFingerprint(); ok {
				fmt.Printf("Fingerprint: %s\n", fp)
			} else {
				fmt.Println("Encryption unavailable on this device.")
			}
			return nil
		},
	}
}
