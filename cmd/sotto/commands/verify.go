package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sotto/internal/domain"
)

func verifyCmd() *cobra.Command {
	var assumeYes bool

	cmd := &cobra.Command{
		Use:   "verify <user> <device>",
		Short: "Compare and confirm a device fingerprint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			user, device := domain.UserID(args[0]), domain.DeviceID(args[1])

			sess, err := resume(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			fp, err := sess.RemoteFingerprint(cmd.Context(), user, device)
			if err != nil {
				return err
			}
			fmt.Printf("Fingerprint of %s/%s:\n  %s\n", user, device, fp)

			if !assumeYes {
				fmt.Fprint(os.Stderr, "Does this match what the other side reports? [y/N] ")
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil {
					return err
				}
				if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
					fmt.Println("Not verified.")
					return nil
				}
			}

			if err := sess.VerifyDevice(cmd.Context(), user, device); err != nil {
				return err
			}
			fmt.Println("Device verified.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
