package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sotto/internal/domain"
)

func kindForFile(name string) domain.MessageKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return domain.KindImage
	}
	return domain.KindFile
}

func sendFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send-file <room|@user> <path>",
		Short: "Upload and send a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
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

			filename := filepath.Base(args[1])
			eventID, err := sess.SendMedia(cmd.Context(), room, kindForFile(filename), data, filename)
			if err != nil {
				return err
			}
			fmt.Printf("Sent %s (%d bytes) as %s\n", filename, len(data), eventID)
			return nil
		},
	}
}
