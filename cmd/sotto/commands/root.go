package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sotto/internal/app"
	"sotto/internal/client"
)

var (
	cfgFile    string
	serverURL  string
	dataDir    string
	passphrase string
	verbose    bool

	appCtx *app.App
)

func Execute() error {
	root := &cobra.Command{
		Use:           "sotto",
		Short:         "End-to-end encrypted messaging client",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd); err != nil {
				return err
			}

			if dataDir == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				dataDir = filepath.Join(home, ".sotto")
			}
			if err := os.MkdirAll(dataDir, 0o700); err != nil {
				return err
			}

			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			var err error
			appCtx, err = app.New(app.Config{
				ServerURL:  serverURL,
				DataDir:    dataDir,
				Passphrase: passphrase,
				Logger:     logger,
			})
			return err
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.sotto/config.yaml)")
	root.PersistentFlags().StringVar(&serverURL, "server", "", "routing server base URL")
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "", "state directory (default ~/.sotto)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting local keys")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		loginCmd(), logoutCmd(), whoamiCmd(),
		roomsCmd(), sendCmd(), sendFileCmd(),
		joinCmd(), inviteCmd(),
		watchCmd(), verifyCmd(), agentCmd(),
	)
	return root.Execute()
}

// loadConfig folds the config file and environment into unset flags.
func loadConfig(cmd *cobra.Command) error {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".sotto"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix("SOTTO")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	for flag, key := range map[*string]string{
		&serverURL:  "server",
		&dataDir:    "data_dir",
		&passphrase: "passphrase",
	} {
		if *flag == "" && v.IsSet(key) {
			*flag = v.GetString(key)
		}
	}
	if !cmd.Flags().Changed("verbose") && v.GetBool("verbose") {
		verbose = true
	}
	return nil
}

// resume restores the saved account's session.
func resume(ctx context.Context) (*client.Session, error) {
	acct, ok, err := appCtx.LoadAccount()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("not logged in. run: sotto login <username>")
	}
	return appCtx.Client.Resume(ctx, acct.UserID, acct.DeviceID)
}

func requirePassphrase() error {
	if passphrase == "" {
		return fmt.Errorf("passphrase required (-p or SOTTO_PASSPHRASE)")
	}
	return nil
}
