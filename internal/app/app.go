package app

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"sotto/internal/client"
	"sotto/internal/domain"
)

// App is the dependency graph shared by all CLI subcommands.
type App struct {
	Client *client.Client
	Config Config
}

// New constructs the engine client from cfg.
func New(cfg Config) (*App, error) {
	engine, err := client.New(client.Config{
		ServerURL:  cfg.ServerURL,
		DataDir:    cfg.DataDir,
		Passphrase: cfg.Passphrase,
		HTTPClient: cfg.HTTP,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &App{Client: engine, Config: cfg}, nil
}

// Account records which identity the CLI last logged in as, so
// subsequent invocations can resume without flags.
type Account struct {
	UserID   domain.UserID   `json:"user_id"`
	DeviceID domain.DeviceID `json:"device_id"`
}

func (a *App) accountPath() string {
	return filepath.Join(a.Config.DataDir, "account.json")
}

// SaveAccount remembers the active account.
func (a *App) SaveAccount(acct Account) error {
	if err := os.MkdirAll(a.Config.DataDir, 0o700); err != nil {
		return err
	}
	b, err := json.Marshal(acct)
	if err != nil {
		return err
	}
	return os.WriteFile(a.accountPath(), b, 0o600)
}

// LoadAccount returns the active account, if one was saved.
func (a *App) LoadAccount() (Account, bool, error) {
	b, err := os.ReadFile(a.accountPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Account{}, false, nil
		}
		return Account{}, false, err
	}
	var acct Account
	if err := json.Unmarshal(b, &acct); err != nil {
		return Account{}, false, err
	}
	return acct, acct.UserID != "", nil
}

// ClearAccount forgets the active account.
func (a *App) ClearAccount() error {
	if err := os.Remove(a.accountPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
