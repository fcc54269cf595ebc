package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const keyringService = "weboutlook"

// ResolvePassword returns the webmail password for username, checking the
// environment first, then the OS keyring, then prompting on a terminal.
func ResolvePassword(username string) (string, error) {
	if pass := strings.TrimSpace(os.Getenv(envOWAPassword)); pass != "" {
		return pass, nil
	}

	if pass, err := keyring.Get(keyringService, username); err == nil && pass != "" {
		return pass, nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("no password for %s in %s or the OS keyring, and stdin is not a terminal", username, envOWAPassword)
	}

	fmt.Fprintf(os.Stderr, "Password for %s: ", username)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}

	return string(raw), nil
}

// StorePassword saves the password for username in the OS keyring.
func StorePassword(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return errors.New("username must not be empty")
	}
	if password == "" {
		return errors.New("password must not be empty")
	}
	return keyring.Set(keyringService, username, password)
}

// ForgetPassword removes the stored password for username. Removing a
// password that was never stored is not an error.
func ForgetPassword(username string) error {
	err := keyring.Delete(keyringService, username)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
