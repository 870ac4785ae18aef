// Command wardenadmin is an offline bootstrap tool for creating Control API
// user accounts directly against the storage database, without going
// through the running daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/nsavage/wardendns/internal/config"
	"github.com/nsavage/wardendns/internal/store"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	dbURL    string
	username string
	password string
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.dbURL, "db", "", "Storage database URL (defaults to config.Load()'s value)")
	flag.StringVar(&f.username, "username", "", "Username for the new Control API account")
	flag.StringVar(&f.password, "password", "", "Password for the new Control API account")
	flag.Parse()
	return f
}

func run() error {
	flags := parseFlags()
	if flags.username == "" || flags.password == "" {
		return errors.New("both -username and -password are required")
	}

	dbURL := flags.dbURL
	if dbURL == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		dbURL = cfg.Store.DatabaseURL
	}

	st, err := store.Open(dbURL)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	hashed, err := bcrypt.GenerateFromPassword([]byte(flags.password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := st.CreateUser(context.Background(), flags.username, string(hashed)); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("created user %q\n", flags.username)
	return nil
}
