// Command siteauth-admin performs operator tasks directly against the
// service database.
//
//	siteauth-admin create-admin -email ops@example.com -first Ops -last Team
//
// The password is read from SITEAUTH_ADMIN_PASSWORD, or from the first line
// of stdin when that is unset.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aussiebroadwan/siteauth/internal/auth/app"
	"github.com/aussiebroadwan/siteauth/internal/auth/service"
	"github.com/aussiebroadwan/siteauth/pkg/cryptox"
	"github.com/aussiebroadwan/siteauth/pkg/slogx"
)

const passwordEnv = "SITEAUTH_ADMIN_PASSWORD"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: siteauth-admin create-admin -email EMAIL -first NAME -last NAME")
	}

	switch args[0] {
	case "create-admin":
		return createAdmin(args[1:], stdin, stdout)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func createAdmin(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	email := fs.String("email", "", "administrator email address")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *first == "" || *last == "" {
		return errors.New("-email, -first and -last are required")
	}

	password, err := readPassword(stdin)
	if err != nil {
		return err
	}

	cfg := app.LoadConfig()
	logger := app.NewLogger(cfg)
	cryptox.SetPepperPath(cfg.PepperFile)

	db, err := app.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ctx = slogx.WithContext(ctx, logger)

	users := &service.UserService{Store: db}
	user, err := users.CreateAdmin(ctx, service.RegisterInput{
		Email:     *email,
		Password:  password,
		FirstName: *first,
		LastName:  *last,
	})
	switch {
	case errors.Is(err, service.ErrConflict):
		return fmt.Errorf("an account with email %s already exists", *email)
	case err != nil:
		return err
	}

	fmt.Fprintf(stdout, "created admin %s (%s)\n", user.Email, user.ID)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", fmt.Errorf("no password: set %s or pipe it on stdin", passwordEnv)
	}
	return pw, nil
}
