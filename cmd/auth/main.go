// Command auth runs the siteauth HTTP service.
package main

//go:generate swag init -g internal/auth/http/router.go -d ../../ -o ../../api/auth --packageName auth

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aussiebroadwan/siteauth/internal/auth/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "auth:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	service, err := app.New(app.LoadConfig())
	if err != nil {
		return err
	}
	return service.Run(ctx)
}
