package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tbourn/go-helpdesk-backend/internal/cli"
)

// @title                      Helpdesk API
// @version                    1.0
// @description                Helpdesk backend: reports with advisory locks, notifications, FAQs and support chat.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "helpdesk:", err)
		os.Exit(1)
	}
}
