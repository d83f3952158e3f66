package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/dmitrijs2005/credkeeper/internal/admin/cli"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app := cli.NewApp(cfg, os.Stdin, os.Stdout)

	if err := app.Run(ctx, os.Args[1:]); err != nil {
		log.Printf("%v", err)
		if errors.Is(err, cli.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}

}
