package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/dmitrijs2005/credkeeper/internal/client/cli"
	"github.com/dmitrijs2005/credkeeper/internal/client/client"
	"github.com/dmitrijs2005/credkeeper/internal/client/config"
)

func main() {
	os.Exit(run())
}

func run() int {

	ctx := context.Background()
	cfg := config.LoadConfig()
	if err := cfg.ResolveSessionDSN(); err != nil {
		log.Printf("%v", err)
		return 1
	}

	sessions, err := client.OpenSessionStore(ctx, cfg.SessionDSN)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	defer sessions.Close()

	c, err := client.NewGRPCClient(cfg.ServerEndpointAddr)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	defer c.Close()

	app := cli.NewApp(c, sessions, cfg.DeviceInfo, cfg.RequestTimeout, os.Stdin, os.Stdout)
	if err := app.Run(ctx, os.Args[1:]); err != nil {
		log.Printf("%v", err)
		if errors.Is(err, cli.ErrUsage) {
			return 2
		}
		return 1
	}
	return 0
}
