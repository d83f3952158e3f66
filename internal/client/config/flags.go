package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/flagx"
)

var clientFlags = []string{"-a", "-session", "-device", "-timeout"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string        address and port of the gRPC server
//	-session string  SQLite DSN of the session store
//	-device string   device label sent on login
//	-timeout int     request timeout in seconds
//
// Only these flags are picked out of os.Args, so command names and their
// own flags pass through untouched.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], clientFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.StringVar(&cfg.SessionDSN, "session", cfg.SessionDSN, "session store DSN")
	fs.StringVar(&cfg.DeviceInfo, "device", cfg.DeviceInfo, "device label")
	timeout := fs.Int("timeout", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
