package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/growthvault/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Only the flags handled here are passed to the flag set (see
// flagx.FilterArgs), so foreign flags such as -c do not break parsing.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-i", "-d", "-q", "-l"}, "-l")

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory for the local cache")
	quotaKiB := fs.Int64("q", cfg.LocalQuotaBytes/1024, "local quota store capacity (in KiB)")
	fs.BoolVar(&cfg.ConstrainedImages, "l", cfg.ConstrainedImages, "store smaller, lower quality images")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.LocalQuotaBytes = *quotaKiB * 1024
}
