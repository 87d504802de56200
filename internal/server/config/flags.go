package config

import (
	"flag"
	"os"
	"time"

	"github.com/scs-backend/scs/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-s string   storage root directory
//	-m int      maximum upload size, megabytes
//	-t int      graceful shutdown timeout, seconds
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components (the -c/-config
// flags of the JSON overlay in particular).
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-s", "-m", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.StorageDir, "s", config.StorageDir, "storage root directory")

	maxUploadMB := fs.Int64("m", config.MaxUploadBytes/(1024*1024), "max upload size (in megabytes)")
	shutdownTimeout := fs.Int("t", int(config.ShutdownTimeout.Seconds()), "shutdown timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.MaxUploadBytes = *maxUploadMB * 1024 * 1024
	config.ShutdownTimeout = time.Duration(*shutdownTimeout) * time.Second
}
