// segreviewd is the standalone daemon binary. It is equivalent to
// `segreview daemon run` and exists so the daemon can be supervised
// directly by systemd or similar.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/nki-radiology/SegmentationReview/internal/config"
	"github.com/nki-radiology/SegmentationReview/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		log.Fatalf("segreviewd: %v", err)
	}
}
