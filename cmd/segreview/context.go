package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nki-radiology/SegmentationReview/internal/config"
	"github.com/nki-radiology/SegmentationReview/internal/daemonctl"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		// A local .env may carry SEGREVIEW_API_TOKEN; load it before the
		// config file is resolved so the override applies.
		_ = godotenv.Load()

		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) withClient(fn func(*daemonctl.Client) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if err := fn(daemonctl.NewClient(cfg)); err != nil {
		return wrapDaemonError(err, cfg.Paths.APIBind)
	}
	return nil
}

func wrapDaemonError(err error, bind string) error {
	if daemonUnreachable(err) {
		return fmt.Errorf("connect to daemon: %s is not answering; start the daemon with `segreview start`", bind)
	}
	return err
}

// daemonUnreachable spots connection-level failures, as opposed to the
// daemon answering with an error.
func daemonUnreachable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *daemonctl.APIError
	if errors.As(err, &apiErr) {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENOENT) || os.IsNotExist(err) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "connection refused")
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
