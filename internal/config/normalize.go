package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeViewer(); err != nil {
		return err
	}
	if err := c.normalizeReview(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizePreflight()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("SEGREVIEW_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeViewer() error {
	var err error
	if strings.TrimSpace(c.Viewer.Socket) == "" {
		c.Viewer.Socket = defaultViewerSocket
	}
	if c.Viewer.Socket, err = expandPath(c.Viewer.Socket); err != nil {
		return fmt.Errorf("viewer.socket: %w", err)
	}
	if c.Viewer.ConnectTimeout <= 0 {
		c.Viewer.ConnectTimeout = defaultViewerConnectTimeout
	}
	if c.Viewer.RequestTimeout <= 0 {
		c.Viewer.RequestTimeout = defaultViewerRequestTimeout
	}
	return nil
}

func (c *Config) normalizeReview() error {
	var err error
	c.Review.DefaultDirectory = strings.TrimSpace(c.Review.DefaultDirectory)
	if c.Review.DefaultDirectory != "" {
		if c.Review.DefaultDirectory, err = expandPath(c.Review.DefaultDirectory); err != nil {
			return fmt.Errorf("review.default_directory: %w", err)
		}
	}
	effects := make([]string, 0, len(c.Review.EditorEffects))
	for _, effect := range c.Review.EditorEffects {
		trimmed := strings.TrimSpace(effect)
		if trimmed == "" {
			continue
		}
		effects = append(effects, trimmed)
	}
	if len(effects) == 0 {
		effects = defaultEditorEffects()
	}
	c.Review.EditorEffects = effects
	if c.Review.UndoDepth <= 0 {
		c.Review.UndoDepth = defaultUndoDepth
	}
	c.Review.LabelPresets = strings.TrimSpace(c.Review.LabelPresets)
	if c.Review.LabelPresets != "" {
		if c.Review.LabelPresets, err = expandPath(c.Review.LabelPresets); err != nil {
			return fmt.Errorf("review.label_presets: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizePreflight() {
	if c.Preflight.MinFreeMiB < 0 {
		c.Preflight.MinFreeMiB = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.TailCapacity <= 0 {
		c.Logging.TailCapacity = defaultLogTailCapacity
	}
}
