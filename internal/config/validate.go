package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateViewer(); err != nil {
		return err
	}
	if err := c.validateReview(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateViewer() error {
	if strings.TrimSpace(c.Viewer.Socket) == "" {
		return errors.New("viewer.socket must be set")
	}
	if err := ensurePositiveMap(map[string]int{
		"viewer.connect_timeout": c.Viewer.ConnectTimeout,
		"viewer.request_timeout": c.Viewer.RequestTimeout,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateReview() error {
	if len(c.Review.EditorEffects) == 0 {
		return errors.New("review.editor_effects must include at least one effect")
	}
	if c.Review.UndoDepth <= 0 {
		return errors.New("review.undo_depth must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
