package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProgression(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateDialogue(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateProgression() error {
	if _, err := time.LoadLocation(c.Progression.Timezone); err != nil {
		return fmt.Errorf("progression.timezone %q is not a valid IANA zone: %w", c.Progression.Timezone, err)
	}
	if c.Progression.StreakBonusDayCap <= 0 {
		return errors.New("progression.streak_bonus_day_cap must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.abandon_after_minutes": c.Workflow.AbandonAfterMinutes,
		"workflow.sweep_interval":        c.Workflow.SweepInterval,
		"transcriber.timeout_seconds":    c.Transcriber.TimeoutSeconds,
		"dialogue.timeout_seconds":       c.Dialogue.TimeoutSeconds,
	})
}

func (c *Config) validateDialogue() error {
	if c.Dialogue.Temperature < 0 || c.Dialogue.Temperature > 2 {
		return errors.New("dialogue.temperature must be between 0 and 2")
	}
	if c.Dialogue.MaxTokens <= 0 {
		return errors.New("dialogue.max_tokens must be positive")
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
