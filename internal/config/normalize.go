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
	c.normalizeTranscriber()
	c.normalizeDialogue()
	c.normalizeProgression()
	c.normalizeWorkflow()
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
	return nil
}

func (c *Config) normalizeTranscriber() {
	c.Transcriber.APIKey = strings.TrimSpace(c.Transcriber.APIKey)
	if c.Transcriber.APIKey == "" {
		if value, ok := os.LookupEnv("DEEPGRAM_API_KEY"); ok {
			c.Transcriber.APIKey = strings.TrimSpace(value)
		}
	}
	c.Transcriber.BaseURL = strings.TrimSpace(c.Transcriber.BaseURL)
	if c.Transcriber.BaseURL == "" {
		c.Transcriber.BaseURL = defaultTranscriberBaseURL
	}
	c.Transcriber.Model = strings.TrimSpace(c.Transcriber.Model)
	if c.Transcriber.Model == "" {
		c.Transcriber.Model = defaultTranscriberModel
	}
	c.Transcriber.Language = strings.ToLower(strings.TrimSpace(c.Transcriber.Language))
	if c.Transcriber.Language == "" {
		c.Transcriber.Language = defaultTranscriberLanguage
	}
	if c.Transcriber.TimeoutSeconds <= 0 {
		c.Transcriber.TimeoutSeconds = defaultTranscriberTimeout
	}
}

func (c *Config) normalizeDialogue() {
	c.Dialogue.APIKey = strings.TrimSpace(c.Dialogue.APIKey)
	if c.Dialogue.APIKey == "" {
		if value, ok := os.LookupEnv("DIALOGUE_API_KEY"); ok {
			c.Dialogue.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.Dialogue.APIKey = strings.TrimSpace(value)
		}
	}
	c.Dialogue.BaseURL = strings.TrimSpace(c.Dialogue.BaseURL)
	if c.Dialogue.BaseURL == "" {
		c.Dialogue.BaseURL = defaultDialogueBaseURL
	}
	c.Dialogue.Model = strings.TrimSpace(c.Dialogue.Model)
	if c.Dialogue.Model == "" {
		c.Dialogue.Model = defaultDialogueModel
	}
	if c.Dialogue.Temperature <= 0 {
		c.Dialogue.Temperature = defaultDialogueTemperature
	}
	if c.Dialogue.MaxTokens <= 0 {
		c.Dialogue.MaxTokens = defaultDialogueMaxTokens
	}
	if c.Dialogue.TimeoutSeconds <= 0 {
		c.Dialogue.TimeoutSeconds = defaultDialogueTimeout
	}
}

func (c *Config) normalizeProgression() {
	c.Progression.Timezone = strings.TrimSpace(c.Progression.Timezone)
	if c.Progression.Timezone == "" {
		c.Progression.Timezone = defaultProgressionTimezone
	}
	if c.Progression.StreakBonusDayCap <= 0 {
		c.Progression.StreakBonusDayCap = defaultStreakBonusDayCap
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.AbandonAfterMinutes <= 0 {
		c.Workflow.AbandonAfterMinutes = defaultAbandonAfterMinutes
	}
	if c.Workflow.SweepInterval <= 0 {
		c.Workflow.SweepInterval = defaultSweepInterval
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
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
