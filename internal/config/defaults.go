package config

const (
	defaultDataDir                  = "~/.local/share/parlo"
	defaultLogDir                   = "~/.local/share/parlo/logs"
	defaultAPIBind                  = "127.0.0.1:7910"
	defaultTranscriberBaseURL       = "https://api.deepgram.com/v1/listen"
	defaultTranscriberModel         = "nova-2"
	defaultTranscriberLanguage      = "en"
	defaultTranscriberTimeout       = 30
	defaultDialogueBaseURL          = "https://api.openai.com/v1/chat/completions"
	defaultDialogueModel            = "gpt-4o-mini"
	defaultDialogueTemperature      = 0.7
	defaultDialogueMaxTokens        = 600
	defaultDialogueTimeout          = 60
	defaultProgressionTimezone      = "UTC"
	defaultStreakBonusDayCap        = 10
	defaultAbandonAfterMinutes      = 120
	defaultSweepInterval            = 60
	defaultNotifyRequestTimeout     = 10
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultLogRetentionDays         = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Transcriber: Transcriber{
			BaseURL:        defaultTranscriberBaseURL,
			Model:          defaultTranscriberModel,
			Language:       defaultTranscriberLanguage,
			TimeoutSeconds: defaultTranscriberTimeout,
		},
		Dialogue: Dialogue{
			BaseURL:        defaultDialogueBaseURL,
			Model:          defaultDialogueModel,
			Temperature:    defaultDialogueTemperature,
			MaxTokens:      defaultDialogueMaxTokens,
			TimeoutSeconds: defaultDialogueTimeout,
		},
		Progression: Progression{
			Timezone:          defaultProgressionTimezone,
			StreakBonusDayCap: defaultStreakBonusDayCap,
		},
		Workflow: Workflow{
			AbandonAfterMinutes: defaultAbandonAfterMinutes,
			SweepInterval:       defaultSweepInterval,
		},
		Notifications: Notifications{
			RequestTimeout:  defaultNotifyRequestTimeout,
			LevelUp:         true,
			StreakMilestone: true,
			Errors:          true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
