package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:              "info",
			DefaultProvider:       "gemini",
			MaxConcurrentMessages: 5,
		},
		Providers: map[string]ProviderConfig{
			"gemini": {
				Enabled:      true,
				APIKey:       "${GEMINI_API_KEY}",
				DefaultModel: "gemini-2.0-flash",
			},
			"openai": {
				Enabled:      false,
				APIBase:      "https://api.openai.com/v1",
				DefaultModel: "gpt-4o-mini",
			},
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:   true,
				Token:     "${BOT_TOKEN}",
				ParseMode: "Markdown",
			},
			CLI: CLIConfig{
				Enabled: true,
			},
		},
		Store: StoreConfig{
			DBPath: "~/.relaybot/relaybot.db",
		},
		Search: SearchConfig{
			Provider:   "serpapi",
			APIKey:     "${SERPAPI_KEY}",
			MaxResults: 3,
		},
		Registration: RegistrationConfig{
			LazyContactCreate: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    9090,
		},
	}
}
