package dispatch

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Replies holds every user-facing text the dispatcher sends. An operator can
// override any of them with a YAML file; unset keys keep their defaults.
type Replies struct {
	Onboarding       string `yaml:"onboarding"`
	Greeting         string `yaml:"greeting"`
	ContactSaved     string `yaml:"contactSaved"`
	ContactNeedStart string `yaml:"contactNeedStart"`
	ChatFailed       string `yaml:"chatFailed"`
	FileFailed       string `yaml:"fileFailed"`
	AnalysisPrefix   string `yaml:"analysisPrefix"`
	SearchUsage      string `yaml:"searchUsage"`
	SearchHeader     string `yaml:"searchHeader"`
	SearchEmpty      string `yaml:"searchEmpty"`
	HistoryEmpty     string `yaml:"historyEmpty"`
	Help             string `yaml:"help"`
	Unknown          string `yaml:"unknown"`
}

// DefaultReplies returns the built-in reply texts.
func DefaultReplies() *Replies {
	return &Replies{
		Onboarding:       "Welcome! Please share your contact using the button below.",
		Greeting:         "Hey my friend !! Is everything ok?? How can I help you today?",
		ContactSaved:     "Phone number saved! How can I help you?",
		ContactNeedStart: "Please register with /start before sharing your contact.",
		ChatFailed:       "There was an error while processing your request.",
		FileFailed:       "There was an error analyzing the file.",
		AnalysisPrefix:   "Analysis: ",
		SearchUsage:      "Please enter a search query. Example: /websearch AI trends",
		SearchHeader:     "Top search results:",
		SearchEmpty:      "No results found.",
		HistoryEmpty:     "No chat history yet.",
		Help: "Here are the commands you can use:\n\n" +
			"/start - Starts the bot and registers you\n" +
			"/help - Shows this help message\n" +
			"/websearch <query> - Searches the web using the provided query\n" +
			"/history - Shows your recent chat exchanges\n" +
			"Send any text to chat with the AI\n" +
			"Upload an image or file for analysis\n",
		Unknown: "Unknown command. Type /help for available commands.",
	}
}

// LoadReplies loads reply-text overrides from a YAML file on top of the
// defaults. An empty path or a missing file yields the defaults.
func LoadReplies(path string, logger *slog.Logger) (*Replies, error) {
	replies := DefaultReplies()
	if path == "" {
		return replies, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Debug("replies file does not exist, using defaults", "path", path)
		return replies, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read replies file: %w", err)
	}

	if err := yaml.Unmarshal(data, replies); err != nil {
		return nil, fmt.Errorf("parse replies file %s: %w", path, err)
	}

	logger.Info("loaded reply overrides", "path", path)
	return replies, nil
}
