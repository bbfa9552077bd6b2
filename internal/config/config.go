// Package config loads the persisted chat settings and the provider
// credentials taken from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultModel = "gpt-5-mini"

// Credentials are provider secrets. They come from the environment only and
// are never written to disk.
type Credentials struct {
	OpenAIKey     string
	GeminiKey     string
	OpenAIBaseURL string
}

func CredentialsFromEnv() Credentials {
	return Credentials{
		OpenAIKey:     strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		GeminiKey:     strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		OpenAIBaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
	}
}

// Settings is the on-disk user configuration.
type Settings struct {
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt,omitempty"`
}

func (s *Settings) Validate() error {
	if s == nil {
		return errors.New("nil settings")
	}
	if strings.TrimSpace(s.Model) == "" {
		return errors.New("missing model")
	}
	return nil
}

// DefaultSettingsPath is ~/.config/qs-chat/settings.yaml.
func DefaultSettingsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".config", "qs-chat", "settings.yaml"), nil
}

// LoadSettings reads settings from path. A missing file yields defaults.
func LoadSettings(path string) (*Settings, error) {
	settings := &Settings{Model: defaultModel}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(raw, settings); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	if strings.TrimSpace(settings.Model) == "" {
		settings.Model = defaultModel
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// SaveSettings writes settings atomically (temp file + rename).
func SaveSettings(path string, settings *Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	raw, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
