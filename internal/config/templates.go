package config

import (
	"fmt"
	"os"

	"github.com/danmuck/grassroots/internal/basestation"
	"github.com/pelletier/go-toml/v2"
)

// Template renders the default basestation config.
func Template() (string, error) {
	data, err := toml.Marshal(FromService(basestation.DefaultServiceConfig()))
	if err != nil {
		return "", fmt.Errorf("render config template: %w", err)
	}
	return string(data), nil
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template()
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
