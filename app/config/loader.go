package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Load reads and validates the bot configuration file.
func Load(path string) (*BotConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config BotConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &config, nil
}

// Account returns the account with the given name, or nil.
func (c *BotConfig) Account(name string) *Account {
	for i := range c.Accounts {
		if c.Accounts[i].Name == name {
			return &c.Accounts[i]
		}
	}
	return nil
}

func validate(config *BotConfig) error {
	if len(config.Accounts) == 0 {
		return fmt.Errorf("at least one account is required")
	}

	seen := make(map[string]bool)
	for i, account := range config.Accounts {
		if account.Name == "" {
			return fmt.Errorf("account at index %d has no name", i)
		}
		if account.Username == "" {
			return fmt.Errorf("account %q has no username", account.Name)
		}
		if seen[account.Name] {
			return fmt.Errorf("duplicate account name %q", account.Name)
		}
		seen[account.Name] = true
	}

	for i, pattern := range config.Filters.Global {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid global filter pattern at index %d: %w", i, err)
		}
	}
	for community, patterns := range config.Filters.Communities {
		for i, pattern := range patterns {
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("invalid filter pattern for community %q at index %d: %w", community, i, err)
			}
		}
	}

	return nil
}
