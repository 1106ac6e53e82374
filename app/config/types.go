package config

// BotConfig is the YAML bot configuration: Lemmy accounts and filter
// pattern sets. Pattern sets are data consumed by feed.Filterer; this
// package only loads and validates them.
type BotConfig struct {
	Accounts []Account `yaml:"accounts"`
	Filters  Filters   `yaml:"filters"`
}

type Account struct {
	Name     string `yaml:"name"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Filters holds ordered reject-pattern lists. Global patterns apply to
// every feed; community patterns apply only to feeds posting into that
// community.
type Filters struct {
	Global      []string            `yaml:"global"`
	Communities map[string][]string `yaml:"communities"`
}
