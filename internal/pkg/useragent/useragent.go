// Package useragent classifies user-agent strings as automated traffic.
package useragent

import (
	"embed"
	"fmt"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed bots.yml
var databaseFiles embed.FS

// BotEntry is one rule in the bot database.
type BotEntry struct {
	Regex string `yaml:"regex"`
	Name  string `yaml:"name"`
}

var (
	loadOnce sync.Once
	loadErr  error
	botRules []compiledRule
)

type compiledRule struct {
	name    string
	pattern *regexp.Regexp
}

func loadDatabase() {
	raw, err := databaseFiles.ReadFile("bots.yml")
	if err != nil {
		loadErr = fmt.Errorf("failed to read bot database: %w", err)
		return
	}

	var entries []BotEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		loadErr = fmt.Errorf("failed to parse bot database: %w", err)
		return
	}

	rules := make([]compiledRule, 0, len(entries))
	for _, entry := range entries {
		pattern, err := regexp.Compile("(?i)" + entry.Regex)
		if err != nil {
			loadErr = fmt.Errorf("invalid bot pattern %q: %w", entry.Regex, err)
			return
		}
		rules = append(rules, compiledRule{name: entry.Name, pattern: pattern})
	}
	botRules = rules
}

// IsBot reports whether the user-agent string matches a known automated
// traffic pattern. An empty string is not a bot.
func IsBot(userAgent string) bool {
	_, ok := MatchBot(userAgent)
	return ok
}

// MatchBot returns the name of the first matching bot rule.
func MatchBot(userAgent string) (string, bool) {
	if userAgent == "" {
		return "", false
	}

	loadOnce.Do(loadDatabase)
	if loadErr != nil {
		// Treat all traffic as human when the database fails to load.
		return "", false
	}

	for _, rule := range botRules {
		if rule.pattern.MatchString(userAgent) {
			return rule.name, true
		}
	}
	return "", false
}
