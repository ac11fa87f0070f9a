package config

import (
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// defaults used by Default and to fill in zero values after loading a file
const (
	DefaultMaxTokens     = 40
	DefaultMaxGroupDepth = 10
	DefaultMaxTags       = 40
	DefaultMaxInValues   = 100
	DefaultRankWindow    = 48 * time.Hour
	DefaultUnlimitedTags = `^(-?status:deleted|rating:.+|limit:.+)$`
)

// Config is the static configuration of the tag query compiler. It is passed explicitly into
// every compile so there is no process wide state to stub out in tests.
type Config struct {
	// MaxTokens is the maximum number of tokens allowed inside a single group.
	MaxTokens int `toml:"max_tokens"`
	// MaxGroupDepth is the maximum nesting of parenthesized groups.
	MaxGroupDepth int `toml:"max_group_depth"`
	// MaxTags is the default tag quota for a search. Callers may override it per request.
	MaxTags int `toml:"max_tags"`
	// MaxInValues caps comma separated value lists such as id:1,2,3 or md5:a,b.
	MaxInValues int `toml:"max_in_values"`
	// StrictMetatags rejects key:value tokens with an unknown key instead of treating them as tags.
	StrictMetatags bool `toml:"strict_metatags"`
	// UnlimitedTags matches raw tokens that never count against the tag quota.
	UnlimitedTags string `toml:"unlimited_tags"`
	// TimeZone is used to interpret dates like date:2020-01-01.
	TimeZone string `toml:"time_zone"`
	// RankWindow bounds how far back order:rank looks.
	RankWindow time.Duration `toml:"rank_window"`

	Log     Log     `toml:"log"`
	Alias   Alias   `toml:"alias"`
	Elastic Elastic `toml:"elastic"`

	unlimited *regexp.Regexp
	location  *time.Location
}

// Log configures the zap logger.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Alias configures the warm alias table.
type Alias struct {
	DSN             string        `toml:"dsn"`
	RefreshInterval time.Duration `toml:"refresh_interval"`
	TTL             time.Duration `toml:"ttl"`
	Capacity        uint64        `toml:"capacity"`
}

// Elastic configures the search backend used by pkg/search and the cli.
type Elastic struct {
	URL   string `toml:"url"`
	Index string `toml:"index"`
}

// Default returns a validated Config with the default limits.
func Default() *Config {
	c := &Config{
		MaxTokens:     DefaultMaxTokens,
		MaxGroupDepth: DefaultMaxGroupDepth,
		MaxTags:       DefaultMaxTags,
		MaxInValues:   DefaultMaxInValues,
		UnlimitedTags: DefaultUnlimitedTags,
		TimeZone:      "UTC",
		RankWindow:    DefaultRankWindow,
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		Alias: Alias{
			RefreshInterval: 5 * time.Minute,
			TTL:             15 * time.Minute,
			Capacity:        1 << 20,
		},
		Elastic: Elastic{
			URL:   "http://127.0.0.1:9200",
			Index: "posts",
		},
	}
	if err := c.Validate(); err != nil {
		panic(err)
	}
	return c
}

// Load reads a toml file on top of the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, errors.Wrapf(err, "unable to decode config file %s", path)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Decode parses toml from a string on top of the defaults.
func Decode(data string) (*Config, error) {
	c := Default()
	if _, err := toml.Decode(data, c); err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the limits and compiles the derived fields.
func (c *Config) Validate() error {
	if c.MaxTokens <= 0 {
		return errors.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.MaxGroupDepth <= 0 {
		return errors.Errorf("max_group_depth must be positive, got %d", c.MaxGroupDepth)
	}
	if c.MaxTags < 0 {
		return errors.Errorf("max_tags must not be negative, got %d", c.MaxTags)
	}
	if c.MaxInValues <= 0 {
		c.MaxInValues = DefaultMaxInValues
	}
	if c.RankWindow <= 0 {
		c.RankWindow = DefaultRankWindow
	}

	re, err := regexp.Compile("(?i)" + c.UnlimitedTags)
	if err != nil {
		return errors.Wrapf(err, "invalid unlimited_tags pattern %q", c.UnlimitedTags)
	}
	c.unlimited = re

	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return errors.Wrapf(err, "invalid time_zone %q", c.TimeZone)
	}
	c.location = loc
	return nil
}

// IsUnlimitedTag reports whether the raw token is free with respect to the tag quota.
func (c *Config) IsUnlimitedTag(token string) bool {
	if c.unlimited == nil || c.UnlimitedTags == "" {
		return false
	}
	return c.unlimited.MatchString(token)
}

// Location is the time zone dates are parsed in.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}
