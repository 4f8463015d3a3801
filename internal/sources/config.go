package sources

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FeedConfig configures a single RSS/Atom feed.
type FeedConfig struct {
	Name           string `yaml:"name"`
	URL            string `yaml:"url"`
	Category       string `yaml:"category"`
	RefreshMinutes int    `yaml:"refresh_minutes"`
}

// GDELTQueryConfig configures one GDELT keyword query.
type GDELTQueryConfig struct {
	Name           string   `yaml:"name"`
	Keywords       []string `yaml:"keywords"`
	RefreshMinutes int      `yaml:"refresh_minutes"`
}

// GDELTConfig configures the GDELT connector.
type GDELTConfig struct {
	Enabled bool               `yaml:"enabled"`
	Queries []GDELTQueryConfig `yaml:"queries"`
}

// BlueskyConfig configures the Bluesky connector. Handle and AppPassword
// come from the environment, not sources.yaml.
type BlueskyConfig struct {
	Enabled          bool     `yaml:"enabled"`
	FilterMode       string   `yaml:"filter_mode"`
	Keywords         []string `yaml:"keywords"`
	MaxPostsPerCycle int      `yaml:"max_posts_per_cycle"`
	RefreshMinutes   int      `yaml:"refresh_minutes"`

	Handle      string `yaml:"-"`
	AppPassword string `yaml:"-"`
}

// SubredditConfig configures one subreddit listing.
type SubredditConfig struct {
	Name  string `yaml:"name"`
	Sort  string `yaml:"sort"`
	Limit int    `yaml:"limit"`
}

// RedditConfig configures the Reddit connector.
type RedditConfig struct {
	Enabled            bool              `yaml:"enabled"`
	Subreddits         []SubredditConfig `yaml:"subreddits"`
	IncludeTopComments int               `yaml:"include_top_comments"`
	RefreshMinutes     int               `yaml:"refresh_minutes"`

	UserAgent string `yaml:"-"`
}

// Config is the parsed sources.yaml.
type Config struct {
	RSS     []FeedConfig  `yaml:"rss"`
	GDELT   GDELTConfig   `yaml:"gdelt"`
	Bluesky BlueskyConfig `yaml:"bluesky"`
	Reddit  RedditConfig  `yaml:"reddit"`
}

// LoadConfig reads sources.yaml and fills defaults.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read sources config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse sources config: %w", err)
	}

	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.RSS {
		if c.RSS[i].Category == "" {
			c.RSS[i].Category = "uncategorized"
		}

		if c.RSS[i].RefreshMinutes == 0 {
			c.RSS[i].RefreshMinutes = 30
		}
	}

	for i := range c.GDELT.Queries {
		if c.GDELT.Queries[i].RefreshMinutes == 0 {
			c.GDELT.Queries[i].RefreshMinutes = 15
		}
	}

	if c.Bluesky.FilterMode == "" {
		c.Bluesky.FilterMode = "keyword"
	}

	if c.Bluesky.MaxPostsPerCycle == 0 {
		c.Bluesky.MaxPostsPerCycle = 200
	}

	if c.Bluesky.RefreshMinutes == 0 {
		c.Bluesky.RefreshMinutes = 5
	}

	for i := range c.Reddit.Subreddits {
		if c.Reddit.Subreddits[i].Sort == "" {
			c.Reddit.Subreddits[i].Sort = "hot"
		}

		if c.Reddit.Subreddits[i].Limit == 0 {
			c.Reddit.Subreddits[i].Limit = 25
		}
	}

	if c.Reddit.IncludeTopComments == 0 {
		c.Reddit.IncludeTopComments = 3
	}

	if c.Reddit.RefreshMinutes == 0 {
		c.Reddit.RefreshMinutes = 30
	}

	if c.Reddit.UserAgent == "" {
		c.Reddit.UserAgent = defaultUserAgent
	}
}
