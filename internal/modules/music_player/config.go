package music_player

import (
	"time"

	"github.com/sglre6355/jukebot/internal/modules/music_player/application/usecases"
)

// Config holds the music player module configuration.
type Config struct {
	LavalinkAddress  string `env:"LAVALINK_ADDRESS,notEmpty"`
	LavalinkPassword string `env:"LAVALINK_PASSWORD,notEmpty"`
	LavalinkSecure   bool   `env:"LAVALINK_SECURE" envDefault:"false"`

	StreamOpenTimeout time.Duration `env:"STREAM_OPEN_TIMEOUT" envDefault:"15s"`

	// IdleTimeout of zero disables idle auto-leave.
	IdleTimeout time.Duration `env:"IDLE_TIMEOUT" envDefault:"5m"`

	SourcesConfig
}

// SourcesConfig configures the source backends and the resolver. It is shared with
// the offline track tool, which has no Lavalink node.
type SourcesConfig struct {
	// Spotify links and searches are disabled unless both are set.
	SpotifyClientID     string `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`

	YouTubeProxy string `env:"YOUTUBE_PROXY"`
	DisableYtdlp bool   `env:"DISABLE_YTDLP" envDefault:"false"`

	ResolveTimeout      time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"20s"`
	ResolveEntryTimeout time.Duration `env:"RESOLVE_ENTRY_TIMEOUT" envDefault:"8s"`

	RetryMaxAttempts  int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"3"`
	RetryInitialDelay time.Duration `env:"RETRY_INITIAL_DELAY" envDefault:"500ms"`
	RetryMaxDelay     time.Duration `env:"RETRY_MAX_DELAY" envDefault:"5s"`

	BackendRequestsPerSecond float64 `env:"BACKEND_REQUESTS_PER_SECOND" envDefault:"5"`
	BackendBurst             int     `env:"BACKEND_BURST" envDefault:"5"`

	PlaylistLimit      int `env:"PLAYLIST_LIMIT" envDefault:"50"`
	SearchLimit        int `env:"SEARCH_LIMIT" envDefault:"5"`
	ResolveConcurrency int `env:"RESOLVE_CONCURRENCY" envDefault:"4"`

	MatchDurationTolerance time.Duration `env:"MATCH_DURATION_TOLERANCE" envDefault:"3s"`
	MatchMinScore          float64       `env:"MATCH_MIN_SCORE" envDefault:"0.55"`
}

// SpotifyEnabled reports whether Spotify credentials are configured.
func (c *SourcesConfig) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}

// RetryPolicy returns the backend retry policy.
func (c *SourcesConfig) RetryPolicy() usecases.RetryPolicy {
	return usecases.NewRetryPolicy(
		c.RetryMaxAttempts,
		c.RetryInitialDelay,
		c.RetryMaxDelay,
		c.BackendRequestsPerSecond,
		c.BackendBurst,
	)
}

// Matcher returns the cross-source matcher.
func (c *SourcesConfig) Matcher() usecases.Matcher {
	return usecases.Matcher{
		DurationTolerance: c.MatchDurationTolerance,
		MinScore:          c.MatchMinScore,
	}
}

// ResolverConfig returns the resolver limits.
func (c *SourcesConfig) ResolverConfig() usecases.ResolverConfig {
	return usecases.ResolverConfig{
		Timeout:       c.ResolveTimeout,
		EntryTimeout:  c.ResolveEntryTimeout,
		PlaylistLimit: c.PlaylistLimit,
		SearchLimit:   c.SearchLimit,
		Concurrency:   c.ResolveConcurrency,
	}
}

// PlayerConfig returns the playback timeouts.
func (c *Config) PlayerConfig() usecases.PlayerConfig {
	cfg := usecases.DefaultPlayerConfig()
	cfg.OpenTimeout = c.StreamOpenTimeout
	cfg.IdleTimeout = c.IdleTimeout
	return cfg
}
