package music_player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/caarlos0/env/v11"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/bot"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/jukebot/internal/modules/music_player/infrastructure"
	"github.com/sglre6355/jukebot/internal/modules/music_player/presentation/discord"
)

// shutdownTimeout bounds tearing down all guilds on shutdown.
const shutdownTimeout = 10 * time.Second

func init() {
	bot.Register(&MusicPlayerModule{})
}

// Compile-time interface checks.
var (
	_ bot.ConfigurableModule = (*MusicPlayerModule)(nil)
	_ bot.AutocompleteModule = (*MusicPlayerModule)(nil)
)

// MusicPlayerModule provides music playback commands.
type MusicPlayerModule struct {
	config          *Config
	commandHandlers *discord.CommandHandlers
	autocomplete    *discord.AutocompleteHandler
	eventHandlers   *discord.EventHandlers
	lavalinkAdapter *infrastructure.LavalinkAdapter
	player          *usecases.PlayerService

	// Event-driven components
	eventBus            *infrastructure.ChannelEventBus
	notificationHandler *infrastructure.NotificationEventHandler
}

// Name returns the module name.
func (m *MusicPlayerModule) Name() string {
	return "music_player"
}

// Commands returns the slash commands for this module.
func (m *MusicPlayerModule) Commands() []*discordgo.ApplicationCommand {
	return discord.Commands()
}

// CommandHandlers returns the command handlers for this module.
func (m *MusicPlayerModule) CommandHandlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		"join":     m.commandHandlers.HandleJoin,
		"leave":    m.commandHandlers.HandleLeave,
		"play":     m.commandHandlers.HandlePlay,
		"playnext": m.commandHandlers.HandlePlayNext,
		"skip":     m.commandHandlers.HandleSkip,
		"stop":     m.commandHandlers.HandleStop,
		"pause":    m.commandHandlers.HandlePause,
		"resume":   m.commandHandlers.HandleResume,
		"queue":    m.commandHandlers.HandleQueue,
		"shuffle":  m.commandHandlers.HandleShuffle,
		"mute":     m.commandHandlers.HandleMute,
		"unmute":   m.commandHandlers.HandleUnmute,
		"deafen":   m.commandHandlers.HandleDeafen,
		"undeafen": m.commandHandlers.HandleUndeafen,
	}
}

// AutocompleteHandlers returns the autocomplete handlers for this module.
func (m *MusicPlayerModule) AutocompleteHandlers() map[string]bot.AutocompleteHandler {
	return map[string]bot.AutocompleteHandler{
		"play":     m.autocomplete.HandlePlay,
		"playnext": m.autocomplete.HandlePlay,
		"queue":    m.autocomplete.HandleQueue,
	}
}

// EventHandlers returns the event handlers for this module.
func (m *MusicPlayerModule) EventHandlers() []bot.EventHandler {
	return []bot.EventHandler{
		func(s *discordgo.Session, event *discordgo.VoiceServerUpdate) {
			m.handleVoiceServerUpdate(s, event)
		},
		func(s *discordgo.Session, event *discordgo.VoiceStateUpdate) {
			m.handleVoiceStateUpdate(s, event)
		},
	}
}

// LoadConfig loads module-specific configuration from environment variables.
func (m *MusicPlayerModule) LoadConfig() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// LoadConfig parses the module configuration from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSourcesConfig parses only the source backend configuration from the environment.
func LoadSourcesConfig() (*SourcesConfig, error) {
	cfg := &SourcesConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewResolver creates the track resolver with the configured source backends.
// Spotify is left out when its credentials are missing or rejected.
func NewResolver(ctx context.Context, cfg *SourcesConfig) (*usecases.ResolverService, error) {
	youtube, err := infrastructure.NewYouTubeSource(infrastructure.YouTubeConfig{
		Proxy:        cfg.YouTubeProxy,
		DisableYtdlp: cfg.DisableYtdlp,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube source: %w", err)
	}

	var metadata ports.MetadataSource
	if cfg.SpotifyEnabled() {
		spotify, err := infrastructure.NewSpotifySource(ctx, infrastructure.SpotifyConfig{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
		})
		if err != nil {
			slog.Warn("spotify disabled", "error", err)
		} else {
			metadata = spotify
		}
	} else {
		slog.Info("spotify credentials not set, spotify links disabled")
	}

	return usecases.NewResolverService(
		youtube,
		metadata,
		cfg.Matcher(),
		cfg.RetryPolicy(),
		cfg.ResolverConfig(),
	), nil
}

// Init initializes the module.
func (m *MusicPlayerModule) Init(deps bot.ModuleDependencies) error {
	if deps.Session == nil {
		return errors.New("music_player requires a Discord session")
	}
	if m.config == nil {
		return errors.New("music_player configuration not loaded")
	}
	ctx := context.Background()

	// Create event bus
	m.eventBus = infrastructure.NewChannelEventBus(infrastructure.DefaultEventBufferSize)

	// Create Lavalink adapter
	lavalinkAdapter, err := infrastructure.NewLavalinkAdapter(ctx, deps.Session, infrastructure.LavalinkConfig{
		Address:  m.config.LavalinkAddress,
		Password: m.config.LavalinkPassword,
		Secure:   m.config.LavalinkSecure,
	})
	if err != nil {
		m.eventBus.Close()
		return err
	}
	m.lavalinkAdapter = lavalinkAdapter

	resolver, err := NewResolver(ctx, &m.config.SourcesConfig)
	if err != nil {
		m.closeInfrastructure()
		return err
	}

	// Create infrastructure
	repo := infrastructure.NewMemoryRepository()
	members := infrastructure.NewDiscordMembers(deps.Session)
	notifier := infrastructure.NewNotifier(deps.Session)

	m.player = usecases.NewPlayerService(
		repo,
		resolver,
		lavalinkAdapter,
		lavalinkAdapter,
		m.eventBus,
		m.config.PlayerConfig(),
	)
	lavalinkAdapter.SetStreamEventHandler(m.player)

	m.notificationHandler = infrastructure.NewNotificationEventHandler(notifier, m.eventBus, members)
	m.notificationHandler.Start()

	// Create presentation handlers
	botID, err := snowflake.Parse(deps.Session.State.User.ID)
	if err != nil {
		m.closeInfrastructure()
		return err
	}
	m.commandHandlers = discord.NewCommandHandlers(m.player, members)
	m.autocomplete = discord.NewAutocompleteHandler(m.player, resolver)
	m.eventHandlers = discord.NewEventHandlers(botID, m.player)

	slog.Info("music_player module initialized",
		"lavalink", m.config.LavalinkAddress,
		"spotify", m.config.SpotifyEnabled(),
		"idle_timeout", m.config.IdleTimeout,
	)
	return nil
}

// Shutdown leaves every voice channel and cleans up module resources.
func (m *MusicPlayerModule) Shutdown() error {
	if m.player != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		m.player.Close(ctx)
		cancel()
	}
	m.closeInfrastructure()
	return nil
}

func (m *MusicPlayerModule) closeInfrastructure() {
	// Close event bus
	if m.eventBus != nil {
		m.eventBus.Close()
	}

	// Close Lavalink connection
	if m.lavalinkAdapter != nil {
		m.lavalinkAdapter.Close()
	}
}

// Event handlers.

func (m *MusicPlayerModule) handleVoiceServerUpdate(
	_ *discordgo.Session,
	event *discordgo.VoiceServerUpdate,
) {
	if m.lavalinkAdapter != nil {
		m.lavalinkAdapter.OnVoiceServerUpdate(event)
	}
}

func (m *MusicPlayerModule) handleVoiceStateUpdate(
	s *discordgo.Session,
	event *discordgo.VoiceStateUpdate,
) {
	if m.lavalinkAdapter != nil {
		m.lavalinkAdapter.OnVoiceStateUpdate(event)
	}
	if m.eventHandlers != nil {
		m.eventHandlers.HandleVoiceStateUpdate(s, event)
	}
}
