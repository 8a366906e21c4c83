package infrastructure

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

var _ domain.GuildStateRepository = (*MemoryRepository)(nil)

// MemoryRepository keeps guild states in a map for the lifetime of the process.
// Its lock is taken only to look up, insert or drop an entry.
type MemoryRepository struct {
	mu     sync.RWMutex
	guilds map[snowflake.ID]*domain.GuildState
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{guilds: make(map[snowflake.ID]*domain.GuildState)}
}

func (r *MemoryRepository) Get(guildID snowflake.ID) *domain.GuildState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.guilds[guildID]
}

// GetOrCreate returns the guild's state. Concurrent callers for a new guild all
// receive the same state.
func (r *MemoryRepository) GetOrCreate(guildID snowflake.ID) (*domain.GuildState, bool) {
	if state := r.Get(guildID); state != nil {
		return state, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.guilds[guildID]; ok {
		return state, false
	}
	state := domain.NewGuildState(guildID)
	r.guilds[guildID] = state
	return state, true
}

func (r *MemoryRepository) Delete(guildID snowflake.ID) {
	r.mu.Lock()
	delete(r.guilds, guildID)
	r.mu.Unlock()
}

func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.guilds)
}
