package state

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const stateFileName = "hyperliquid_news_state_elfa.json"

// stalenessWindow is how long a persisted record stays valid. Older records
// are discarded on load so the bot never suppresses posts against day-old
// content.
const stalenessWindow = 24 * time.Hour

// PostState is the on-disk record of the last successful post, used for
// duplicate suppression only.
type PostState struct {
	LastNewsID   string    `json:"last_news_id"`
	LastPostTime time.Time `json:"last_post_time"`
	LastContent  string    `json:"last_content"`
}

// Store reads and writes the post state file. Persistence is best-effort:
// read failures degrade to defaults and write failures are logged and
// swallowed, neither ever stops the loop.
type Store struct {
	dataDir string
	logger  *slog.Logger
	now     func() time.Time
}

// NewStore creates a store rooted at dataDir.
func NewStore(dataDir string, logger *slog.Logger) *Store {
	return &Store{
		dataDir: dataDir,
		logger:  logger,
		now:     time.Now,
	}
}

func defaultState() PostState {
	return PostState{
		LastNewsID:   "",
		LastPostTime: time.Unix(0, 0).UTC(),
		LastContent:  "",
	}
}

// Load returns the persisted post state, or defaults when the file is
// missing, unreadable, unparseable, or older than the staleness window.
func (s *Store) Load() PostState {
	path := filepath.Join(s.dataDir, stateFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("failed to read post state, using defaults", "path", path, "error", err)
		}
		return defaultState()
	}

	var state PostState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Error("failed to parse post state, using defaults", "path", path, "error", err)
		return defaultState()
	}

	if s.now().Sub(state.LastPostTime) > stalenessWindow {
		s.logger.Info("post state is stale, using defaults",
			"last_post_time", state.LastPostTime.Format(time.RFC3339))
		return defaultState()
	}

	return state
}

// Save writes a new record for the given content. The news id is a
// time-derived uniqueness token, not a semantic identifier.
func (s *Store) Save(content string) {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		s.logger.Error("failed to create data directory", "dir", s.dataDir, "error", err)
		return
	}

	now := s.now()
	state := PostState{
		LastNewsID:   strconv.FormatInt(now.UnixNano(), 10),
		LastPostTime: now,
		LastContent:  content,
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		s.logger.Error("failed to marshal post state", "error", err)
		return
	}

	path := filepath.Join(s.dataDir, stateFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.logger.Error("failed to write post state", "path", path, "error", err)
	}
}
