// Package history keeps a capped, newest-first log of generation runs in a
// single JSON file. The file is rewritten wholesale on every change.
package history

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ad_copy_planner/generator"
)

// DefaultLimit 默认保留的最近记录数。
const DefaultLimit = 20

// ErrNotFound is returned by Delete for an unknown id.
var ErrNotFound = errors.New("history entry not found")

// Entry 是一次成功生成的快照，创建后不可修改。
type Entry struct {
	ID           string                `json:"id"`
	TenantID     string                `json:"tenant_id,omitempty"`
	Timestamp    time.Time             `json:"timestamp"`
	SeedSummary  string                `json:"seed_summary"`
	Variations   []generator.Variation `json:"variations"`
	Conversation []generator.Turn      `json:"conversation"`
}

// NewEntry snapshots a session after a generation run.
func NewEntry(s generator.Session) Entry {
	return Entry{
		ID:           uuid.NewString(),
		TenantID:     s.TenantID,
		Timestamp:    time.Now(),
		SeedSummary:  s.Seed.Summary(),
		Variations:   append([]generator.Variation(nil), s.Results...),
		Conversation: append([]generator.Turn(nil), s.Turns...),
	}
}

// Store is a JSON file holding at most limit entries, newest first.
type Store struct {
	mu    sync.Mutex
	path  string
	limit int
}

func NewStore(path string, limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{path: path, limit: limit}
}

// Add prepends entry and drops the oldest entries of the same tenant beyond
// the store's limit. Other tenants' entries are untouched.
func (s *Store) Add(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := []Entry{entry}
	kept := 1
	for _, e := range s.loadAll() {
		if e.TenantID == entry.TenantID {
			if kept >= s.limit {
				continue
			}
			kept++
		}
		entries = append(entries, e)
	}
	return s.writeAll(entries)
}

// List returns entries of one tenant, newest first. An empty tenant lists all.
func (s *Store) List(tenantID string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for _, e := range s.loadAll() {
		if tenantID == "" || e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out
}

// Get 按 id 查找，tenantID 非空时只返回该租户的记录。
func (s *Store) Get(tenantID, id string) (Entry, error) {
	for _, e := range s.List(tenantID) {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}

// Delete removes a whole entry.
func (s *Store) Delete(tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.loadAll()
	for i, e := range entries {
		if e.ID != id || (tenantID != "" && e.TenantID != tenantID) {
			continue
		}
		entries = append(entries[:i], entries[i+1:]...)
		return s.writeAll(entries)
	}
	return ErrNotFound
}

// loadAll 读取失败或 JSON 损坏时视为没有历史，从不返回错误。
func (s *Store) loadAll() []Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.path).Msg("history unreadable, starting empty")
		}
		return nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("history corrupt, starting empty")
		return nil
	}
	return entries
}

func (s *Store) writeAll(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}
