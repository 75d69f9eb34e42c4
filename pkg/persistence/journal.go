package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/trconf"
)

// JournalVersion is the current version of the journal file format.
const JournalVersion = 1

// journalFile is the on-disk journal.
type journalFile struct {
	// Version is the journal file format version.
	Version int `json:"version"`

	// SavedAt is when the journal was last saved.
	SavedAt time.Time `json:"saved_at"`

	// Unwind is the pending coordinator restore.
	Unwind trconf.Unwind `json:"unwind"`
}

// JournalStore persists the FRC unwind to a JSON file.
type JournalStore struct {
	mu   sync.Mutex
	path string
}

// NewJournalStore creates a journal store at path.
func NewJournalStore(path string) *JournalStore {
	return &JournalStore{path: path}
}

// Path returns the journal file path.
func (s *JournalStore) Path() string { return s.path }

// Save writes u, replacing any previous journal.
func (s *JournalStore) Save(u *trconf.Unwind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(journalFile{
		Version: JournalVersion,
		SavedAt: time.Now(),
		Unwind:  *u,
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load reads the journal.
// Returns nil, nil if the file doesn't exist.
func (s *JournalStore) Load() (*trconf.Unwind, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var f journalFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f.Unwind, nil
}

// Clear removes the journal file.
func (s *JournalStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

var _ trconf.Journal = (*JournalStore)(nil)
