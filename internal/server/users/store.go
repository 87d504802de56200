package users

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/scs-backend/scs/internal/common"
)

// Store persists the full collection of user records in a single flat JSON
// file. Every save rewrites the whole collection atomically: the records are
// serialized to a uniquely named temp file in the same directory, which is
// then renamed over the canonical file, so no reader ever observes a
// partially written store.
//
// All mutations go through Insert, which holds a process-wide mutex across
// the whole load-check-append-save sequence; two concurrent registrations
// can therefore never lose a record or produce a duplicate email.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the full collection. A missing or unparseable file yields an
// empty collection rather than an error: the store file is bootstrapped on
// first insert.
func (s *Store) Load() []UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() []UserRecord {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var records []UserRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil
	}
	return records
}

// save writes the entire collection via temp-file-then-rename. This is the
// only write path to the canonical file.
func (s *Store) save(records []UserRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal user records: %w", err)
	}

	tmp := fmt.Sprintf("%s.%s.tmp", s.path, uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o660); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(tmp), err)
	}
	return nil
}

// FindByEmail performs a case-insensitive lookup and returns
// common.ErrNotFound if no record matches.
func (s *Store) FindByEmail(email string) (*UserRecord, error) {
	email = NormalizeEmail(email)
	for _, rec := range s.Load() {
		if strings.ToLower(rec.Email) == email {
			return &rec, nil
		}
	}
	return nil, common.ErrNotFound
}

// Insert appends a new record if no existing record has the same email under
// case-insensitive comparison, and returns common.ErrConflict otherwise.
func (s *Store) Insert(rec UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	email := strings.ToLower(rec.Email)
	for _, existing := range records {
		if strings.ToLower(existing.Email) == email {
			return common.ErrConflict
		}
	}
	return s.save(append(records, rec))
}
