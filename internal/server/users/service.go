// Package users implements the account store and the double-hash
// authentication protocol. The client sends a hash it derived from the
// password itself; the server stores only a second, server-salted hash of
// that value and never sees the password or any key material in the clear.
package users

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/scs-backend/scs/internal/common"
	"github.com/scs-backend/scs/internal/logging"
)

const (
	// ClientHashLength is the length of a hex-encoded SHA-256 digest, the
	// shape of the client-side password hash.
	ClientHashLength = 64

	// ClientSaltLength is the length of the client's hex-encoded 16-byte
	// key-derivation salt.
	ClientSaltLength = 32

	serverSaltBytes = 16

	createdAtLayout = "2006-01-02T15:04:05Z"
)

var (
	emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	hexRegexp   = regexp.MustCompile(`^[0-9a-fA-F]+$`)
)

// NormalizeEmail lower-cases and trims an address; all lookups and storage
// use the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NamespaceID derives the per-user storage directory name from the
// normalized email: the first 16 hex characters of its SHA-256. The raw
// address never appears on the filesystem.
func NamespaceID(email string) string {
	sum := sha256.Sum256([]byte(NormalizeEmail(email)))
	return hex.EncodeToString(sum[:])[:16]
}

// Service provides registration and credential verification on top of the
// flat-file Store.
type Service struct {
	store       *Store
	storageRoot string
	logger      logging.Logger
}

// NewService constructs a Service. storageRoot is the directory under which
// per-user namespace directories are created at registration.
func NewService(store *Store, storageRoot string, logger logging.Logger) *Service {
	return &Service{
		store:       store,
		storageRoot: storageRoot,
		logger:      logger.With("module", "users"),
	}
}

// Register validates the supplied fields, creates and persists a new record,
// and provisions the user's namespace directory. The client's salt is
// returned unchanged so the caller can echo it back.
func (s *Service) Register(ctx context.Context, email, clientHash, clientSalt string) (*UserRecord, error) {
	email = NormalizeEmail(email)

	if !emailRegexp.MatchString(email) {
		return nil, fmt.Errorf("%w: invalid email format", common.ErrInvalidInput)
	}
	if len(clientHash) != ClientHashLength || !hexRegexp.MatchString(clientHash) {
		return nil, fmt.Errorf("%w: invalid password hash format", common.ErrInvalidInput)
	}
	if len(clientSalt) != ClientSaltLength || !hexRegexp.MatchString(clientSalt) {
		return nil, fmt.Errorf("%w: invalid salt format", common.ErrInvalidInput)
	}

	serverSalt, err := common.MakeRandHexString(serverSaltBytes)
	if err != nil {
		return nil, common.ErrInternal
	}

	rec := UserRecord{
		Email:        email,
		PasswordHash: hashWithSalt(clientHash, serverSalt),
		ClientSalt:   clientSalt,
		ServerSalt:   serverSalt,
		CreatedAt:    time.Now().UTC().Format(createdAtLayout),
	}

	if err := s.store.Insert(rec); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, common.ErrConflict
		}
		s.logger.Error(ctx, "persisting user record", "error", err.Error())
		return nil, common.ErrInternal
	}

	// Idempotent: registration must succeed even if the directory is
	// already there.
	dir := filepath.Join(s.storageRoot, NamespaceID(email))
	if err := os.MkdirAll(dir, 0o770); err != nil {
		s.logger.Error(ctx, "creating namespace directory", "error", err.Error())
		return nil, common.ErrInternal
	}

	s.logger.Info(ctx, "user registered", "namespace", NamespaceID(email))
	return &rec, nil
}

// Verify checks the client hash against the stored record. An unknown
// account and a wrong hash both return common.ErrAuthFailure; for unknown
// accounts a hash is still computed against a throwaway salt so the two
// cases take comparable time.
func (s *Service) Verify(ctx context.Context, email, clientHash string) (*UserRecord, error) {
	rec, err := s.store.FindByEmail(email)
	if err != nil {
		burnSalt, _ := common.MakeRandHexString(serverSaltBytes)
		hashWithSalt(clientHash, burnSalt)
		return nil, common.ErrAuthFailure
	}

	expected := hashWithSalt(clientHash, rec.ServerSalt)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(rec.PasswordHash)) != 1 {
		return nil, common.ErrAuthFailure
	}
	return rec, nil
}

// Login is Verify plus access to the stored client salt, which the client
// needs to re-derive its local key.
func (s *Service) Login(ctx context.Context, email, clientHash string) (*UserRecord, error) {
	return s.Verify(ctx, email, clientHash)
}

// Exists returns the record if the account is known and common.ErrAuthFailure
// otherwise. Read-only vault operations authenticate with this weaker check;
// mutating ones use Verify.
func (s *Service) Exists(ctx context.Context, email string) (*UserRecord, error) {
	rec, err := s.store.FindByEmail(email)
	if err != nil {
		return nil, common.ErrAuthFailure
	}
	return rec, nil
}

func hashWithSalt(clientHash, serverSalt string) string {
	sum := sha256.Sum256([]byte(clientHash + serverSalt))
	return hex.EncodeToString(sum[:])
}
