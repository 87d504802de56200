// Package vault implements the per-user encrypted file store: namespace
// resolution, filename sanitization and path containment, duplicate-name
// resolution, and blob plus metadata-sidecar persistence. The server treats
// every blob as an opaque ciphertext and never decrypts anything.
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/scs-backend/scs/internal/common"
	"github.com/scs-backend/scs/internal/logging"
	"github.com/scs-backend/scs/internal/server/users"
)

const uploadedAtLayout = "2006-01-02T15:04:05Z"

// Service performs all vault operations. Mutating operations (Upload,
// Delete) re-run full credential verification; read operations (Download,
// OpenBlob, List) require the account to exist. Every operation that touches
// a caller-influenced name re-validates path containment before hitting the
// filesystem.
type Service struct {
	root         string
	users        *users.Service
	maxBlobBytes int64
	logger       logging.Logger
}

func NewService(root string, us *users.Service, maxBlobBytes int64, logger logging.Logger) *Service {
	return &Service{
		root:         root,
		users:        us,
		maxBlobBytes: maxBlobBytes,
		logger:       logger.With("module", "vault"),
	}
}

// StoredFileInfo reports the outcome of an upload.
type StoredFileInfo struct {
	StoredName string
	Size       int64
}

// BlobRef locates a stored blob for the transport layer to stream. The path
// has already passed the containment check.
type BlobRef struct {
	StoredName string
	Path       string
	Size       int64
}

func (s *Service) namespaceDir(email string) string {
	return filepath.Join(s.root, users.NamespaceID(email))
}

// Upload verifies the caller, validates and sanitizes the supplied metadata,
// and persists the blob together with its sidecar. Nothing is written unless
// every validation has passed, and a sidecar failure rolls the blob back, so
// no half-pair is ever left on disk.
func (s *Service) Upload(ctx context.Context, email, clientHash string, meta UploadMetadata, blob []byte) (*StoredFileInfo, error) {
	if _, err := s.users.Verify(ctx, email, clientHash); err != nil {
		return nil, err
	}
	if err := meta.validate(); err != nil {
		return nil, err
	}
	if int64(len(blob)) > s.maxBlobBytes {
		return nil, common.ErrTooLarge
	}

	dir := s.namespaceDir(email)
	if err := os.MkdirAll(dir, 0o770); err != nil {
		s.logger.Error(ctx, "creating namespace directory", "error", err.Error())
		return nil, common.ErrInternal
	}

	safeName := SanitizeFilename(*meta.OriginalName)

	f, storedName, err := s.createExclusive(ctx, dir, safeName)
	if err != nil {
		return nil, err
	}
	blobPath := filepath.Join(dir, storedName)

	if _, err := f.Write(blob); err != nil {
		_ = f.Close()
		_ = os.Remove(blobPath)
		s.logger.Error(ctx, "writing blob", "error", err.Error())
		return nil, common.ErrInternal
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(blobPath)
		s.logger.Error(ctx, "closing blob", "error", err.Error())
		return nil, common.ErrInternal
	}

	record := Metadata{
		OriginalName:  *meta.OriginalName,
		StoredName:    storedName,
		OriginalSize:  *meta.OriginalSize,
		EncryptedSize: int64(len(blob)),
		IV:            *meta.IV,
		Salt:          *meta.Salt,
		FileHash:      *meta.FileHash,
		UploadedAt:    time.Now().UTC().Format(uploadedAtLayout),
	}
	if err := writeSidecar(blobPath+MetaSuffix, &record); err != nil {
		_ = os.Remove(blobPath)
		s.logger.Error(ctx, "writing sidecar", "error", err.Error())
		return nil, common.ErrInternal
	}

	s.logger.Info(ctx, "blob stored",
		"namespace", users.NamespaceID(email), "stored_name", storedName, "size", len(blob))
	return &StoredFileInfo{StoredName: storedName, Size: int64(len(blob))}, nil
}

// createExclusive picks a free stored name and claims it atomically with
// O_EXCL, so two concurrent uploads of the same display name can never share
// a path. On a collision between probe and create it simply resolves again.
func (s *Service) createExclusive(ctx context.Context, dir, name string) (*os.File, string, error) {
	for {
		candidate := ResolveDuplicate(dir, name)
		path := filepath.Join(dir, candidate)

		if !isInside(dir, path) {
			s.logger.Warn(ctx, "path traversal attempt blocked",
				"namespace", filepath.Base(dir), "candidate", candidate)
			return nil, "", common.ErrPathTraversal
		}

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o660)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			s.logger.Error(ctx, "claiming stored name", "error", err.Error())
			return nil, "", common.ErrInternal
		}
		// lost the race for this candidate, probe again
	}
}

// Download returns the parsed sidecar metadata and a reference the transport
// uses to stream the raw bytes. Both the blob and its sidecar must exist.
func (s *Service) Download(ctx context.Context, email, filename string) (*Metadata, *BlobRef, error) {
	if _, err := s.users.Exists(ctx, email); err != nil {
		return nil, nil, err
	}

	ref, err := s.resolveExisting(ctx, email, filename)
	if err != nil {
		return nil, nil, err
	}

	meta, err := readSidecar(ref.Path + MetaSuffix)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, common.ErrNotFound
		}
		s.logger.Error(ctx, "reading sidecar", "error", err.Error())
		return nil, nil, common.ErrInternal
	}
	return meta, ref, nil
}

// OpenBlob opens the stored ciphertext for streaming. The caller owns the
// returned ReadCloser.
func (s *Service) OpenBlob(ctx context.Context, email, filename string) (io.ReadCloser, *BlobRef, error) {
	if _, err := s.users.Exists(ctx, email); err != nil {
		return nil, nil, err
	}

	ref, err := s.resolveExisting(ctx, email, filename)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(ref.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, common.ErrNotFound
		}
		s.logger.Error(ctx, "opening blob", "error", err.Error())
		return nil, nil, common.ErrInternal
	}
	return f, ref, nil
}

// List returns the sidecar metadata of every stored file in the caller's
// namespace, in lexicographic order of the sidecar names. A sidecar that
// fails to parse is skipped; one corrupt record must not fail the listing.
func (s *Service) List(ctx context.Context, email string) ([]Metadata, error) {
	if _, err := s.users.Exists(ctx, email); err != nil {
		return nil, err
	}

	files := make([]Metadata, 0)

	entries, err := os.ReadDir(s.namespaceDir(email))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return files, nil
		}
		s.logger.Error(ctx, "reading namespace directory", "error", err.Error())
		return nil, common.ErrInternal
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), MetaSuffix) {
			continue
		}
		meta, err := readSidecar(filepath.Join(s.namespaceDir(email), entry.Name()))
		if err != nil {
			s.logger.Warn(ctx, "skipping unreadable sidecar", "name", entry.Name())
			continue
		}
		files = append(files, *meta)
	}
	return files, nil
}

// Delete verifies the caller and removes the blob together with its sidecar.
// A sidecar that is already gone is not an error; the pair is best-effort
// cleaned up as a unit.
func (s *Service) Delete(ctx context.Context, email, clientHash, filename string) error {
	if _, err := s.users.Verify(ctx, email, clientHash); err != nil {
		return err
	}

	ref, err := s.resolveExisting(ctx, email, filename)
	if err != nil {
		return err
	}

	if err := os.Remove(ref.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Error(ctx, "removing blob", "error", err.Error())
		return common.ErrInternal
	}
	if err := os.Remove(ref.Path + MetaSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Error(ctx, "removing sidecar", "error", err.Error())
		return common.ErrInternal
	}

	s.logger.Info(ctx, "blob deleted",
		"namespace", users.NamespaceID(email), "stored_name", ref.StoredName)
	return nil
}

// resolveExisting sanitizes the requested name, enforces containment and
// requires the blob to be present.
func (s *Service) resolveExisting(ctx context.Context, email, filename string) (*BlobRef, error) {
	safeName := SanitizeFilename(strings.TrimSpace(filename))
	dir := s.namespaceDir(email)
	if _, err := os.Stat(dir); err != nil {
		return nil, common.ErrNotFound
	}
	path := filepath.Join(dir, safeName)

	if !isInside(dir, path) {
		s.logger.Warn(ctx, "path traversal attempt blocked",
			"namespace", users.NamespaceID(email), "candidate", safeName)
		return nil, common.ErrPathTraversal
	}

	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return nil, common.ErrNotFound
	}
	return &BlobRef{StoredName: safeName, Path: path, Size: fi.Size()}, nil
}

func writeSidecar(path string, meta *Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}
	return os.WriteFile(path, data, 0o660)
}

func readSidecar(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse sidecar %s: %w", filepath.Base(path), err)
	}
	return &meta, nil
}
