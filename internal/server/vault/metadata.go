package vault

import (
	"fmt"

	"github.com/scs-backend/scs/internal/common"
)

// MetaSuffix is appended to a stored blob name to form its sidecar file.
const MetaSuffix = ".meta.json"

// Metadata is the sidecar record stored next to each encrypted blob. The
// iv, salt and file_hash fields are opaque client-encryption parameters: the
// server validates that they are present and passes them through unmodified,
// never interpreting or recomputing them.
type Metadata struct {
	OriginalName  string `json:"original_name"`
	StoredName    string `json:"stored_name"`
	OriginalSize  int64  `json:"original_size"`
	EncryptedSize int64  `json:"encrypted_size"`
	IV            string `json:"iv"`
	Salt          string `json:"salt"`
	FileHash      string `json:"file_hash"`
	UploadedAt    string `json:"uploaded_at"`
}

// UploadMetadata is the caller-supplied part of a sidecar. Pointer fields
// let a missing field be told apart from a zero value, since all five are
// required.
type UploadMetadata struct {
	OriginalName *string `json:"original_name"`
	OriginalSize *int64  `json:"original_size"`
	IV           *string `json:"iv"`
	Salt         *string `json:"salt"`
	FileHash     *string `json:"file_hash"`
}

func (m *UploadMetadata) validate() error {
	for _, f := range []struct {
		name    string
		present bool
	}{
		{"original_name", m.OriginalName != nil && *m.OriginalName != ""},
		{"original_size", m.OriginalSize != nil},
		{"iv", m.IV != nil},
		{"salt", m.Salt != nil},
		{"file_hash", m.FileHash != nil},
	} {
		if !f.present {
			return fmt.Errorf("%w: missing metadata field: %s", common.ErrInvalidInput, f.name)
		}
	}
	return nil
}
