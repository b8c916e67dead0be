package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"elcotec/internal"
	"elcotec/internal/storage"
)

// MailStoreService persists raw messages to disk and registers them in the
// messages table. The raw file is content-addressed, so refetching the same
// message never duplicates it on disk.
type MailStoreService struct {
	db         *storage.DB
	rawMailDir string
}

func NewMailStoreService(db *storage.DB, rawMailDir string) *MailStoreService {
	return &MailStoreService{db: db, rawMailDir: rawMailDir}
}

func (s *MailStoreService) Store(msg internal.FetchedMailMessage) (internal.MessageRow, bool, error) {
	hashBytes := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return internal.MessageRow{}, false, err
	}

	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return internal.MessageRow{}, false, err
		}
	}

	existing, err := s.db.GetMessageByProviderMessageID(msg.Provider, msg.MessageID)
	if err != nil {
		return internal.MessageRow{}, false, err
	}

	row, err := s.db.UpsertMessage(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, "fetched")
	if err != nil {
		return internal.MessageRow{}, false, err
	}
	return row, existing == nil, nil
}
