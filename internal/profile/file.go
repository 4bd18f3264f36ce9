package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ecom-support/chatbot/pkg/logger"
)

// FileSource serves profiles from a JSON object keyed by user ID. The file
// is read once and replaced atomically by Reload. A missing or unreadable
// file leaves only the guest profile.
type FileSource struct {
	path     string
	profiles atomic.Pointer[map[string]Profile]
}

func NewFileSource(path string) *FileSource {
	fs := &FileSource{path: path}
	fs.profiles.Store(&map[string]Profile{GuestID: Guest()})
	if err := fs.Reload(); err != nil {
		logger.Warn("Profile file unavailable, using guest profile only",
			zap.String("path", path),
			zap.Error(err),
		)
	}
	return fs
}

func (fs *FileSource) Lookup(_ context.Context, userID string) (Profile, bool, error) {
	p, ok := (*fs.profiles.Load())[userID]
	return p, ok, nil
}

func (fs *FileSource) Len() int {
	return len(*fs.profiles.Load())
}

// Reload reads the file again. On failure the guest-only set is installed
// and the error is returned for the caller to log.
func (fs *FileSource) Reload() error {
	profiles, err := ReadFile(fs.path)
	if err != nil {
		fs.profiles.Store(&map[string]Profile{GuestID: Guest()})
		return err
	}

	if _, ok := profiles[GuestID]; !ok {
		profiles[GuestID] = Guest()
	}
	fs.profiles.Store(&profiles)

	logger.Info("User profiles loaded",
		zap.String("path", fs.path),
		zap.Int("count", len(profiles)),
	)
	return nil
}

// ReadFile parses a profiles JSON file. Entries that are not objects are
// skipped.
func ReadFile(path string) (map[string]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("profile file not found: %w", err)
		}
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid profile file: %w", err)
	}

	profiles := make(map[string]Profile, len(raw))
	for userID, msg := range raw {
		var fields map[string]interface{}
		if err := json.Unmarshal(msg, &fields); err != nil {
			logger.Warn("Skipping malformed profile entry", zap.String("user_id", userID))
			continue
		}
		profiles[userID] = fromFields(userID, fields)
	}

	return profiles, nil
}
