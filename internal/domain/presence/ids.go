package presence

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const deviceIDFile = "device_id"

// DeviceID returns the stable identifier for this installation,
// creating and persisting one under stateDir on first use. A new id is
// minted if the stored one is unreadable or not a UUID.
func DeviceID(stateDir string) (string, error) {
	path := filepath.Join(stateDir, deviceIDFile)

	raw, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(raw))
		if _, parseErr := uuid.Parse(id); parseErr == nil {
			return id, nil
		}
		log.Warn().Str("path", path).Msg("stored device id is invalid, reissuing")
	}

	id := uuid.NewString()
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", err
	}
	return id, nil
}

// NewSessionID mints a fresh per-process session identifier.
func NewSessionID() string {
	return uuid.NewString()
}
