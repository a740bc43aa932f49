package bridge

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/rcliao/memu-bridge/internal/convo"
)

// writeResourceFile persists a normalized conversation under dir and
// returns its path. The name combines a short content hash (stable across
// retries, useful when debugging), a timestamp, and a random suffix so
// retried writes stay distinguishable.
func writeResourceFile(dir string, messages []convo.Message) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create resources dir: %w", err)
	}

	b, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("encode conversation: %w", err)
	}

	sum := sha1.Sum(b)
	u := uuid.New()
	name := fmt.Sprintf("conversation_%s_%d_%s.json",
		hex.EncodeToString(sum[:])[:12], time.Now().Unix(), hex.EncodeToString(u[:]))

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("write resource: %w", err)
	}
	return path, nil
}
