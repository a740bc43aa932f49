package service

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rcliao/memu-bridge/internal/memsvc"
)

// DefaultResourcesDir is used when the payload names no resources
// directory at all.
const DefaultResourcesDir = "data/resources"

// configKeys is the allow-list of payload fields forwarded to service
// construction. Everything else in the payload is ignored, which keeps the
// fingerprint insulated from request noise like conversation bodies.
var configKeys = []string{
	"llm_profiles",
	"blob_config",
	"database_config",
	"memorize_config",
	"retrieve_config",
	"workflow_runner",
	"user_config",
}

// FilteredConfig returns the recognized configuration subset of a payload,
// with llm_profiles base URLs normalized in place.
func FilteredConfig(payload map[string]any) map[string]any {
	out := make(map[string]any, len(configKeys))
	for _, k := range configKeys {
		if v, ok := payload[k]; ok && v != nil {
			out[k] = v
		}
	}
	massageLLMProfiles(out)
	return out
}

// Key derives the cache key for a payload: an explicit service_key, then
// the canonicalized resources directory, then "default".
func Key(payload map[string]any) string {
	if k, ok := payload["service_key"].(string); ok {
		if k = strings.TrimSpace(k); k != "" {
			return k
		}
	}
	abs, err := filepath.Abs(ResourcesDir(payload))
	if err != nil {
		return "default"
	}
	return abs
}

// ResourcesDir resolves the resources directory from blob_config, the
// top-level resources_dir, or the default.
func ResourcesDir(payload map[string]any) string {
	if bc, ok := payload["blob_config"].(map[string]any); ok {
		if dir, ok := bc["resources_dir"].(string); ok && dir != "" {
			return dir
		}
	}
	if dir, ok := payload["resources_dir"].(string); ok && dir != "" {
		return dir
	}
	return DefaultResourcesDir
}

// Fingerprint digests the filtered configuration. encoding/json writes map
// keys in sorted order, so the digest is deterministic across calls.
func Fingerprint(cfg map[string]any) string {
	b, err := json.Marshal(cfg)
	if err != nil {
		b = []byte(fmt.Sprintf("%v", cfg))
	}
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}

// DecodeConfig turns the filtered payload subset into a typed construction
// configuration.
func DecodeConfig(cfg map[string]any) (memsvc.Config, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return memsvc.Config{}, fmt.Errorf("encode config: %w", err)
	}
	var out memsvc.Config
	if err := json.Unmarshal(b, &out); err != nil {
		return memsvc.Config{}, fmt.Errorf("decode config: %w", err)
	}
	return out, nil
}

// massageLLMProfiles makes OpenAI-compatible profiles forgiving: SDK
// backends want base_url to end in /v1 (or a provider's /api/v1).
func massageLLMProfiles(cfg map[string]any) {
	profiles, ok := cfg["llm_profiles"].(map[string]any)
	if !ok {
		return
	}
	for _, v := range profiles {
		p, ok := v.(map[string]any)
		if !ok {
			continue
		}
		provider, _ := p["provider"].(string)
		if !strings.EqualFold(provider, "openai") {
			continue
		}
		backend, _ := p["client_backend"].(string)
		if backend != "" && backend != "sdk" {
			continue
		}
		base, _ := p["base_url"].(string)
		if normalized := normalizeBaseURL(base); normalized != "" {
			p["base_url"] = normalized
		}
	}
}

func normalizeBaseURL(url string) string {
	u := strings.TrimSpace(url)
	if u == "" {
		return u
	}
	u = strings.TrimRight(u, "/")
	if strings.HasSuffix(u, "/v1") || strings.HasSuffix(u, "/api/v1") {
		return u
	}
	return u + "/v1"
}
