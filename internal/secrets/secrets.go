// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: anthropic-api-key, openai-api-key, x-access-token, redis-url.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Key file names.
const (
	AnthropicAPIKey = "anthropic-api-key"
	OpenAIAPIKey    = "openai-api-key"
	XAccessToken    = "x-access-token"
	RedisURL        = "redis-url"
)

// Secrets maps key file names to their values.
type Secrets map[string]string

// Get returns fallback when it is set, otherwise the secret for key.
// Explicit configuration wins over the secrets directory.
func (s Secrets) Get(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	return s[key]
}

// Keys returns the loaded key names, sorted.
func (s Secrets) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (Secrets, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(Secrets)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}
