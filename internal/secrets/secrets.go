// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file is one secret: the filename is the key and the trimmed contents
// are the value.
//
// Recognized keys: openai-api-key, backup-credentials-file.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// EnvBindings maps secret keys to the environment variables they fill.
var EnvBindings = map[string]string{
	"openai-api-key":          "OPENAI_API_KEY",
	"backup-credentials-file": "GOOGLE_APPLICATION_CREDENTIALS",
}

// Secrets maps key names to values.
type Secrets map[string]string

// Load reads all files in dir. A missing directory is not an error and
// yields an empty set. Unreadable files are logged and skipped.
func Load(dir string, log *slog.Logger) (Secrets, error) {
	if log == nil {
		log = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	s := make(Secrets)
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
			log.Warn("could not read secret", "name", name, "error", err)
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			s[name] = value
		}
	}
	return s, nil
}

// Keys returns the loaded key names in sorted order.
func (s Secrets) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Export sets the environment variable bound to each loaded key unless the
// variable is already set. It returns the variables it set.
func (s Secrets) Export(bindings map[string]string) ([]string, error) {
	var set []string
	for key, env := range bindings {
		v, ok := s[key]
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(env); exists {
			continue
		}
		if err := os.Setenv(env, v); err != nil {
			return set, fmt.Errorf("setting %s: %w", env, err)
		}
		set = append(set, env)
	}
	slices.Sort(set)
	return set, nil
}
