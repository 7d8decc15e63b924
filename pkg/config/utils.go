package config

import (
	"os"
	"path/filepath"
)

// FindEnvFile walks up from the working directory looking for filename,
// which defaults to .env.
func FindEnvFile(filename string) (string, error) {
	if filename == "" {
		filename = ".env"
	}
	if filepath.IsAbs(filename) {
		if _, err := os.Stat(filename); err != nil {
			return "", err
		}
		return filename, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
