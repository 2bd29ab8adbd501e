package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env files into the process environment. Variables that
// are already set win. Missing files are skipped.
func LoadDotEnv(logger *slog.Logger, paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		err := godotenv.Load(path)
		switch {
		case err == nil:
			logger.Debug("environment loaded", "file", path)
		case errors.Is(err, fs.ErrNotExist):
			continue
		default:
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}
