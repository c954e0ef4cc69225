package database

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// HomeEnv overrides the data directory
	HomeEnv = "AGRIPORT_HOME"

	AppDirName        = ".agriport"
	CacheDirName      = "cache"
	DistanceCacheFile = "distances.json"
	SQLiteDBFileName  = "agriport.db"
)

// GetAppDir returns $AGRIPORT_HOME, or ~/.agriport, creating it if needed
func GetAppDir() (string, error) {
	appDir := os.Getenv(HomeEnv)
	if appDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory (set %s): %w", HomeEnv, err)
		}
		appDir = filepath.Join(homeDir, AppDirName)
	}
	return ensureDir(appDir)
}

// GetCacheDir returns the cache directory under the app directory
func GetCacheDir() (string, error) {
	appDir, err := GetAppDir()
	if err != nil {
		return "", err
	}
	return ensureDir(filepath.Join(appDir, CacheDirName))
}

// GetDistanceCachePath returns the file distance cache location
func GetDistanceCachePath() (string, error) {
	cacheDir, err := GetCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, DistanceCacheFile), nil
}

// GetDefaultDBPath returns the default SQLite database location
func GetDefaultDBPath() (string, error) {
	appDir, err := GetAppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(appDir, SQLiteDBFileName), nil
}

func ensureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return dir, nil
}
