package util

import (
	"os"
	"path/filepath"
)

// GetProjectRoot returns the dir with migrations/: PROJECT_ROOT if it's set,
// otherwise the closest parent of the working dir containing go.mod.
func GetProjectRoot() string {
	if root := os.Getenv("PROJECT_ROOT"); root != "" {
		return root
	}

	wd, err := os.Getwd()
	if err != nil {
		return "./"
	}

	// "go test" runs in the package dir
	for dir := wd; ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		if filepath.Dir(dir) == dir {
			return "./" // deployed binary without sources
		}
	}
}
