package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Cleanup removes journal files older than the retention period.
func Cleanup(dir string, retention time.Duration) error {
	cutoff := time.Now().Add(-retention)
	for _, path := range findJournalFiles(dir) {
		if !isOlderThan(path, cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove journal file %s: %w", path, err)
		}
	}
	return nil
}

func findJournalFiles(dir string) []string {
	files, err := filepath.Glob(filepath.Join(dir, "lfo-*.journal"))
	if err != nil {
		return nil
	}
	return files
}

func isOlderThan(path string, cutoff time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.ModTime().Before(cutoff)
}
