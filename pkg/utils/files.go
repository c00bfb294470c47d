package utils

import (
	"fmt"
	"os"
)

// MakeDir creates a directory along with any missing parents.
func MakeDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// DeleteFile removes a file.
func DeleteFile(path string) error {
	return os.Remove(path)
}

// MoveFile moves or renames a file. Used for write-to-temp-then-rename so
// readers never observe a partially written file.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move file from %s to %s: %w", src, dst, err)
	}
	return nil
}

// FileExists reports whether path exists and is not a directory.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
