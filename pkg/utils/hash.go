package utils

import (
	"crypto/md5"
	"fmt"
	"os"
)

func HashString(input string) string {
	return HashBytes([]byte(input))
}

func HashBytes(input []byte) string {
	hash := md5.Sum(input)
	return fmt.Sprintf("%x", hash)
}

// HashFile returns the hex digest of a file's content. It identifies which
// revision of a dataset an artifact was built from.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return HashBytes(data), nil
}
