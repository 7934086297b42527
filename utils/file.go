package utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const uploadDir = "uploads"

// ErrPathTraversal is returned when a requested path would escape the
// uploads directory.
var ErrPathTraversal = errors.New("path escapes upload directory")

// EnsureUploadDir creates the uploads directory if it doesn't exist
func EnsureUploadDir() error {
	return os.MkdirAll(uploadDir, os.ModePerm)
}

// ResolveUploadPath maps a request path onto the uploads directory for
// the legacy local-file fallback, rejecting anything that would climb
// out of it (e.g. "../../etc/passwd").
func ResolveUploadPath(requestPath string) (string, error) {
	resolved := filepath.Join(uploadDir, requestPath)

	base := filepath.Clean(uploadDir) + string(os.PathSeparator)
	if !strings.HasPrefix(resolved, base) {
		return "", ErrPathTraversal
	}
	return resolved, nil
}
