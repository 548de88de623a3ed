package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/nickwells/location.mod/location"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

// Fatal prints a message to stderr and exits. Only the outermost driver
// layer calls this; the engine itself returns errors.
func Fatal(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, "azadi: fatal: "+msg+"\n", args...)
	os.Exit(exitFailure)
}

func Error(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, "azadi: error: "+msg+"\n", args...)
}

// checkTargetPath rejects file-target paths that could write outside the
// output directory. Paths are validated as written in the document, before
// any joining with the output root.
func checkTargetPath(path string, pos *location.L) error {
	if path == "" {
		return &SecurityError{Path: path, Reason: "empty path", Pos: pos}
	}
	if strings.ContainsRune(path, ':') {
		return &SecurityError{Path: path, Reason: "drive or scheme separator", Pos: pos}
	}
	normalized := strings.ReplaceAll(path, `\`, "/")
	if strings.HasPrefix(normalized, "/") || filepath.IsAbs(path) {
		return &SecurityError{Path: path, Reason: "absolute path", Pos: pos}
	}
	for _, seg := range strings.Split(normalized, "/") {
		if seg == ".." {
			return &SecurityError{Path: path, Reason: "parent directory traversal", Pos: pos}
		}
	}
	return nil
}

// targetOutputPath joins a validated relative target path onto the output
// root using the platform separator.
func targetOutputPath(outDir, target string) string {
	rel := filepath.FromSlash(strings.ReplaceAll(target, `\`, "/"))
	if outDir == "" {
		return rel
	}
	return filepath.Join(outDir, rel)
}

// GetProcessorCount reports how many documents may be parsed in parallel
// before the load guard intervenes.
func GetProcessorCount() int {
	return runtime.NumCPU()
}
