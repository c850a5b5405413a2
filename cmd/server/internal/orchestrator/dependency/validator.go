package dependency

import (
	"fmt"
	"path/filepath"
	"strings"
)

var forbiddenPrefixes = []string{"/etc", "/sys", "/proc", "/dev"}

// ValidateCommandRequest performs security checks before command execution:
//  1. Command whitelist (if configured)
//  2. Argument safety (no path traversal segments, no system directory access);
//     InputFiles only need to be absolute
//  3. Working directory must be within the configured work dir
func ValidateCommandRequest(req CommandRequest, config ExecutorConfig) error {
	// 1. Check command whitelist
	if len(config.AllowedCommands) > 0 {
		allowed := false
		for _, cmd := range config.AllowedCommands {
			if req.Command == cmd {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("command %s is not in whitelist (allowed: %v)", req.Command, config.AllowedCommands)
		}
	}

	// 2. Check argument safety
	inputs := make(map[string]bool, len(req.InputFiles))
	for _, in := range req.InputFiles {
		if !filepath.IsAbs(in) {
			return fmt.Errorf("input file must be an absolute path: %s", in)
		}
		inputs[in] = true
	}
	for _, arg := range req.Args {
		if inputs[arg] {
			continue
		}
		if hasTraversal(arg) {
			return fmt.Errorf("argument contains '..' path segment (path traversal attempt): %s", arg)
		}
		for _, prefix := range forbiddenPrefixes {
			if arg == prefix || strings.HasPrefix(arg, prefix+"/") {
				return fmt.Errorf("argument attempts to access forbidden system directory %s: %s", prefix, arg)
			}
		}
	}

	// 3. Check working directory (if specified)
	if req.WorkingDir != "" {
		if err := withinDir(config.WorkDir, req.WorkingDir); err != nil {
			return fmt.Errorf("invalid working directory: %w", err)
		}
	}

	return nil
}

// hasTraversal reports whether a path-like argument contains a ".." element.
// File names that merely contain two dots (e.g. "talk..final.mp3") are allowed.
func hasTraversal(arg string) bool {
	for _, part := range strings.FieldsFunc(arg, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return true
		}
	}
	return false
}

func withinDir(base, path string) error {
	if base == "" {
		return fmt.Errorf("work dir not configured")
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %s is outside work dir %s", path, base)
	}
	return nil
}
