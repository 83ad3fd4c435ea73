package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathSource is one ordered list of search directories. Sources passed to
// ResolvePaths are in increasing priority.
type PathSource struct {
	Name    string
	Entries []string
}

// Names of the standard path sources
const (
	SourceBuiltin  = "builtin"
	SourceSettings = "settings"
	SourceEnv      = "env"
)

// SplitPathList splits a path list on sep, dropping empty entries
func SplitPathList(value string, sep rune) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, string(sep))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// EnvPathSource builds the environment source, splitting on the OS list separator
func EnvPathSource(value string) PathSource {
	return PathSource{Name: SourceEnv, Entries: SplitPathList(value, os.PathListSeparator)}
}

// ResolvePaths turns the sources into an ordered list of existing, absolute,
// unique directories with symlinks resolved. Later entries have higher priority; a duplicate keeps
// only its highest-priority position. Invalid entries are skipped with a
// PathInvalid debug diagnostic.
func ResolvePaths(sources ...PathSource) ([]string, []Diagnostic) {
	var diags []Diagnostic
	candidates := make([]string, 0)

	for _, src := range sources {
		for _, entry := range src.Entries {
			dir, err := normalizePath(entry)
			if err != nil {
				diags = append(diags, pathInvalid(src.Name, entry, err.Error()))
				continue
			}

			info, err := os.Stat(dir)
			switch {
			case err != nil:
				diags = append(diags, pathInvalid(src.Name, dir, "directory does not exist"))
				continue
			case !info.IsDir():
				diags = append(diags, pathInvalid(src.Name, dir, "not a directory"))
				continue
			}

			// WalkDir does not follow a symlinked root
			resolved, err := filepath.EvalSymlinks(dir)
			if err != nil {
				diags = append(diags, pathInvalid(src.Name, dir, "cannot resolve symlinks: "+err.Error()))
				continue
			}
			dir = resolved

			candidates = append(candidates, dir)
		}
	}

	// Walk from highest priority down so the first sighting is the survivor
	seen := make(map[string]bool, len(candidates))
	kept := make([]string, 0, len(candidates))
	for i := len(candidates) - 1; i >= 0; i-- {
		if seen[candidates[i]] {
			continue
		}
		seen[candidates[i]] = true
		kept = append(kept, candidates[i])
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}

	return kept, diags
}

// ExpandHome replaces a leading "~" with the user's home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand %q: %w", path, err)
	}
	return filepath.Join(home, path[1:]), nil
}

func normalizePath(entry string) (string, error) {
	expanded, err := ExpandHome(strings.TrimSpace(entry))
	if err != nil {
		return "", err
	}
	if expanded == "" {
		return "", fmt.Errorf("empty path")
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("cannot make %q absolute: %w", entry, err)
	}
	return filepath.Clean(abs), nil
}

func pathInvalid(source, path, reason string) Diagnostic {
	return Diagnostic{
		Kind:     KindPathInvalid,
		Severity: SeverityDebug,
		Path:     path,
		Message:  fmt.Sprintf("skipping %s path: %s", source, reason),
	}
}
