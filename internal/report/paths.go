package report

import (
	"fmt"
	"path/filepath"
	"strings"
)

const maxNameLen = 96

// FileStem turns a run name (a sequence directory or video file name) into
// a safe file stem: runs of anything other than ASCII letters, digits, dot,
// underscore or dash become one underscore.
func FileStem(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		if b.Len() >= maxNameLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	stem := strings.Trim(b.String(), "._")
	if stem == "" {
		return "run"
	}
	return stem
}

// PlotPath returns the PNG path for a run inside dir.
func PlotPath(dir, runName string) (string, error) {
	p := filepath.Join(dir, FileStem(runName)+".png")
	rel, err := filepath.Rel(dir, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("plot path for %q escapes %s", runName, dir)
	}
	return p, nil
}
