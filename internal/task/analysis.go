package task

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var (
	exportDeclPattern    = regexp.MustCompile(`export\s+(?:default\s+)?(?:async\s+)?(?:function\s*\*?|class|const|let|var)\s+([A-Za-z_$][\w$]*)`)
	exportDefaultPattern = regexp.MustCompile(`export\s+default\s+([A-Za-z_$][\w$]*)\s*;?`)

	reservedNames = map[string]bool{
		"function": true, "class": true, "async": true, "const": true, "let": true,
		"var": true, "new": true, "null": true, "true": true, "false": true,
	}
)

// Artifact is the result of analysing generated source.
type Artifact struct {
	// Symbol is the exported name detected in the source.
	Symbol string
	// Location is the workspace-relative path the source belongs at.
	Location string
}

// NeedsRoute reports whether the symbol should be registered as a route.
func (a Artifact) NeedsRoute() bool {
	return strings.Contains(a.Symbol, "Page") || strings.Contains(a.Symbol, "Button")
}

// AnalyzeArtifact finds the exported symbol in code and derives where the
// file should live. It returns ErrAnalysis when no export can be found.
func AnalyzeArtifact(code string) (Artifact, error) {
	symbol := ""
	if m := exportDeclPattern.FindStringSubmatch(code); m != nil {
		symbol = m[1]
	} else if m := exportDefaultPattern.FindStringSubmatch(code); m != nil && !reservedNames[m[1]] {
		symbol = m[1]
	}

	if symbol == "" {
		return Artifact{}, fmt.Errorf("%w: no exported symbol found", ErrAnalysis)
	}

	return Artifact{Symbol: symbol, Location: LocationFor(symbol)}, nil
}

// LocationFor maps a component name onto its file path.
func LocationFor(symbol string) string {
	dir := "src/components"
	switch {
	case strings.Contains(symbol, "Button"), strings.Contains(symbol, "Card"), strings.Contains(symbol, "Input"):
		dir = "src/components/ui"
	case strings.Contains(symbol, "Page"):
		dir = "src/pages"
	}
	return path.Join(dir, symbol+".tsx")
}
