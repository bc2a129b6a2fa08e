package assembler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/driptext/driptext/internal/textseg"
	"github.com/driptext/driptext/internal/tracker"
	"github.com/driptext/driptext/pkg/file"
)

// Export formats.
const (
	FormatTxt  = "txt"
	FormatJSON = "json"
)

// Export writes the current translation state of an assignment to
// outputDir and returns the file path. Unlike Assemble, export
// tolerates gaps: untranslated portions are marked in the output.
func (s *Assembler) Export(outputDir string, t *textseg.Text, a *tracker.Assignment, format string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	name := file.WithSuffix(t.ID+".txt", "_"+t.TargetLang.String(), format)
	path := filepath.Join(outputDir, name)

	switch format {
	case FormatTxt:
		return path, s.exportTxt(path, t, a)
	case FormatJSON:
		return path, s.exportJSON(path, t, a)
	default:
		return "", fmt.Errorf("unsupported export format: %s", format)
	}
}

func (s *Assembler) exportTxt(path string, t *textseg.Text, a *tracker.Assignment) error {
	var sb strings.Builder
	for _, p := range t.Portions {
		if sub, ok := a.Submissions[p.Index]; ok {
			sb.WriteString(strings.TrimSpace(sub.Content))
		} else {
			sb.WriteString("[UNTRANSLATED: " + strings.TrimSpace(p.Content) + "]")
		}
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write txt export: %w", err)
	}
	return nil
}

type jsonExport struct {
	Title      string            `json:"title"`
	Author     string            `json:"author,omitempty"`
	SourceLang string            `json:"source_language"`
	TargetLang string            `json:"target_language"`
	Portions   []jsonExportEntry `json:"portions"`
}

type jsonExportEntry struct {
	Index       int    `json:"index"`
	Original    string `json:"original"`
	Translation string `json:"translation"`
}

func (s *Assembler) exportJSON(path string, t *textseg.Text, a *tracker.Assignment) error {
	out := jsonExport{
		Title:      t.Title,
		Author:     t.Author,
		SourceLang: t.SourceLang.String(),
		TargetLang: t.TargetLang.String(),
		Portions:   make([]jsonExportEntry, 0, len(t.Portions)),
	}
	for _, p := range t.Portions {
		entry := jsonExportEntry{
			Index:       p.Index,
			Original:    p.Content,
			Translation: "[UNTRANSLATED]",
		}
		if sub, ok := a.Submissions[p.Index]; ok {
			entry.Translation = sub.Content
		}
		out.Portions = append(out.Portions, entry)
	}

	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write json export: %w", err)
	}
	return nil
}
