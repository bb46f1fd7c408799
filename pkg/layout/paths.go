package layout

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrUnsafeFilename is returned when a staged file name carries path
// separators or dot-dot components. Such names come straight out of
// agent-written reports and must never reach the filesystem.
var ErrUnsafeFilename = errors.New("unsafe staged file name")

// ValidateStagedFileName rejects names that are empty, contain path
// separators, or are relative components.
func ValidateStagedFileName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrUnsafeFilename)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q contains a path separator", ErrUnsafeFilename, name)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrUnsafeFilename, name)
	}
	return nil
}

// AgentDir returns the agent's deposit directory relative to the
// backup storage root.
func AgentDir(a AgentID) string {
	return a.String()
}

// LogPath returns the agent's report deposit directory.
func LogPath(a AgentID) string {
	return path.Join(a.String(), LogDir)
}

// ArchivePath returns the agent's consumed-report directory.
func ArchivePath(a AgentID) string {
	return path.Join(a.String(), LogDir, ArchiveDir)
}

// ReportPath returns the location of a report file in the agent's log
// directory.
func ReportPath(a AgentID, filename string) string {
	return path.Join(a.String(), LogDir, filename)
}

// ArchivedReportPath returns where a consumed report lands.
func ArchivedReportPath(a AgentID, filename string) string {
	return path.Join(a.String(), LogDir, ArchiveDir, filename)
}

// StagedPath returns the location of a staged artifact relative to the
// backup storage root: `<agent>/database/<staged>`. The staged name is
// validated first since it originates from the report.
func StagedPath(a AgentID, stagedFileName string) (string, error) {
	if err := ValidateStagedFileName(stagedFileName); err != nil {
		return "", err
	}
	return path.Join(a.String(), DatabaseDir, stagedFileName), nil
}

// JobCoordinates carries the site coordinates a promotion path is
// built from.
type JobCoordinates struct {
	Year         int
	Company      string
	City         string
	Neighborhood string
	Database     string
}

// AgentID returns the agent the job's deposits are expected under.
func (c JobCoordinates) AgentID() AgentID {
	return AgentID{
		Company:      strings.ToLower(c.Company),
		City:         strings.ToLower(c.City),
		Neighborhood: strings.ToLower(c.Neighborhood),
	}
}

// DefaultPromotionTemplate is the directory layout used when a job
// carries no template of its own.
const DefaultPromotionTemplate = "{year}/{company}/{city}/{neighborhood}/{database}"

// PromotionPath expands the job's promotion template and appends the
// staged file name, producing a path relative to the validated root.
//
// Recognized placeholders: {year}, {company}, {city}, {neighborhood},
// {database}, {agent_id}. Unknown placeholders are an error. Expanded
// values must not introduce path components of their own; a value
// carrying a separator or dot-dot makes the whole expansion fail, and
// the final path must stay inside the validated root.
func PromotionPath(c JobCoordinates, template, stagedFileName string) (string, error) {
	if err := ValidateStagedFileName(stagedFileName); err != nil {
		return "", err
	}

	if template == "" {
		template = DefaultPromotionTemplate
	}

	values := map[string]string{
		"year":         strconv.Itoa(c.Year),
		"company":      c.Company,
		"city":         c.City,
		"neighborhood": c.Neighborhood,
		"database":     c.Database,
		"agent_id":     c.AgentID().String(),
	}

	dir, err := expandTemplate(template, values)
	if err != nil {
		return "", err
	}

	full := path.Join(dir, stagedFileName)
	if !filepath.IsLocal(filepath.FromSlash(full)) {
		return "", fmt.Errorf("promotion path %q escapes the validated root", full)
	}

	return full, nil
}

// expandTemplate substitutes {name} placeholders with values, refusing
// unknown names and values that would smuggle in path components.
func expandTemplate(template string, values map[string]string) (string, error) {
	var b strings.Builder

	for i := 0; i < len(template); {
		if template[i] != '{' {
			b.WriteByte(template[i])
			i++
			continue
		}

		end := strings.IndexByte(template[i:], '}')
		if end < 0 {
			return "", fmt.Errorf("template %q: unterminated placeholder", template)
		}

		name := template[i+1 : i+end]
		value, ok := values[name]
		if !ok {
			return "", fmt.Errorf("template %q: unknown placeholder {%s}", template, name)
		}
		if value == "" {
			return "", fmt.Errorf("template %q: placeholder {%s} expands to empty", template, name)
		}
		if strings.ContainsAny(value, `/\`) || value == "." || value == ".." {
			return "", fmt.Errorf("template %q: placeholder {%s} value %q would introduce path components", template, name, value)
		}

		b.WriteString(value)
		i += end + 1
	}

	return b.String(), nil
}
