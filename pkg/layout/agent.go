// Package layout maps agents, jobs and report filenames to their
// locations in the deposit and validated trees.
//
// All returned paths are relative to the respective gateway root
// (backup storage root for staging/log/archive paths, validated root
// for promotion paths) and use forward slashes on every platform.
package layout

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Directory names fixed by the deposit contract. Agents write staged
// artifacts under database/ and drop status reports under log/; the
// scanner moves consumed reports to log/_archive/.
const (
	DatabaseDir = "database"
	LogDir      = "log"
	ArchiveDir  = "_archive"
)

// AgentID is the canonical identity of a deposit agent, derived from
// its directory name `company_city_neighborhood`.
type AgentID struct {
	Company      string
	City         string
	Neighborhood string
}

// ParseAgentID canonicalizes a deposit directory name into an AgentID.
//
// A valid name splits on underscores into exactly three non-empty
// tokens; tokens are lowercased so `ACME_Paris_Nord` and
// `acme_paris_nord` name the same agent. Any other shape is an error
// and the directory's reports must never be parsed.
func ParseAgentID(name string) (AgentID, error) {
	parts := strings.Split(name, "_")
	if len(parts) != 3 {
		return AgentID{}, fmt.Errorf("agent directory %q: want exactly 3 underscore-separated tokens, got %d", name, len(parts))
	}
	for _, p := range parts {
		if p == "" {
			return AgentID{}, fmt.Errorf("agent directory %q: empty token", name)
		}
	}

	return AgentID{
		Company:      strings.ToLower(parts[0]),
		City:         strings.ToLower(parts[1]),
		Neighborhood: strings.ToLower(parts[2]),
	}, nil
}

// String returns the canonical directory name.
func (a AgentID) String() string {
	return a.Company + "_" + a.City + "_" + a.Neighborhood
}

// ReportMatcher recognizes the report filenames a given agent is
// allowed to deposit.
//
// Two shapes are accepted, matched case-insensitively:
//
//	20240115_020500_acme_paris_nord.json   (timestamped, production)
//	HORODATAGE_acme_paris_nord.json        (manual test drop)
//
// Anything else in log/ is ignored during discovery.
type ReportMatcher struct {
	production *regexp.Regexp
	manual     *regexp.Regexp
}

// NewReportMatcher builds the matcher for one agent.
func NewReportMatcher(a AgentID) *ReportMatcher {
	suffix := regexp.QuoteMeta(a.Company) + "_" + regexp.QuoteMeta(a.City) + "_" + regexp.QuoteMeta(a.Neighborhood)

	return &ReportMatcher{
		production: regexp.MustCompile(`(?i)^\d{8}_\d{6}_` + suffix + `\.json$`),
		manual:     regexp.MustCompile(`(?i)^HORODATAGE_` + suffix + `\.json$`),
	}
}

// Match reports whether filename is a recognized report for the agent.
func (m *ReportMatcher) Match(filename string) bool {
	return m.production.MatchString(filename) || m.manual.MatchString(filename)
}

// IsJSONFile reports whether filename carries a .json extension,
// case-insensitively. Used for forced archival sweeps where any JSON
// deposit counts, recognized pattern or not.
func IsJSONFile(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".json")
}
