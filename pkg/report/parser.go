package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/backmon-io/backmon/internal/logger"
	"github.com/backmon-io/backmon/pkg/layout"
)

// DefaultMaxReportAgeDays is how far back a report's operation end
// time may lie before the report is considered stale.
const DefaultMaxReportAgeDays = 1

// Parser validates report documents against the deposit contract.
type Parser struct {
	// MaxReportAge is the staleness horizon. A report whose operation
	// end time is exactly MaxReportAge before now is still accepted;
	// anything older is Stale.
	MaxReportAge time.Duration
}

// NewParser returns a Parser with the staleness horizon in days.
func NewParser(maxAgeDays int) *Parser {
	if maxAgeDays <= 0 {
		maxAgeDays = DefaultMaxReportAgeDays
	}
	return &Parser{MaxReportAge: time.Duration(maxAgeDays) * 24 * time.Hour}
}

// ParseFile reads and validates the report at path, which must lie in
// the log directory of agent. now anchors the staleness check.
func (p *Parser) ParseFile(path string, agent layout.AgentID, now time.Time) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &NotFoundError{Path: path, Err: err}
	}

	return p.Parse(data, path, agent, now)
}

// Parse validates a report document already in memory. source is used
// for diagnostics and becomes Report.Path.
func (p *Parser) Parse(data []byte, source string, agent layout.AgentID, now time.Time) (*Report, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &MalformedError{Path: source, Err: err}
	}

	// Required top-level fields. A null value counts as missing.
	for _, field := range []string{"operation_start_time", "agent_id", "overall_status", "databases"} {
		if doc[field] == nil {
			return nil, &MissingFieldError{Field: field}
		}
	}
	endRaw := doc["operation_end_time"]
	endField := "operation_end_time"
	if endRaw == nil {
		endRaw = doc["operation_timestamp"]
		endField = "operation_timestamp"
	}
	if endRaw == nil {
		return nil, &MissingFieldError{Field: "operation_end_time"}
	}

	agentID, ok := doc["agent_id"].(string)
	if !ok {
		return nil, &InvalidValueError{
			Field:  "agent_id",
			Value:  fmt.Sprintf("%v", doc["agent_id"]),
			Reason: "must be a string",
		}
	}

	overall, ok := doc["overall_status"].(string)
	if !ok || (overall != OverallCompleted && overall != OverallFailedGlobally) {
		return nil, &InvalidValueError{
			Field:  "overall_status",
			Value:  fmt.Sprintf("%v", doc["overall_status"]),
			Reason: fmt.Sprintf("must be %q or %q", OverallCompleted, OverallFailedGlobally),
		}
	}

	startTime, err := p.parseTimestamp(doc["operation_start_time"], "operation_start_time", source)
	if err != nil {
		return nil, err
	}
	endTime, err := p.parseTimestamp(endRaw, endField, source)
	if err != nil {
		return nil, err
	}

	databases, err := p.parseDatabases(doc["databases"])
	if err != nil {
		return nil, err
	}

	if now.Sub(endTime) > p.MaxReportAge {
		return nil, &StaleError{EndTime: endTime, MaxAge: p.MaxReportAge}
	}

	if strings.ToLower(agentID) != agent.String() {
		return nil, &IdentityMismatchError{
			ReportAgentID: agentID,
			DirAgentID:    agent.String(),
		}
	}

	return &Report{
		AgentID:            strings.ToLower(agentID),
		OverallStatus:      overall,
		OperationStartTime: startTime,
		OperationEndTime:   endTime,
		Databases:          databases,
		FileName:           filepath.Base(source),
		Path:               source,
	}, nil
}

// parseTimestamp parses a required top-level timestamp. ISO-8601 with
// an explicit offset is expected; a naive timestamp is tolerated,
// logged, and read as UTC.
func (p *Parser) parseTimestamp(raw any, field, source string) (time.Time, error) {
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, &InvalidValueError{
			Field:  field,
			Value:  fmt.Sprintf("%v", raw),
			Reason: "must be an ISO-8601 string",
		}
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}

	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		logger.Warn("Report timestamp has no UTC offset, assuming UTC",
			logger.Path(source),
			logger.Operation(field))
		return t.UTC(), nil
	}

	return time.Time{}, &InvalidValueError{
		Field:  field,
		Value:  s,
		Reason: "not a valid ISO-8601 timestamp",
	}
}

// parseDatabases validates the databases mapping and the three
// mandatory stages of every entry, then builds the typed sections.
func (p *Parser) parseDatabases(raw any) (map[string]Database, error) {
	dbs, ok := raw.(map[string]any)
	if !ok {
		return nil, &InvalidValueError{
			Field:  "databases",
			Value:  fmt.Sprintf("%T", raw),
			Reason: "must be a mapping of database name to stage results",
		}
	}
	if len(dbs) == 0 {
		return nil, &InvalidValueError{
			Field:  "databases",
			Value:  "{}",
			Reason: "must not be empty",
		}
	}

	out := make(map[string]Database, len(dbs))
	for name, entryRaw := range dbs {
		entry, ok := entryRaw.(map[string]any)
		if !ok {
			return nil, &InvalidValueError{
				Field:  "databases." + name,
				Value:  fmt.Sprintf("%T", entryRaw),
				Reason: "must be a mapping",
			}
		}

		var db Database
		for _, stage := range []string{StageBackup, StageCompress, StageTransfer} {
			stageRaw, ok := entry[stage].(map[string]any)
			if !ok {
				if entry[stage] == nil {
					return nil, &MissingFieldError{Field: "databases." + name + "." + stage}
				}
				return nil, &InvalidValueError{
					Field:  "databases." + name + "." + stage,
					Value:  fmt.Sprintf("%T", entry[stage]),
					Reason: "must be a mapping",
				}
			}

			status, ok := stageRaw["status"].(bool)
			if !ok {
				if stageRaw["status"] == nil {
					return nil, &MissingFieldError{Field: "databases." + name + "." + stage + ".status"}
				}
				return nil, &InvalidValueError{
					Field:  "databases." + name + "." + stage + ".status",
					Value:  fmt.Sprintf("%v", stageRaw["status"]),
					Reason: "must be a boolean",
				}
			}

			parsed := Stage{
				Status:       status,
				StartTime:    parseTimeSafe(stageRaw["start_time"]),
				EndTime:      parseTimeSafe(stageRaw["end_time"]),
				SHA256:       coerceString(stageRaw["sha256_checksum"]),
				Size:         coerceSize(stageRaw["size"]),
				ErrorMessage: coerceString(stageRaw["error_message"]),
			}

			switch stage {
			case StageBackup:
				db.Backup = parsed
			case StageCompress:
				db.Compress = parsed
			case StageTransfer:
				db.Transfer = parsed
			}
		}

		db.StagedFileName = coerceString(entry["staged_file_name"])
		db.LogsSummary = coerceString(entry["logs_summary"])
		out[name] = db
	}

	return out, nil
}

// parseTimeSafe parses an optional stage timestamp, returning nil on
// any shape it does not understand. Stage timing never fails a report.
func parseTimeSafe(raw any) *time.Time {
	s, ok := raw.(string)
	if !ok {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		u := t.UTC()
		return &u
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		u := t.UTC()
		return &u
	}
	return nil
}

// coerceString returns raw as a string, or "" when absent or not a
// string.
func coerceString(raw any) string {
	s, _ := raw.(string)
	return s
}

// coerceSize reads an agent-declared size. JSON numbers and numeric
// strings are accepted; anything else yields -1, the value downstream
// comparison treats as "agent size unusable".
func coerceSize(raw any) int64 {
	switch v := raw.(type) {
	case float64:
		return int64(v)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	}
	return -1
}
