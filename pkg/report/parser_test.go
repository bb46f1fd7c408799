package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/backmon-io/backmon/pkg/layout"
)

var testAgent = layout.AgentID{Company: "acme", City: "paris", Neighborhood: "nord"}

// validDoc builds a report document in the shape agents actually
// deposit. Tests mutate the copy before marshaling.
func validDoc() map[string]any {
	stage := func(withChecksum bool) map[string]any {
		s := map[string]any{
			"status":     true,
			"start_time": "2024-01-15T02:00:00Z",
			"end_time":   "2024-01-15T02:05:00Z",
		}
		if withChecksum {
			s["sha256_checksum"] = "a6af41c0b61d32d5935ed71ccd8d124b091ef150192d623451476401de13fce3"
			s["size"] = 123456789
		} else {
			s["error_message"] = nil
		}
		return s
	}

	return map[string]any{
		"operation_start_time": "2024-01-15T02:00:00Z",
		"operation_end_time":   "2024-01-15T02:05:00Z",
		"agent_id":             "acme_paris_nord",
		"overall_status":       "completed",
		"databases": map[string]any{
			"SALES_2024": map[string]any{
				"BACKUP":           stage(true),
				"COMPRESS":         stage(true),
				"TRANSFER":         stage(false),
				"staged_file_name": "sales_2024.sql.gz",
				"logs_summary":     "all stages ok",
			},
		},
	}
}

func mustMarshal(t *testing.T, doc map[string]any) []byte {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	return data
}

// now is shortly after the report's operation end time.
var testNow = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func TestParseValidReport(t *testing.T) {
	p := NewParser(1)

	r, err := p.Parse(mustMarshal(t, validDoc()), "20240115_020500_acme_paris_nord.json", testAgent, testNow)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	if r.AgentID != "acme_paris_nord" {
		t.Errorf("AgentID = %s", r.AgentID)
	}
	if r.OverallStatus != OverallCompleted {
		t.Errorf("OverallStatus = %s", r.OverallStatus)
	}
	wantEnd := time.Date(2024, 1, 15, 2, 5, 0, 0, time.UTC)
	if !r.OperationEndTime.Equal(wantEnd) {
		t.Errorf("OperationEndTime = %v, want %v", r.OperationEndTime, wantEnd)
	}

	db, ok := r.Databases["SALES_2024"]
	if !ok {
		t.Fatal("database SALES_2024 missing from parsed report")
	}
	if !db.StagesOK() {
		t.Error("StagesOK() = false for an all-true report")
	}
	if db.StagedFileName != "sales_2024.sql.gz" {
		t.Errorf("StagedFileName = %s", db.StagedFileName)
	}
	if db.Compress.SHA256 != "a6af41c0b61d32d5935ed71ccd8d124b091ef150192d623451476401de13fce3" {
		t.Errorf("Compress.SHA256 = %s", db.Compress.SHA256)
	}
	if db.Compress.Size != 123456789 {
		t.Errorf("Compress.Size = %d", db.Compress.Size)
	}
	if db.Transfer.Size != -1 {
		t.Errorf("Transfer.Size = %d, want -1 (absent)", db.Transfer.Size)
	}
	if db.Backup.StartTime == nil || !db.Backup.StartTime.Equal(time.Date(2024, 1, 15, 2, 0, 0, 0, time.UTC)) {
		t.Errorf("Backup.StartTime = %v", db.Backup.StartTime)
	}
	if db.LogsSummary != "all stages ok" {
		t.Errorf("LogsSummary = %s", db.LogsSummary)
	}
}

func TestParseFileNotFound(t *testing.T) {
	p := NewParser(1)

	_, err := p.ParseFile(filepath.Join(t.TempDir(), "missing.json"), testAgent, testNow)

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("ParseFile() error = %v, want *NotFoundError", err)
	}
}

func TestParseFileReadsDisk(t *testing.T) {
	p := NewParser(1)
	path := filepath.Join(t.TempDir(), "20240115_020500_acme_paris_nord.json")
	if err := os.WriteFile(path, mustMarshal(t, validDoc()), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	r, err := p.ParseFile(path, testAgent, testNow)
	if err != nil {
		t.Fatalf("ParseFile() failed: %v", err)
	}
	if r.FileName != "20240115_020500_acme_paris_nord.json" {
		t.Errorf("FileName = %s", r.FileName)
	}
	if r.Path != path {
		t.Errorf("Path = %s, want %s", r.Path, path)
	}
}

func TestParseMalformed(t *testing.T) {
	p := NewParser(1)

	for _, data := range []string{"{not json", `["array","not","object"]`, ""} {
		_, err := p.Parse([]byte(data), "bad.json", testAgent, testNow)
		var malformed *MalformedError
		if !errors.As(err, &malformed) {
			t.Errorf("Parse(%q) error = %v, want *MalformedError", data, err)
		}
	}
}

func TestParseMissingFields(t *testing.T) {
	p := NewParser(1)

	fields := []string{"operation_start_time", "agent_id", "overall_status", "databases"}
	for _, field := range fields {
		doc := validDoc()
		delete(doc, field)

		_, err := p.Parse(mustMarshal(t, doc), "r.json", testAgent, testNow)
		var missing *MissingFieldError
		if !errors.As(err, &missing) {
			t.Errorf("without %s: error = %v, want *MissingFieldError", field, err)
			continue
		}
		if missing.Field != field {
			t.Errorf("MissingFieldError.Field = %s, want %s", missing.Field, field)
		}
	}

	t.Run("null value counts as missing", func(t *testing.T) {
		doc := validDoc()
		doc["agent_id"] = nil

		_, err := p.Parse(mustMarshal(t, doc), "r.json", testAgent, testNow)
		var missing *MissingFieldError
		if !errors.As(err, &missing) || missing.Field != "agent_id" {
			t.Errorf("error = %v, want MissingFieldError(agent_id)", err)
		}
	})
}

func TestParseEndTimeFallback(t *testing.T) {
	p := NewParser(1)

	t.Run("operation_timestamp stands in", func(t *testing.T) {
		doc := validDoc()
		delete(doc, "operation_end_time")
		doc["operation_timestamp"] = "2024-01-15T02:05:00Z"

		r, err := p.Parse(mustMarshal(t, doc), "r.json", testAgent, testNow)
		if err != nil {
			t.Fatalf("Parse() failed: %v", err)
		}
		if !r.OperationEndTime.Equal(time.Date(2024, 1, 15, 2, 5, 0, 0, time.UTC)) {
			t.Errorf("OperationEndTime = %v", r.OperationEndTime)
		}
	})

	t.Run("both absent", func(t *testing.T) {
		doc := validDoc()
		delete(doc, "operation_end_time")

		_, err := p.Parse(mustMarshal(t, doc), "r.json", testAgent, testNow)
		var missing *MissingFieldError
		if !errors.As(err, &missing) || missing.Field != "operation_end_time" {
			t.Errorf("error = %v, want MissingFieldError(operation_end_time)", err)
		}
	})
}

func TestParseOverallStatus(t *testing.T) {
	p := NewParser(1)

	t.Run("failed_globally accepted", func(t *testing.T) {
		doc := validDoc()
		doc["overall_status"] = "failed_globally"

		r, err := p.Parse(mustMarshal(t, doc), "r.json", testAgent, testNow)
		if err != nil {
			t.Fatalf("Parse() failed: %v", err)
		}
		if r.OverallStatus != OverallFailedGlobally {
			t.Errorf("OverallStatus = %s", r.OverallStatus)
		}
	})

	t.Run("unknown value rejected", func(t *testing.T) {
		doc := validDoc()
		doc["overall_status"] = "partial"

		_, err := p.Parse(mustMarshal(t, doc), "r.json", testAgent, testNow)
		var invalid *InvalidValueError
		if !errors.As(err, &invalid) || invalid.Field != "overall_status" {
			t.Errorf("error = %v, want InvalidValueError(overall_status)", err)
		}
	})
}

func TestParseTimestamps(t *testing.T) {
	p := NewParser(1)

	t.Run("naive timestamp tolerated as UTC", func(t *testing.T) {
		doc := validDoc()
		doc["operation_end_time"] = "2024-01-15T02:05:00"

		r, err := p.Parse(mustMarshal(t, doc), "r.json", testAgent, testNow)
		if err != nil {
			t.Fatalf("Parse() failed: %v", err)
		}
		if !r.OperationEndTime.Equal(time.Date(2024, 1, 15, 2, 5, 0, 0, time.UTC)) {
			t.Errorf("OperationEndTime = %v", r.OperationEndTime)
		}
	})

	t.Run("explicit offset normalized to UTC", func(t *testing.T) {
		doc := validDoc()
		doc["operation_end_time"] = "2024-01-15T03:05:00+01:00"

		r, err := p.Parse(mustMarshal(t, doc), "r.json", testAgent, testNow)
		if err != nil {
			t.Fatalf("Parse() failed: %v", err)
		}
		if !r.OperationEndTime.Equal(time.Date(2024, 1, 15, 2, 5, 0, 0, time.UTC)) {
			t.Errorf("OperationEndTime = %v", r.OperationEndTime)
		}
	})

	t.Run("garbage rejected", func(t *testing.T) {
		doc := validDoc()
		doc["operation_start_time"] = "yesterday"

		_, err := p.Parse(mustMarshal(t, doc), "r.json", testAgent, testNow)
		var invalid *InvalidValueError
		if !errors.As(err, &invalid) || invalid.Field != "operation_start_time" {
			t.Errorf("error = %v, want InvalidValueError(operation_start_time)", err)
		}
	})
}

func TestParseDatabasesValidation(t *testing.T) {
	p := NewParser(1)

	t.Run("empty mapping rejected", func(t *testing.T) {
		doc := validDoc()
		doc["databases"] = map[string]any{}

		_, err := p.Parse(mustMarshal(t, doc), "r.json", testAgent, testNow)
		var invalid *InvalidValueError
		if !errors.As(err, &invalid) || invalid.Field != "databases" {
			t.Errorf("error = %v, want InvalidValueError(databases)", err)
		}
	})

	t.Run("non-mapping rejected", func(t *testing.T) {
		doc := validDoc()
		doc["databases"] = []any{"SALES_2024"}

		_, err := p.Parse(mustMarshal(t, doc), "r.json", testAgent, testNow)
		var invalid *InvalidValueError
		if !errors.As(err, &invalid) {
			t.Errorf("error = %v, want *InvalidValueError", err)
		}
	})

	t.Run("missing stage rejected", func(t *testing.T) {
		doc := validDoc()
		db := doc["databases"].(map[string]any)["SALES_2024"].(map[string]any)
		delete(db, "COMPRESS")

		_, err := p.Parse(mustMarshal(t, doc), "r.json", testAgent, testNow)
		var missing *MissingFieldError
		if !errors.As(err, &missing) || missing.Field != "databases.SALES_2024.COMPRESS" {
			t.Errorf("error = %v, want MissingFieldError(databases.SALES_2024.COMPRESS)", err)
		}
	})

	t.Run("non-boolean stage status rejected", func(t *testing.T) {
		doc := validDoc()
		db := doc["databases"].(map[string]any)["SALES_2024"].(map[string]any)
		db["BACKUP"].(map[string]any)["status"] = "true"

		_, err := p.Parse(mustMarshal(t, doc), "r.json", testAgent, testNow)
		var invalid *InvalidValueError
		if !errors.As(err, &invalid) || invalid.Field != "databases.SALES_2024.BACKUP.status" {
			t.Errorf("error = %v, want InvalidValueError(databases.SALES_2024.BACKUP.status)", err)
		}
	})
}

func TestParseStale(t *testing.T) {
	p := NewParser(1)

	t.Run("older than horizon rejected", func(t *testing.T) {
		doc := validDoc()
		old := testNow.Add(-25 * time.Hour).Format(time.RFC3339)
		doc["operation_end_time"] = old

		_, err := p.Parse(mustMarshal(t, doc), "r.json", testAgent, testNow)
		var stale *StaleError
		if !errors.As(err, &stale) {
			t.Errorf("error = %v, want *StaleError", err)
		}
	})

	t.Run("exactly at horizon accepted", func(t *testing.T) {
		doc := validDoc()
		doc["operation_end_time"] = testNow.Add(-24 * time.Hour).Format(time.RFC3339)
		doc["operation_start_time"] = testNow.Add(-24 * time.Hour).Format(time.RFC3339)

		if _, err := p.Parse(mustMarshal(t, doc), "r.json", testAgent, testNow); err != nil {
			t.Errorf("Parse() at exact staleness boundary failed: %v", err)
		}
	})
}

func TestParseIdentityMismatch(t *testing.T) {
	p := NewParser(1)

	t.Run("different agent rejected", func(t *testing.T) {
		doc := validDoc()
		doc["agent_id"] = "globex_lyon_croix"

		_, err := p.Parse(mustMarshal(t, doc), "r.json", testAgent, testNow)
		var mismatch *IdentityMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("error = %v, want *IdentityMismatchError", err)
		}
		if mismatch.ReportAgentID != "globex_lyon_croix" || mismatch.DirAgentID != "acme_paris_nord" {
			t.Errorf("mismatch = %+v", mismatch)
		}
	})

	t.Run("case difference accepted", func(t *testing.T) {
		doc := validDoc()
		doc["agent_id"] = "ACME_Paris_Nord"

		r, err := p.Parse(mustMarshal(t, doc), "r.json", testAgent, testNow)
		if err != nil {
			t.Fatalf("Parse() failed: %v", err)
		}
		if r.AgentID != "acme_paris_nord" {
			t.Errorf("AgentID = %s, want canonical lowercase", r.AgentID)
		}
	})
}

func TestCoerceSize(t *testing.T) {
	cases := map[string]struct {
		raw  any
		want int64
	}{
		"number":         {float64(42000), 42000},
		"numeric string": {"42000", 42000},
		"padded string":  {" 42000 ", 42000},
		"garbage string": {"lots", -1},
		"absent":         {nil, -1},
		"boolean":        {true, -1},
	}
	for name, tc := range cases {
		if got := coerceSize(tc.raw); got != tc.want {
			t.Errorf("%s: coerceSize(%v) = %d, want %d", name, tc.raw, got, tc.want)
		}
	}
}

func TestFailedStages(t *testing.T) {
	db := Database{
		Backup:   Stage{Status: true},
		Compress: Stage{Status: false},
		Transfer: Stage{Status: false},
	}
	failed := db.FailedStages()
	if len(failed) != 2 || failed[0] != StageCompress || failed[1] != StageTransfer {
		t.Errorf("FailedStages() = %v", failed)
	}
	if db.StagesOK() {
		t.Error("StagesOK() = true with failed stages")
	}
}
