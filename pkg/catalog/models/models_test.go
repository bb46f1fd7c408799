package models

import (
	"strings"
	"testing"
	"time"
)

func TestJobStatus_IsValid(t *testing.T) {
	tests := []struct {
		status JobStatus
		valid  bool
	}{
		{JobStatusUnknown, true},
		{JobStatusOK, true},
		{JobStatusFailed, true},
		{JobStatusMissing, true},
		{JobStatusHashMismatch, true},
		{JobStatusTransferIntegrityFailed, true},
		{"ok", false}, // case sensitive
		{"invalid", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.valid {
				t.Errorf("JobStatus(%q).IsValid() = %v, want %v", tt.status, got, tt.valid)
			}
		})
	}
}

func TestEntryStatus_IsValid(t *testing.T) {
	tests := []struct {
		status EntryStatus
		valid  bool
	}{
		{EntryStatusSuccess, true},
		{EntryStatusFailed, true},
		{EntryStatusMissing, true},
		{EntryStatusHashMismatch, true},
		{EntryStatusTransferIntegrityFailed, true},
		{"UNKNOWN", false}, // job-only status
		{"success", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.valid {
				t.Errorf("EntryStatus(%q).IsValid() = %v, want %v", tt.status, got, tt.valid)
			}
		})
	}
}

func TestEntryStatus_JobStatus(t *testing.T) {
	tests := []struct {
		entry EntryStatus
		job   JobStatus
	}{
		{EntryStatusSuccess, JobStatusOK},
		{EntryStatusFailed, JobStatusFailed},
		{EntryStatusMissing, JobStatusMissing},
		{EntryStatusHashMismatch, JobStatusHashMismatch},
		{EntryStatusTransferIntegrityFailed, JobStatusTransferIntegrityFailed},
		{"bogus", JobStatusUnknown},
		{"", JobStatusUnknown},
	}

	for _, tt := range tests {
		t.Run(string(tt.entry), func(t *testing.T) {
			if got := tt.entry.JobStatus(); got != tt.job {
				t.Errorf("EntryStatus(%q).JobStatus() = %q, want %q", tt.entry, got, tt.job)
			}
		})
	}
}

func TestFrequency_IsValid(t *testing.T) {
	tests := []struct {
		freq  Frequency
		valid bool
	}{
		{FrequencyDaily, true},
		{FrequencyWeekly, true},
		{FrequencyMonthly, true},
		{FrequencyHourly, true},
		{FrequencyOnce, true},
		{"Daily", false}, // case sensitive
		{"yearly", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.freq), func(t *testing.T) {
			if got := tt.freq.IsValid(); got != tt.valid {
				t.Errorf("Frequency(%q).IsValid() = %v, want %v", tt.freq, got, tt.valid)
			}
		})
	}
}

func TestValidDaysOfWeek(t *testing.T) {
	tests := []struct {
		days  string
		valid bool
	}{
		{DefaultDaysOfWeek, true},
		{"Mo,Tu,We,Th,Fr,Sa,Su", true},
		{"Mo", true},
		{"mo,TU", true}, // case insensitive
		{"Mo, Tu, We", true},
		{"Mo,Xx", false},
		{"Monday", false},
		{"", false},
		{"  ", false},
	}

	for _, tt := range tests {
		t.Run(tt.days, func(t *testing.T) {
			if got := ValidDaysOfWeek(tt.days); got != tt.valid {
				t.Errorf("ValidDaysOfWeek(%q) = %v, want %v", tt.days, got, tt.valid)
			}
		})
	}
}

func validJob() ExpectedJob {
	return ExpectedJob{
		Year:              2024,
		Company:           "acme",
		City:              "paris",
		Neighborhood:      "nord",
		DatabaseName:      "SALES_2024",
		ExpectedHourUTC:   2,
		ExpectedMinuteUTC: 30,
		Frequency:         FrequencyDaily,
		DaysOfWeek:        DefaultDaysOfWeek,
		CurrentStatus:     JobStatusUnknown,
	}
}

func TestExpectedJob_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ExpectedJob)
		wantErr bool
	}{
		{"valid job", func(j *ExpectedJob) {}, false},
		{"empty frequency allowed", func(j *ExpectedJob) { j.Frequency = "" }, false},
		{"empty days allowed", func(j *ExpectedJob) { j.DaysOfWeek = "" }, false},
		{"empty status allowed", func(j *ExpectedJob) { j.CurrentStatus = "" }, false},
		{"hour 23", func(j *ExpectedJob) { j.ExpectedHourUTC = 23 }, false},
		{"minute 59", func(j *ExpectedJob) { j.ExpectedMinuteUTC = 59 }, false},
		{"year too small", func(j *ExpectedJob) { j.Year = 1989 }, true},
		{"year too large", func(j *ExpectedJob) { j.Year = 10000 }, true},
		{"missing company", func(j *ExpectedJob) { j.Company = "" }, true},
		{"missing city", func(j *ExpectedJob) { j.City = "" }, true},
		{"missing neighborhood", func(j *ExpectedJob) { j.Neighborhood = "" }, true},
		{"missing database", func(j *ExpectedJob) { j.DatabaseName = "" }, true},
		{"hour negative", func(j *ExpectedJob) { j.ExpectedHourUTC = -1 }, true},
		{"hour 24", func(j *ExpectedJob) { j.ExpectedHourUTC = 24 }, true},
		{"minute 60", func(j *ExpectedJob) { j.ExpectedMinuteUTC = 60 }, true},
		{"bad frequency", func(j *ExpectedJob) { j.Frequency = "yearly" }, true},
		{"bad days", func(j *ExpectedJob) { j.DaysOfWeek = "Mo,Xx" }, true},
		{"bad status", func(j *ExpectedJob) { j.CurrentStatus = "ok" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := validJob()
			tt.mutate(&job)
			err := job.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpectedJob_AgentID(t *testing.T) {
	job := validJob()
	job.Company = "ACME"
	job.City = "Paris"
	job.Neighborhood = "NORD"

	agent := job.AgentID()
	if agent.String() != "acme_paris_nord" {
		t.Errorf("AgentID() = %q, want %q", agent.String(), "acme_paris_nord")
	}
}

func TestExpectedJob_Coordinates(t *testing.T) {
	job := validJob()
	job.Company = "ACME"

	c := job.Coordinates()
	if c.Year != 2024 || c.Company != "acme" || c.Database != "SALES_2024" {
		t.Errorf("unexpected coordinates: %+v", c)
	}
}

func TestExpectedJob_AnchorClock(t *testing.T) {
	tests := []struct {
		hour, minute int
		want         string
	}{
		{2, 30, "02:30"},
		{0, 0, "00:00"},
		{23, 59, "23:59"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			job := validJob()
			job.ExpectedHourUTC = tt.hour
			job.ExpectedMinuteUTC = tt.minute
			if got := job.AnchorClock(); got != tt.want {
				t.Errorf("AnchorClock() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpectedJob_ExpectedOn(t *testing.T) {
	job := validJob() // Mo through Sa

	monday := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	saturday := time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)
	sunday := time.Date(2024, 1, 21, 12, 0, 0, 0, time.UTC)

	if !job.ExpectedOn(monday) {
		t.Error("expected job to run on Monday")
	}
	if !job.ExpectedOn(saturday) {
		t.Error("expected job to run on Saturday")
	}
	if job.ExpectedOn(sunday) {
		t.Error("expected job not to run on Sunday")
	}

	job.DaysOfWeek = "Su"
	if !job.ExpectedOn(sunday) {
		t.Error("expected Sunday-only job to run on Sunday")
	}
	if job.ExpectedOn(monday) {
		t.Error("expected Sunday-only job not to run on Monday")
	}
}

func TestUserRole_IsValid(t *testing.T) {
	tests := []struct {
		role  UserRole
		valid bool
	}{
		{RoleUser, true},
		{RoleAdmin, true},
		{"invalid", false},
		{"", false},
		{"USER", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := tt.role.IsValid(); got != tt.valid {
				t.Errorf("UserRole(%q).IsValid() = %v, want %v", tt.role, got, tt.valid)
			}
		})
	}
}

func TestUser_GetDisplayName(t *testing.T) {
	tests := []struct {
		name        string
		user        User
		wantDisplay string
	}{
		{"with display name", User{Username: "john", DisplayName: "John Doe"}, "John Doe"},
		{"without display name", User{Username: "john"}, "john"},
		{"empty display name", User{Username: "john", DisplayName: ""}, "john"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.GetDisplayName(); got != tt.wantDisplay {
				t.Errorf("GetDisplayName() = %q, want %q", got, tt.wantDisplay)
			}
		})
	}
}

func TestUser_Validate(t *testing.T) {
	tests := []struct {
		name    string
		user    User
		wantErr bool
	}{
		{"valid user", User{Username: "john", Role: "user"}, false},
		{"valid admin", User{Username: "admin", Role: "admin"}, false},
		{"empty role", User{Username: "john"}, false}, // empty role is allowed
		{"missing username", User{Role: "user"}, true},
		{"invalid role", User{Username: "john", Role: "superuser"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.user.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUser_IsAdmin(t *testing.T) {
	tests := []struct {
		role    string
		isAdmin bool
	}{
		{"admin", true},
		{"user", false},
		{"", false},
		{"ADMIN", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			user := User{Role: tt.role}
			if got := user.IsAdmin(); got != tt.isAdmin {
				t.Errorf("IsAdmin() = %v, want %v", got, tt.isAdmin)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"valid", "password123", nil},
		{"minimum length", strings.Repeat("a", MinPasswordLength), nil},
		{"maximum length", strings.Repeat("a", MaxPasswordLength), nil},
		{"too short", "short", ErrPasswordTooShort},
		{"too long", strings.Repeat("a", MaxPasswordLength+1), ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidatePassword(tt.password); err != tt.wantErr {
				t.Errorf("ValidatePassword() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHashPassword(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		hash, err := HashPassword("password123")
		if err != nil {
			t.Fatalf("HashPassword() error = %v", err)
		}
		if hash == "password123" {
			t.Error("hash must not equal the plaintext")
		}
		if !VerifyPassword("password123", hash) {
			t.Error("expected password to verify against its own hash")
		}
		if VerifyPassword("wrong-password", hash) {
			t.Error("expected wrong password to fail verification")
		}
	})

	t.Run("rejects short password", func(t *testing.T) {
		if _, err := HashPassword("short"); err != ErrPasswordTooShort {
			t.Errorf("expected ErrPasswordTooShort, got %v", err)
		}
	})
}

func TestNeedsRehash(t *testing.T) {
	hash, err := HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if NeedsRehash(hash) {
		t.Error("fresh hash should not need rehash")
	}
	if !NeedsRehash("not-a-bcrypt-hash") {
		t.Error("garbage hash should need rehash")
	}
}
