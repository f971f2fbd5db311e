package config

import (
	"testing"
)

func TestDSN(t *testing.T) {
	full := DatabaseConfig{URL: "postgres://u:p@db:5432/events?sslmode=require"}
	if got := full.DSN(); got != "postgres://u:p@db:5432/events?sslmode=require" {
		t.Errorf("DSN() = %q, want the URL verbatim", got)
	}

	parts := DatabaseConfig{Host: "localhost", Port: "5432", User: "postgres", Password: "pw", DBName: "events", SSLMode: "disable"}
	want := "postgres://postgres:pw@localhost:5432/events?sslmode=disable"
	if got := parts.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port == "" {
		t.Error("missing default port")
	}
	if cfg.Attendance.QRSize != 400 {
		t.Errorf("QRSize = %d, want 400", cfg.Attendance.QRSize)
	}
	if cfg.JWT.ExpireHours <= 0 {
		t.Errorf("ExpireHours = %d", cfg.JWT.ExpireHours)
	}
}

func TestSplitTrim(t *testing.T) {
	got := SplitTrim(" https://a.example.com, https://b.example.com ,,")
	if len(got) != 2 || got[0] != "https://a.example.com" || got[1] != "https://b.example.com" {
		t.Errorf("SplitTrim = %v", got)
	}
}
