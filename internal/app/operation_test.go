package app

import (
	"slices"
	"testing"
	"time"
)

func TestNewOperation(t *testing.T) {
	start := time.Date(2026, 2, 3, 4, 5, 6, 0, time.FixedZone("CET", 3600))

	op := NewOperation("ImportDirectory", []string{"/srv/site"}, start)

	if op.ID != "20260203T030506Z" {
		t.Errorf("ID = %q, want 20260203T030506Z", op.ID)
	}
	if op.Name != "ImportDirectory" || !slices.Equal(op.Args, []string{"/srv/site"}) {
		t.Errorf("Name/Args = %q %v", op.Name, op.Args)
	}
	if !op.StartedAt.Equal(start) || op.StartedAt.Location() != time.UTC {
		t.Errorf("StartedAt = %v, want %v in UTC", op.StartedAt, start)
	}
	if op.Status != "success" || op.Failed() {
		t.Errorf("new operation status = %q, want success", op.Status)
	}
}

func TestOperation_Fail(t *testing.T) {
	op := NewOperation("PutPage", nil, time.Now())
	op.Fail()
	if !op.Failed() || op.Status != "error" {
		t.Errorf("after Fail() status = %q", op.Status)
	}
}
