package infra

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestExtractMarker(t *testing.T) {
	const id = "0b8e5c1c-3f57-4a7e-9f0c-6fd0d4b7f3a1"
	tests := []struct {
		name    string
		query   string
		marker  string
		body    string
		wantErr bool
	}{
		{
			name:   "valid",
			query:  "--sql " + id + "\nSELECT 1",
			marker: id,
			body:   "SELECT 1",
		},
		{
			name:   "leading whitespace",
			query:  "\n  --sql " + id + "\nSELECT 1\nFROM ads",
			marker: id,
			body:   "SELECT 1\nFROM ads",
		},
		{
			name:    "missing marker",
			query:   "SELECT 1",
			wantErr: true,
		},
		{
			name:    "uppercase uuid rejected",
			query:   "--sql 0B8E5C1C-3F57-4A7E-9F0C-6FD0D4B7F3A1\nSELECT 1",
			wantErr: true,
		},
		{
			name:    "empty",
			query:   "   ",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			marker, body, err := ExtractMarker(tc.query)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got marker %q", marker)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractMarker error: %v", err)
			}
			if marker != tc.marker {
				t.Fatalf("marker = %q, want %q", marker, tc.marker)
			}
			if body != tc.body {
				t.Fatalf("body = %q, want %q", body, tc.body)
			}
		})
	}
}

func TestErrorClassifiers(t *testing.T) {
	if !IsNoRows(fmt.Errorf("wrapped: %w", pgx.ErrNoRows)) {
		t.Fatal("IsNoRows should match wrapped pgx.ErrNoRows")
	}
	if IsNoRows(errors.New("other")) {
		t.Fatal("IsNoRows matched unrelated error")
	}
	if !IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})) {
		t.Fatal("IsUniqueViolation should match 23505")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("IsUniqueViolation matched foreign key error")
	}
}
