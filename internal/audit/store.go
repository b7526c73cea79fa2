// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

// Package audit keeps a local history of signing runs so a release
// engineer can answer "what was signed, when, and with which key"
// without trawling build logs.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dotandev/fwsign/internal/config"
)

// Run is one recorded pipeline invocation.
type Run struct {
	ID         int64     `json:"id"`
	ElfPath    string    `json:"elf_path"`
	Section    string    `json:"section"`
	SignerKind string    `json:"signer_kind"`
	KeyRef     string    `json:"key_ref"`
	ImageSize  int64     `json:"image_size"`
	Digest     string    `json:"digest"`
	Status     string    `json:"status"`
	ErrorMsg   string    `json:"error_msg,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Run statuses.
const (
	StatusSigned = "signed"
	StatusFailed = "failed"
)

// Store handles database operations.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the audit database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit db: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenDefault opens the audit database in the fwsign state directory.
func OpenDefault() (*Store, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	return Open(filepath.Join(dir, "audit.db"))
}

func initSchema(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		elf_path TEXT NOT NULL,
		section TEXT NOT NULL,
		signer_kind TEXT,
		key_ref TEXT,
		image_size INTEGER,
		digest TEXT,
		status TEXT,
		error_msg TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_runs_elf_path ON runs(elf_path);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to init audit schema: %w", err)
	}
	return nil
}

// Record persists one run.
func (s *Store) Record(run *Run) error {
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now()
	}
	query := `
	INSERT INTO runs (elf_path, section, signer_kind, key_ref, image_size, digest, status, error_msg, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.Exec(query,
		run.ElfPath, run.Section, run.SignerKind, run.KeyRef,
		run.ImageSize, run.Digest, run.Status, run.ErrorMsg, run.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		run.ID = id
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
	SELECT id, elf_path, section, signer_kind, key_ref, image_size, digest, status, error_msg, timestamp
	FROM runs ORDER BY id DESC LIMIT ?
	`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.ElfPath, &r.Section, &r.SignerKind, &r.KeyRef,
			&r.ImageSize, &r.Digest, &r.Status, &r.ErrorMsg, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
