package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE STUDENT RECORDS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create student records
-- Version: 001

-- One row per student. Column groups mirror the record layout:
-- identity/derived fields and the academic history blob.
CREATE TABLE IF NOT EXISTS student_records (
    matric VARCHAR(64) PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    department TEXT NOT NULL DEFAULT '',
    gpa VARCHAR(16) NOT NULL DEFAULT '0.00',
    cgpa VARCHAR(16) NOT NULL DEFAULT '0.00',
    history TEXT NOT NULL DEFAULT '[]',
    version BIGINT NOT NULL DEFAULT 1,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

-- Retained versions of the history blob, newest kept, oldest trimmed.
CREATE TABLE IF NOT EXISTS student_history_versions (
    id BIGSERIAL PRIMARY KEY,
    matric VARCHAR(64) NOT NULL REFERENCES student_records(matric) ON DELETE CASCADE,
    value TEXT NOT NULL,
    written_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_history_versions_matric
    ON student_history_versions (matric, written_at DESC, id DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS student_history_versions;
DROP TABLE IF EXISTS student_records;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE AUDIT LOG
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = auditTableDDL

const migration002Down = `
DROP TABLE IF EXISTS audit_log;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE RECORD TOMBSTONES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create record tombstones
-- Version: 003

-- Last version of each deleted record. A re-created record continues from
-- here so a version read before the delete can never match again.
CREATE TABLE IF NOT EXISTS student_record_tombstones (
    matric VARCHAR(64) PRIMARY KEY,
    version BIGINT NOT NULL,
    deleted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migration003Down = `
DROP TABLE IF EXISTS student_record_tombstones;
`

// auditTableDDL is shared with AuditSink.Recreate.
const auditTableDDL = `
CREATE TABLE IF NOT EXISTS audit_log (
    id VARCHAR(64) PRIMARY KEY,
    action VARCHAR(32) NOT NULL,
    details TEXT NOT NULL DEFAULT '',
    timestamp_ms BIGINT NOT NULL
);
`
