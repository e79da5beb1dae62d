package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KingMavin/UniSemi/internal/domain/audit"
)

// AuditSink implements audit.Sink for PostgreSQL.
type AuditSink struct {
	conn *Connection
}

// NewAuditSink creates a new AuditSink.
func NewAuditSink(conn *Connection) *AuditSink {
	return &AuditSink{conn: conn}
}

var _ audit.Sink = (*AuditSink)(nil)

// Append stores one entry.
func (s *AuditSink) Append(ctx context.Context, e audit.Entry) error {
	const query = `
		INSERT INTO audit_log (id, action, details, timestamp_ms)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	err := s.conn.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, query, e.ID, string(e.Action), e.Details, e.TimestampMs)
		return err
	})
	return translate("AuditAppend", err)
}

// ScanReverse returns up to limit entries in descending id order.
func (s *AuditSink) ScanReverse(ctx context.Context, limit int) ([]audit.Entry, error) {
	const query = `
		SELECT id, action, details, timestamp_ms
		FROM audit_log
		ORDER BY id DESC
		LIMIT $1
	`

	var out []audit.Entry
	err := s.conn.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, query, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var e audit.Entry
			var action string
			if err := rows.Scan(&e.ID, &action, &e.Details, &e.TimestampMs); err != nil {
				return err
			}
			e.Action = audit.Action(action)
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, translate("AuditScan", err)
	}
	return out, nil
}

// Recreate drops the audit table and provisions it empty.
func (s *AuditSink) Recreate(ctx context.Context) error {
	err := s.conn.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DROP TABLE IF EXISTS audit_log`); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, auditTableDDL)
		return err
	})
	return translate("AuditRecreate", err)
}
