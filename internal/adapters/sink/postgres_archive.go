package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/ghalamif/sensorboard/internal/domain"
	"github.com/ghalamif/sensorboard/internal/ports"
)

// PostgresArchive keeps a copy of every pushed record in a table keyed by
// (session_id, seq), so re-sent batches are idempotent.
type PostgresArchive struct {
	db        *sql.DB
	tableName string
	sessionID string
}

// Open connects with the lib/pq driver and checks the connection.
func Open(ctx context.Context, connString string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping archive db: %w", err)
	}
	return db, nil
}

func NewPostgresArchive(db *sql.DB, table, sessionID string) *PostgresArchive {
	return &PostgresArchive{db: db, tableName: quoteTable(table), sessionID: sessionID}
}

func (p *PostgresArchive) Name() string { return "postgres" }

// EnsureSchema creates the archive table when it does not exist yet.
func (p *PostgresArchive) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+p.tableName+` (
	session_id TEXT NOT NULL,
	seq BIGINT NOT NULL,
	received TIMESTAMPTZ NOT NULL,
	source TEXT NOT NULL,
	fields JSONB NOT NULL,
	PRIMARY KEY (session_id, seq)
)`)
	if err != nil {
		return fmt.Errorf("create %s: %w", p.tableName, err)
	}
	return nil
}

func (p *PostgresArchive) WriteBatch(records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(p.tableName)
	b.WriteString(" (session_id, seq, received, source, fields) VALUES ")

	args := make([]any, 0, len(records)*5)
	for i, r := range records {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4, len(args)+5))
		fields, err := domain.Fields(r.Fields).MarshalJSON()
		if err != nil {
			return fmt.Errorf("marshal fields seq %d: %w", r.Seq, err)
		}

		args = append(args,
			p.sessionID,
			int64(r.Seq),
			r.Received,
			r.Source,
			string(fields),
		)
	}

	b.WriteString(" ON CONFLICT (session_id, seq) DO NOTHING")

	_, err := p.db.Exec(b.String(), args...)
	return err
}

func quoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = pq.QuoteIdentifier(part)
	}
	return strings.Join(parts, ".")
}

var _ ports.Archive = (*PostgresArchive)(nil)
