package infra

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"reading-gate/gate/domain"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLLeadStore grava leads via database/sql. O driver define apenas o estilo
// de placeholder e o DDL de bootstrap.
type SQLLeadStore struct {
	db     *sql.DB
	driver string
}

func NewSQLLeadStore(db *sql.DB, driver string) *SQLLeadStore {
	return &SQLLeadStore{db: db, driver: driver}
}

// OpenLeadDB abre e pinga o banco de leads.
func OpenLeadDB(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported lead driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// sqlite serializa escritas de qualquer forma
		db.SetMaxOpenConns(1)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

const sqliteSchema = `CREATE TABLE IF NOT EXISTS gate_leads (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL,
	consent INTEGER NOT NULL DEFAULT 0,
	page_url TEXT NOT NULL,
	page_title TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS gate_leads_email ON gate_leads (email);
CREATE INDEX IF NOT EXISTS gate_leads_created_at ON gate_leads (created_at);`

const postgresSchema = `CREATE TABLE IF NOT EXISTS gate_leads (
	id TEXT PRIMARY KEY,
	email VARCHAR(254) NOT NULL,
	consent BOOLEAN NOT NULL DEFAULT FALSE,
	page_url TEXT NOT NULL,
	page_title TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS gate_leads_email ON gate_leads (email);
CREATE INDEX IF NOT EXISTS gate_leads_created_at ON gate_leads (created_at);`

// EnsureSchema cria a tabela se ainda não existir. Migrações ficam fora daqui.
func (s *SQLLeadStore) EnsureSchema(ctx context.Context) error {
	ddl := sqliteSchema
	if s.driver == DriverPostgres {
		ddl = postgresSchema
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure lead schema: %w", err)
	}
	return nil
}

func (s *SQLLeadStore) insertQuery() string {
	if s.driver == DriverPostgres {
		return "INSERT INTO gate_leads (id, email, consent, page_url, page_title, created_at) VALUES ($1, $2, $3, $4, $5, $6)"
	}
	return "INSERT INTO gate_leads (id, email, consent, page_url, page_title, created_at) VALUES (?, ?, ?, ?, ?, ?)"
}

func (s *SQLLeadStore) Insert(ctx context.Context, lead domain.Lead) error {
	_, err := s.db.ExecContext(ctx, s.insertQuery(),
		lead.ID, lead.Email, lead.Consent, lead.PageURL, lead.PageTitle, lead.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

var _ domain.LeadStore = (*SQLLeadStore)(nil)
