package postgres

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"resource-api/internal/model"
)

// DriverName is the database/sql driver registered by lib/pq.
const DriverName = "postgres"

// integrityConstraintClass is the SQLSTATE class of constraint violations.
const integrityConstraintClass = "23"

const createResourcesTable = `
CREATE TABLE IF NOT EXISTS resources (
	id BIGSERIAL PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	description VARCHAR(255) NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// Open connects to the postgres server described by dsn and verifies the
// connection.
func Open(dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sqlx.Connect(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// Dialect is the postgres flavour of model.Dialect.
type Dialect struct{}

var _ model.Dialect = Dialect{}

func (Dialect) CreateResourceTable() string {
	return createResourcesTable
}

func (Dialect) IsConstraintViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == integrityConstraintClass
	}
	return false
}
