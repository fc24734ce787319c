// Package store persists the three sync projections: Users, Roles and
// UserRoles. The three tables are independently rebuildable; no referential
// integrity is enforced between them.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/dspsync/userlist/scim"
)

// Store is a relational store over database/sql. Supported drivers are
// "sqlite3" and "postgres".
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(db, driver), nil
}

// New wraps an existing connection. Used by tests to inject a mock.
func New(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Init creates the schema when it does not exist yet.
func (s *Store) Init(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			family_name TEXT,
			given_name TEXT,
			display_name TEXT,
			email TEXT,
			user_name TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS roles (
			id TEXT PRIMARY KEY,
			role_value TEXT,
			role_display TEXT,
			user_count INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS user_roles (
			user_id TEXT,
			role_value TEXT
		)`,
	}
	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for the postgres driver.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// UpsertUsers writes user records keyed by identifier. Users absent from
// the batch are left untouched.
func (s *Store) UpsertUsers(ctx context.Context, records []scim.UserRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := s.rebind(`INSERT INTO users (id, family_name, given_name, display_name, email, user_name)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			family_name = excluded.family_name,
			given_name = excluded.given_name,
			display_name = excluded.display_name,
			email = excluded.email,
			user_name = excluded.user_name`)
	for _, record := range records {
		if _, err = tx.ExecContext(ctx, query,
			record.ID, record.FamilyName, record.GivenName,
			record.DisplayName, record.Email, record.UserName); err != nil {
			return 0, fmt.Errorf("upsert user %q: %w", record.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit users: %w", err)
	}
	return len(records), nil
}

// UpsertRoles writes role aggregates keyed by role value.
func (s *Store) UpsertRoles(ctx context.Context, roles []scim.RoleAggregate) (int, error) {
	if len(roles) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err = s.upsertRolesTx(ctx, tx, roles); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit roles: %w", err)
	}
	return len(roles), nil
}

func (s *Store) upsertRolesTx(ctx context.Context, tx *sql.Tx, roles []scim.RoleAggregate) error {
	query := s.rebind(`INSERT INTO roles (id, role_value, role_display, user_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			role_value = excluded.role_value,
			role_display = excluded.role_display,
			user_count = excluded.user_count`)
	for _, role := range roles {
		id := role.Value
		if len(id) == 0 {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, query, id, role.Value, role.Display, role.UserCount); err != nil {
			return fmt.Errorf("upsert role %q: %w", role.Value, err)
		}
	}
	return nil
}

// ReplaceUserRoles refreshes the role aggregates, then rebuilds the
// association table from scratch: all existing rows are deleted before the
// new set is inserted. An empty set still empties the table.
func (s *Store) ReplaceUserRoles(ctx context.Context, roles []scim.RoleAggregate, associations []scim.UserRole) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if len(roles) > 0 {
		if err = s.upsertRolesTx(ctx, tx, roles); err != nil {
			return 0, err
		}
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM user_roles`); err != nil {
		return 0, fmt.Errorf("clear user roles: %w", err)
	}
	insert := s.rebind(`INSERT INTO user_roles (user_id, role_value) VALUES (?, ?)`)
	for _, association := range associations {
		if _, err = tx.ExecContext(ctx, insert, association.UserID, association.RoleValue); err != nil {
			return 0, fmt.Errorf("insert user role (%s, %s): %w", association.UserID, association.RoleValue, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit user roles: %w", err)
	}
	return len(associations), nil
}
