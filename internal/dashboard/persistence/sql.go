// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// Dialect captures the SQL differences between the supported databases.
type Dialect struct {
	Name string
	// BlobType is the column type used for values.
	BlobType string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// LockKey, when set, is executed once per watched key (in key order) at the start of
	// every Update to serialize transactions touching the same keys.
	LockKey string
}

// SQLiteDialect serializes transactions through a single connection, so it needs no key locks.
var SQLiteDialect = Dialect{
	Name:        "sqlite",
	BlobType:    "BLOB",
	Placeholder: func(int) string { return "?" },
}

// PostgresDialect takes a transaction-scoped advisory lock per watched key.
var PostgresDialect = Dialect{
	Name:        "postgres",
	BlobType:    "BYTEA",
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	LockKey:     "SELECT pg_advisory_xact_lock(hashtext($1))",
}

// DefaultTable is the table SQLStore keeps its key-value pairs in.
const DefaultTable = "aetherflow_kv"

// SQLStore keeps key-value pairs in a single table (key text primary key, value blob).
// The table is created on construction if it does not exist.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect

	getSQL    string
	upsertSQL string
	deleteSQL string
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// NewSQLStore prepares the queries for the dialect and creates table if missing.
// An empty table selects DefaultTable.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect, table string) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("sql store requires a non-nil *sql.DB")
	}
	if table == "" {
		table = DefaultTable
	}
	p := dialect.Placeholder
	s := &SQLStore{
		db:        db,
		dialect:   dialect,
		getSQL:    fmt.Sprintf("SELECT value FROM %s WHERE key = %s", table, p(1)),
		upsertSQL: fmt.Sprintf("INSERT INTO %s (key, value, updated_at) VALUES (%s, %s, CURRENT_TIMESTAMP) ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at", table, p(1), p(2)),
		deleteSQL: fmt.Sprintf("DELETE FROM %s WHERE key = %s", table, p(1)),
	}
	createSQL := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (key TEXT PRIMARY KEY, value %s NOT NULL, updated_at TIMESTAMP NOT NULL)", table, dialect.BlobType)
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return nil, errors.Wrapf(err, "create table %s", table)
	}
	return s, nil
}

func (s *SQLStore) get(ctx context.Context, q queryRower, key string) ([]byte, error) {
	var value []byte
	err := q.QueryRowContext(ctx, s.getSQL, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s get %s", s.dialect.Name, key)
	}
	return value, nil
}

func (s *SQLStore) put(ctx context.Context, e execer, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	if _, err := e.ExecContext(ctx, s.upsertSQL, key, value); err != nil {
		return errors.Wrapf(err, "%s put %s", s.dialect.Name, key)
	}
	return nil
}

func (s *SQLStore) delete(ctx context.Context, e execer, key string) (bool, error) {
	res, err := e.ExecContext(ctx, s.deleteSQL, key)
	if err != nil {
		return false, errors.Wrapf(err, "%s delete %s", s.dialect.Name, key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.WithStack(err)
	}
	return n > 0, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.get(ctx, s.db, key)
}

func (s *SQLStore) Put(ctx context.Context, key string, value []byte) error {
	return s.put(ctx, s.db, key, value)
}

func (s *SQLStore) Delete(ctx context.Context, key string) (bool, error) {
	return s.delete(ctx, s.db, key)
}

func (s *SQLStore) Update(ctx context.Context, keys []string, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "%s begin", s.dialect.Name)
	}
	// Rollback after a successful Commit is a no-op.
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if s.dialect.LockKey != "" {
		sorted := append([]string(nil), keys...)
		sort.Strings(sorted)
		for _, k := range sorted {
			if _, err := sqlTx.ExecContext(ctx, s.dialect.LockKey, k); err != nil {
				return errors.Wrapf(err, "%s lock %s", s.dialect.Name, k)
			}
		}
	}

	tx := newStagedTx(func(key string) ([]byte, error) {
		return s.get(ctx, sqlTx, key)
	})
	if err := fn(tx); err != nil {
		return err
	}
	var applyErr error
	tx.each(func(key string, w stagedWrite) {
		if applyErr != nil {
			return
		}
		if w.deleted {
			_, applyErr = s.delete(ctx, sqlTx, key)
		} else {
			applyErr = s.put(ctx, sqlTx, key, w.value)
		}
	})
	if applyErr != nil {
		return applyErr
	}
	if err := sqlTx.Commit(); err != nil {
		return errors.Wrapf(err, "%s commit", s.dialect.Name)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
