// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"
)

func init() {
	sql.Register("sqlite3WithHooks", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &hooks{}))
}

// SqliteBackend writes result rows into a per-run SQLite database in long
// format: one row per (element, class, time, channel).
type SqliteBackend struct {
	storeAtRuntime bool
	dbPath         string

	storage *ResultsStorage
	db      *sqlx.DB
	tx      *sqlx.Tx
	pending int
}

func NewSqliteBackend(input schema.BackendInput) *SqliteBackend {
	return &SqliteBackend{
		storeAtRuntime: input.StoreAtRuntime,
		dbPath:         input.DBPath,
	}
}

func (s *SqliteBackend) Setup(storage *ResultsStorage) error {
	s.storage = storage
	if s.dbPath == "" {
		s.dbPath = filepath.Join(storage.ResultDir(), "results.db")
	}

	db, err := sqlx.Open("sqlite3WithHooks", fmt.Sprintf("%s?_foreign_keys=on", s.dbPath))
	if err != nil {
		return fmt.Errorf("results: could not open sqlite database '%s': %w", s.dbPath, err)
	}
	// sqlite does not multithread; more connections would only wait on locks
	db.SetMaxOpenConns(1)
	s.db = db

	if err := migrateResultsDB(db.DB); err != nil {
		return err
	}

	cclog.Infof("[STORAGE]> SQLite backend writing to '%s'", s.dbPath)
	return nil
}

func (s *SqliteBackend) StoreAtRuntime() bool {
	return s.storeAtRuntime
}

func (s *SqliteBackend) StoreRow(compIdx int, chType schema.ChannelStoreType, rowIdx int) error {
	cs := s.storage.Components()[compIdx]
	channels := cs.Channels(chType)
	if channels.NumChannels() <= 1 || rowIdx < 0 {
		return nil
	}

	if s.tx == nil {
		tx, err := s.db.Beginx()
		if err != nil {
			return err
		}
		s.tx = tx
	}

	timeVal := channels.ValueAt(rowIdx, 0)

	builder := sq.Insert("result_values").
		Columns("component", "class", "time", "channel", "unit", "value")

	for col := 1; col < channels.NumChannels(); col++ {
		info := channels.ChannelInfo(col)
		val := channels.ValueAt(rowIdx, col)
		builder = builder.Values(
			cs.Component().Name(),
			chType.FileSuffix(),
			timeVal.Double(),
			info.Name,
			info.Unit,
			val.String(),
		)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	if _, err := s.tx.Exec(query, args...); err != nil {
		return fmt.Errorf("results: sqlite insert failed: %w", err)
	}

	s.pending++
	if s.pending >= 512 {
		return s.Flush()
	}
	return nil
}

func (s *SqliteBackend) Flush() error {
	if s.tx == nil {
		return nil
	}
	if err := s.tx.Commit(); err != nil {
		return err
	}
	s.tx = nil
	s.pending = 0
	return nil
}

func (s *SqliteBackend) Finish() error {
	if err := s.Flush(); err != nil {
		return err
	}
	return s.db.Close()
}

// hooks satisfies the sqlhooks interface and logs queries at debug level.
type hooks struct{}

func (h *hooks) Before(ctx context.Context, query string, args ...any) (context.Context, error) {
	cclog.Debugf("SQL query %s %q", query, args)
	return ctx, nil
}

func (h *hooks) After(ctx context.Context, query string, args ...any) (context.Context, error) {
	return ctx, nil
}
