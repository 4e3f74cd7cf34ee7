// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package clipboard

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/appconnect-x/clipcore/envelope"
	"github.com/appconnect-x/clipcore/internal/metrics"
	"github.com/appconnect-x/clipcore/types"
)

// schema is the clipboard_items table from spec §6, schema version 1.
const schema = `
CREATE TABLE IF NOT EXISTS clipboard_items (
	id             TEXT PRIMARY KEY,
	content        TEXT NOT NULL,
	contentType    TEXT NOT NULL,
	timestamp      INTEGER NOT NULL,
	ttl            INTEGER NOT NULL,
	synced         INTEGER NOT NULL,
	sourceDeviceId TEXT,
	hash           TEXT NOT NULL
);
`

// SQLiteStore is a restart-durable clipboard store.
type SQLiteStore struct {
	db       *sql.DB
	localKey []byte
}

// OpenSQLiteStore opens (creating if necessary) a SQLite clipboard store
// at path, encrypting content at rest under localKey.
func OpenSQLiteStore(path string, localKey []byte) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open clipboard store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate clipboard store: %w", err)
	}
	return &SQLiteStore{db: db, localKey: localKey}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Put(ctx context.Context, item *types.ClipboardItem) error {
	sealed, err := envelope.SealText(s.localKey, []byte(item.Content))
	if err != nil {
		return err
	}

	query := `
		INSERT INTO clipboard_items (id, content, contentType, timestamp, ttl, synced, sourceDeviceId, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			contentType = excluded.contentType,
			timestamp = excluded.timestamp,
			ttl = excluded.ttl,
			synced = excluded.synced,
			sourceDeviceId = excluded.sourceDeviceId,
			hash = excluded.hash
	`
	_, err = s.db.ExecContext(ctx, query,
		item.ID, sealed, string(item.ContentType), item.Timestamp, item.TTL,
		boolToInt(item.Synced), item.SourceDeviceID, item.Hash,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert clipboard item: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*types.ClipboardItem, error) {
	query := `
		SELECT id, content, contentType, timestamp, ttl, synced, sourceDeviceId, hash
		FROM clipboard_items WHERE id = ?
	`
	item, sealed, err := scanItem(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get clipboard item: %w", err)
	}
	s.decryptInto(item, sealed)
	return item, nil
}

func (s *SQLiteStore) ItemsFlow(ctx context.Context) ([]*types.ClipboardItem, error) {
	return s.queryItems(ctx, `
		SELECT id, content, contentType, timestamp, ttl, synced, sourceDeviceId, hash
		FROM clipboard_items ORDER BY timestamp DESC
	`)
}

func (s *SQLiteStore) UnsyncedFlow(ctx context.Context) ([]*types.ClipboardItem, error) {
	return s.queryItems(ctx, `
		SELECT id, content, contentType, timestamp, ttl, synced, sourceDeviceId, hash
		FROM clipboard_items WHERE synced = 0 ORDER BY timestamp ASC
	`)
}

func (s *SQLiteStore) queryItems(ctx context.Context, query string) ([]*types.ClipboardItem, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list clipboard items: %w", err)
	}
	defer rows.Close()

	var out []*types.ClipboardItem
	for rows.Next() {
		item, sealed, err := scanItemRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan clipboard item: %w", err)
		}
		s.decryptInto(item, sealed)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clipboard items: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) decryptInto(item *types.ClipboardItem, sealed string) {
	plaintext, err := envelope.OpenText(s.localKey, sealed)
	if err != nil {
		metrics.CryptoOperations.WithLabelValues("local_open", "auth_fail").Inc()
		item.Content = StoreDecryptPlaceholder
		return
	}
	item.Content = string(plaintext)
}

func (s *SQLiteStore) MarkSynced(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE clipboard_items SET synced = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark synced: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("item not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM clipboard_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete clipboard item: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Sweep(ctx context.Context, nowMillis int64) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM clipboard_items WHERE timestamp + ttl < ?`, nowMillis)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep clipboard items: %w", err)
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row *sql.Row) (*types.ClipboardItem, string, error) {
	return scanItemRows(row)
}

func scanItemRows(row rowScanner) (*types.ClipboardItem, string, error) {
	var item types.ClipboardItem
	var sealed, contentType string
	var synced int
	var sourceDeviceID sql.NullString

	err := row.Scan(&item.ID, &sealed, &contentType, &item.Timestamp, &item.TTL, &synced, &sourceDeviceID, &item.Hash)
	if err != nil {
		return nil, "", err
	}
	item.ContentType = types.ContentType(contentType)
	item.Synced = synced != 0
	item.SourceDeviceID = sourceDeviceID.String
	return &item, sealed, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
