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

package trust

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/appconnect-x/clipcore/internal/errs"
	"github.com/appconnect-x/clipcore/types"
)

// schema is the paired_devices table from spec §6, schema version 1.
const schema = `
CREATE TABLE IF NOT EXISTS paired_devices (
	id                      TEXT PRIMARY KEY,
	name                    TEXT NOT NULL,
	publicKey               TEXT NOT NULL,
	certificateFingerprint  TEXT NOT NULL,
	lastSeen                INTEGER NOT NULL,
	isTrusted               INTEGER NOT NULL,
	fallbackAddress         TEXT,
	createdAt               INTEGER NOT NULL,
	updatedAt               INTEGER NOT NULL
);
`

// SQLiteStore is a restart-durable trust store backed by SQLite, with a
// write-through in-memory cache of trusted devices so ListTrusted stays
// synchronous and I/O-free (spec §4.C / §5).
type SQLiteStore struct {
	db *sql.DB

	cacheMu sync.RWMutex
	trusted map[string]*types.Device
}

// OpenSQLiteStore opens (creating if necessary) a SQLite trust store at
// path and primes its in-memory trusted-device cache.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open trust store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate trust store: %w", err)
	}

	s := &SQLiteStore{db: db, trusted: make(map[string]*types.Device)}
	if err := s.reloadCache(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) reloadCache(ctx context.Context) error {
	devices, err := s.List(ctx)
	if err != nil {
		return err
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.trusted = make(map[string]*types.Device, len(devices))
	for _, d := range devices {
		if d.IsTrusted {
			s.trusted[d.ID] = d
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Insert(ctx context.Context, device *types.Device) error {
	query := `
		INSERT INTO paired_devices (id, name, publicKey, certificateFingerprint, lastSeen, isTrusted, fallbackAddress, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		device.ID, device.Name, device.PublicKey, device.CertificateFingerprint,
		device.LastSeen, boolToInt(device.IsTrusted), device.FallbackAddress,
		device.LastSeen, device.LastSeen,
	)
	if err != nil {
		return errs.New(errs.CodeQRMalformed, "failed to insert device", err)
	}
	return s.refreshCacheEntry(device)
}

func (s *SQLiteStore) Update(ctx context.Context, device *types.Device) error {
	query := `
		UPDATE paired_devices
		SET name = ?, publicKey = ?, certificateFingerprint = ?, lastSeen = ?, isTrusted = ?, fallbackAddress = ?, updatedAt = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		device.Name, device.PublicKey, device.CertificateFingerprint,
		device.LastSeen, boolToInt(device.IsTrusted), device.FallbackAddress,
		device.LastSeen, device.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("device not found: %s", device.ID)
	}
	return s.refreshCacheEntry(device)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM paired_devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	s.cacheMu.Lock()
	delete(s.trusted, id)
	s.cacheMu.Unlock()
	return nil
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*types.Device, error) {
	query := `
		SELECT id, name, publicKey, certificateFingerprint, lastSeen, isTrusted, fallbackAddress
		FROM paired_devices WHERE id = ?
	`
	var d types.Device
	var isTrusted int
	var fallback sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&d.ID, &d.Name, &d.PublicKey, &d.CertificateFingerprint, &d.LastSeen, &isTrusted, &fallback,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	d.IsTrusted = isTrusted != 0
	d.FallbackAddress = fallback.String
	return &d, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*types.Device, error) {
	query := `
		SELECT id, name, publicKey, certificateFingerprint, lastSeen, isTrusted, fallbackAddress
		FROM paired_devices ORDER BY lastSeen DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []*types.Device
	for rows.Next() {
		var d types.Device
		var isTrusted int
		var fallback sql.NullString
		if err := rows.Scan(&d.ID, &d.Name, &d.PublicKey, &d.CertificateFingerprint, &d.LastSeen, &isTrusted, &fallback); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		d.IsTrusted = isTrusted != 0
		d.FallbackAddress = fallback.String
		devices = append(devices, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating devices: %w", err)
	}
	return devices, nil
}

// ListTrusted serves from the in-memory cache only; it never touches the
// database and is safe to call synchronously from a TLS handshake.
func (s *SQLiteStore) ListTrusted() []*types.Device {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	out := make([]*types.Device, 0, len(s.trusted))
	for _, d := range s.trusted {
		cp := *d
		out = append(out, &cp)
	}
	return out
}

func (s *SQLiteStore) Touch(ctx context.Context, id string, lastSeenMillis int64) error {
	result, err := s.db.ExecContext(ctx, `UPDATE paired_devices SET lastSeen = ?, updatedAt = ? WHERE id = ?`, lastSeenMillis, lastSeenMillis, id)
	if err != nil {
		return fmt.Errorf("failed to touch device: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("device not found: %s", id)
	}
	s.cacheMu.Lock()
	if d, ok := s.trusted[id]; ok {
		d.LastSeen = lastSeenMillis
	}
	s.cacheMu.Unlock()
	return nil
}

func (s *SQLiteStore) refreshCacheEntry(device *types.Device) error {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	cp := *device
	if device.IsTrusted {
		s.trusted[device.ID] = &cp
	} else {
		delete(s.trusted, device.ID)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
