package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"nvr-kiosk/work/config"
)

// Camera is one catalog entry, usually created by an M3U import.
type Camera struct {
	Channel int    `json:"channel"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// SaveTourConfig upserts the single tour configuration row.
func (d *DB) SaveTourConfig(tc config.TourConfig) error {
	ids, err := json.Marshal(config.NormalizeCameraIDs(tc.ActiveCameraIDs))
	if err != nil {
		return fmt.Errorf("failed to encode camera ids: %w", err)
	}
	_, err = d.Exec(`INSERT INTO tour_config (id, grid_size, interval_seconds, active_camera_ids, updated_at)
		VALUES (1, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			grid_size = excluded.grid_size,
			interval_seconds = excluded.interval_seconds,
			active_camera_ids = excluded.active_camera_ids,
			updated_at = CURRENT_TIMESTAMP`,
		tc.GridSize, int(tc.Interval/time.Second), string(ids))
	if err != nil {
		return fmt.Errorf("failed to save tour config: %w", err)
	}
	return nil
}

// LoadTourConfig reads the persisted tour configuration. found is false when
// nothing has been saved yet.
func (d *DB) LoadTourConfig() (tc config.TourConfig, found bool, err error) {
	var intervalSeconds int
	var idsJSON string
	err = d.QueryRow(`SELECT grid_size, interval_seconds, active_camera_ids FROM tour_config WHERE id = 1`).
		Scan(&tc.GridSize, &intervalSeconds, &idsJSON)
	if err == sql.ErrNoRows {
		return tc, false, nil
	}
	if err != nil {
		return tc, false, fmt.Errorf("failed to load tour config: %w", err)
	}

	tc.Interval = time.Duration(intervalSeconds) * time.Second
	if err := json.Unmarshal([]byte(idsJSON), &tc.ActiveCameraIDs); err != nil {
		return tc, false, fmt.Errorf("failed to decode camera ids: %w", err)
	}
	tc.ActiveCameraIDs = config.NormalizeCameraIDs(tc.ActiveCameraIDs)
	return tc, true, nil
}

// SaveEndpoint upserts the single recorder endpoint row.
func (d *DB) SaveEndpoint(e config.StreamEndpoint) error {
	sub := 0
	if e.SubStream {
		sub = 1
	}
	_, err := d.Exec(`INSERT INTO endpoint (id, host, port, username, password, sub_stream, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			host = excluded.host,
			port = excluded.port,
			username = excluded.username,
			password = excluded.password,
			sub_stream = excluded.sub_stream,
			updated_at = CURRENT_TIMESTAMP`,
		e.Host, e.Port, e.Username, e.Password, sub)
	if err != nil {
		return fmt.Errorf("failed to save endpoint: %w", err)
	}
	return nil
}

// LoadEndpoint reads the persisted recorder endpoint.
func (d *DB) LoadEndpoint() (e config.StreamEndpoint, found bool, err error) {
	var sub int
	err = d.QueryRow(`SELECT host, port, username, password, sub_stream FROM endpoint WHERE id = 1`).
		Scan(&e.Host, &e.Port, &e.Username, &e.Password, &sub)
	if err == sql.ErrNoRows {
		return e, false, nil
	}
	if err != nil {
		return e, false, fmt.Errorf("failed to load endpoint: %w", err)
	}
	e.SubStream = sub != 0
	return e, true, nil
}

// UpsertCameras writes a batch of catalog entries in one transaction.
func (d *DB) UpsertCameras(cams []Camera) error {
	tx, err := d.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin camera upsert: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO cameras (channel, name, enabled, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(channel) DO UPDATE SET
			name = excluded.name,
			enabled = excluded.enabled,
			updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare camera upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range cams {
		enabled := 0
		if c.Enabled {
			enabled = 1
		}
		if _, err := stmt.Exec(c.Channel, c.Name, enabled); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to upsert camera %d: %w", c.Channel, err)
		}
	}
	return tx.Commit()
}

// ListCameras returns the catalog ordered by channel.
func (d *DB) ListCameras() ([]Camera, error) {
	rows, err := d.Query(`SELECT channel, name, enabled FROM cameras ORDER BY channel`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cameras: %w", err)
	}
	defer rows.Close()

	var out []Camera
	for rows.Next() {
		var c Camera
		var enabled int
		if err := rows.Scan(&c.Channel, &c.Name, &enabled); err != nil {
			return nil, fmt.Errorf("failed to scan camera: %w", err)
		}
		c.Enabled = enabled != 0
		out = append(out, c)
	}
	return out, rows.Err()
}
