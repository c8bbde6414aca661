package database

import (
	"database/sql"
	"fmt"
	"time"
)

// Station is a directory entry together with its last known check-derived
// attributes. This is the "before" state used for change detection; it is
// read once per batch and never written back directly from the checker.
type Station struct {
	StationID     int64
	StationUUID   string
	Name          string
	URL           string
	Homepage      string
	Favicon       string
	Codec         string
	Bitrate       int
	Hls           bool
	LastCheckOK   bool
	LastCheckTime sql.NullTime
}

// CheckRecord is the "after" state produced by one station check. Records are
// append-only history; a row is written once and never mutated.
type CheckRecord struct {
	CheckUUID   string
	StationUUID string
	Source      string
	Codec       string
	Bitrate     int
	Hls         bool
	CheckOK     bool
	URLCache    string
	CheckTime   time.Time
}

// StationsDueForCheck returns up to limit stations whose last check is absent
// or older than stalenessHours. Oldest checks come first, ties broken by
// station id, so identical input always yields the same order.
func (db *DB) StationsDueForCheck(stalenessHours, limit int) ([]Station, error) {
	cutoff := time.Now().Add(-time.Duration(stalenessHours) * time.Hour)

	rows, err := db.Query(`
		SELECT station_id, station_uuid, name, url, homepage, favicon,
		       codec, bitrate, hls, last_check_ok, last_check_time
		FROM stations
		WHERE last_check_time IS NULL OR last_check_time < ?
		ORDER BY last_check_time ASC, station_id ASC
		LIMIT ?
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load due stations: %w", err)
	}
	defer rows.Close()

	var stations []Station
	for rows.Next() {
		var s Station
		err := rows.Scan(
			&s.StationID, &s.StationUUID, &s.Name, &s.URL, &s.Homepage, &s.Favicon,
			&s.Codec, &s.Bitrate, &s.Hls, &s.LastCheckOK, &s.LastCheckTime,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		stations = append(stations, s)
	}

	return stations, rows.Err()
}

// InsertCheck appends one check record to the history.
func (db *DB) InsertCheck(rec *CheckRecord) error {
	_, err := db.Exec(`
		INSERT INTO station_checks
			(check_uuid, station_uuid, source, codec, bitrate, hls, check_ok, url_cache, check_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.CheckUUID, rec.StationUUID, rec.Source, rec.Codec, rec.Bitrate,
		rec.Hls, rec.CheckOK, rec.URLCache, rec.CheckTime)
	if err != nil {
		return fmt.Errorf("failed to insert check: %w", err)
	}
	return nil
}

// UpdateStationCachedState overwrites the station's cached codec, bitrate,
// HLS flag, pass/fail and last check time from a fresh check record. The
// last-ok time is only advanced when the check passed.
func (db *DB) UpdateStationCachedState(rec *CheckRecord) error {
	var err error
	if rec.CheckOK {
		_, err = db.Exec(`
			UPDATE stations
			SET codec = ?, bitrate = ?, hls = ?, last_check_ok = ?,
			    last_check_time = ?, last_check_ok_time = ?
			WHERE station_uuid = ?
		`, rec.Codec, rec.Bitrate, rec.Hls, rec.CheckOK,
			rec.CheckTime, rec.CheckTime, rec.StationUUID)
	} else {
		_, err = db.Exec(`
			UPDATE stations
			SET codec = ?, bitrate = ?, hls = ?, last_check_ok = ?,
			    last_check_time = ?
			WHERE station_uuid = ?
		`, rec.Codec, rec.Bitrate, rec.Hls, rec.CheckOK,
			rec.CheckTime, rec.StationUUID)
	}
	if err != nil {
		return fmt.Errorf("failed to update station state: %w", err)
	}
	return nil
}

// UpdateStationFavicon stores a repaired favicon URL for a station.
func (db *DB) UpdateStationFavicon(stationUUID, faviconURL string) error {
	_, err := db.Exec(`
		UPDATE stations SET favicon = ? WHERE station_uuid = ?
	`, faviconURL, stationUUID)
	if err != nil {
		return fmt.Errorf("failed to update favicon: %w", err)
	}
	return nil
}
