package database

import (
	"fmt"
	"time"
)

// The maintenance queries run on their own hourly timer, independent of the
// check batches. Counts feed the stats log line; the delete operations only
// run when the deletion policy flag is set.

// CountChecks returns the number of checks this source performed within the
// last N hours.
func (db *DB) CountChecks(hours int, source string) (int, error) {
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM station_checks WHERE source = ? AND check_time > ?
	`, source, cutoff).Scan(&count)
	return count, err
}

// CountWorking returns the number of stations whose last check passed.
func (db *DB) CountWorking() (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM stations WHERE last_check_ok = 1`).Scan(&count)
	return count, err
}

// CountBroken returns the number of stations whose last check failed.
func (db *DB) CountBroken() (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM stations WHERE last_check_ok = 0`).Scan(&count)
	return count, err
}

// CountDue returns the number of stations with no check newer than the
// staleness window.
func (db *DB) CountDue(stalenessHours int) (int, error) {
	cutoff := time.Now().Add(-time.Duration(stalenessHours) * time.Hour)
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM stations
		WHERE last_check_time IS NULL OR last_check_time < ?
	`, cutoff).Scan(&count)
	return count, err
}

// CountDeletableNeverWorked returns the number of stations that were checked
// at least once, never passed and are older than the given window.
func (db *DB) CountDeletableNeverWorked(hours int) (int, error) {
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM stations
		WHERE last_check_ok_time IS NULL
		  AND last_check_time IS NOT NULL AND last_check_time < ?
	`, cutoff).Scan(&count)
	return count, err
}

// CountDeletableWereWorking returns the number of stations that once worked
// but have not passed a check within the given window.
func (db *DB) CountDeletableWereWorking(hours int) (int, error) {
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM stations
		WHERE last_check_ok_time IS NOT NULL AND last_check_ok_time < ?
		  AND last_check_ok = 0
	`, cutoff).Scan(&count)
	return count, err
}

// DeleteNeverWorked removes stations that never passed a check and are older
// than the given window.
func (db *DB) DeleteNeverWorked(hours int) (int64, error) {
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	result, err := db.Exec(`
		DELETE FROM stations
		WHERE last_check_ok_time IS NULL
		  AND last_check_time IS NOT NULL AND last_check_time < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete never-working stations: %w", err)
	}
	return result.RowsAffected()
}

// DeleteWereWorking removes stations that once worked but have been broken
// longer than the given window.
func (db *DB) DeleteWereWorking(hours int) (int64, error) {
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	result, err := db.Exec(`
		DELETE FROM stations
		WHERE last_check_ok_time IS NOT NULL AND last_check_ok_time < ?
		  AND last_check_ok = 0
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete formerly-working stations: %w", err)
	}
	return result.RowsAffected()
}

// DeleteOldChecks trims check history older than the given window.
func (db *DB) DeleteOldChecks(hours int) (int64, error) {
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	result, err := db.Exec(`DELETE FROM station_checks WHERE check_time < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old checks: %w", err)
	}
	return result.RowsAffected()
}

// DeleteOldClicks trims click history older than the given window.
func (db *DB) DeleteOldClicks(hours int) (int64, error) {
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	result, err := db.Exec(`DELETE FROM station_clicks WHERE click_time < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old clicks: %w", err)
	}
	return result.RowsAffected()
}
