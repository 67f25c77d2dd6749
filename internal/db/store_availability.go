package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/schedulehq/schedulehq/internal/schedule"
)

// ListAvailability returns the user's available slot starts for every day in
// [from, to] inclusive, keyed by date string and sorted ascending within
// each day. Days with no slots are absent from the map.
func (db *DB) ListAvailability(ctx context.Context, userID uuid.UUID, from, to time.Time) (map[string][]schedule.SlotStart, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT day, start_hour
		FROM user_availability
		WHERE user_id = $1 AND day BETWEEN $2 AND $3
		ORDER BY day, start_hour
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	defer rows.Close()

	days := make(map[string][]schedule.SlotStart)
	for rows.Next() {
		var day time.Time
		var startHour int16
		if err := rows.Scan(&day, &startHour); err != nil {
			return nil, fmt.Errorf("scan availability slot: %w", err)
		}
		key := day.Format(schedule.DateLayout)
		days[key] = append(days[key], schedule.SlotStart(startHour))
	}
	return days, rows.Err()
}

// ReplaceAvailability atomically replaces all slots for the (user, date)
// pair with the given set. Callers submit the complete desired state for
// the day, so the existing rows are deleted and the new set inserted in one
// transaction; an empty set clears the day, and a partial
// delete-without-insert is never observable. Any start outside the catalog
// fails before a single row is written.
func (db *DB) ReplaceAvailability(ctx context.Context, userID uuid.UUID, day time.Time, starts []schedule.SlotStart) error {
	for _, s := range starts {
		if !s.Valid() {
			return schedule.ErrSlotNotInCatalog
		}
	}

	return db.ExecTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM user_availability WHERE user_id = $1 AND day = $2
		`, userID, day); err != nil {
			return fmt.Errorf("clear availability: %w", err)
		}

		for _, s := range starts {
			if _, err := tx.Exec(ctx, `
				INSERT INTO user_availability (id, user_id, day, start_hour, created_at)
				VALUES ($1, $2, $3, $4, $5)
			`, uuid.New(), userID, day, int16(s), time.Now()); err != nil {
				return fmt.Errorf("insert availability slot: %w", err)
			}
		}
		return nil
	})
}
