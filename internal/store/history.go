package store

import "time"

// LevelTransition records one optimization-level change.
type LevelTransition struct {
	ID        int64     `json:"id"`
	ChangedAt time.Time `json:"changed_at"`
	FromLevel string    `json:"from_level"`
	ToLevel   string    `json:"to_level"`
	Reason    string    `json:"reason"`
}

// SchedulingRun records the summary of one optimization pass.
type SchedulingRun struct {
	ID               int64     `json:"id"`
	RunAt            time.Time `json:"run_at"`
	UserID           string    `json:"user_id"`
	Strategy         string    `json:"strategy"`
	TotalReminders   int       `json:"total_reminders"`
	Optimized        int       `json:"optimized"`
	BatteryReduction float64   `json:"battery_reduction"`
	AdherenceImpact  float64   `json:"adherence_impact"`
	AvgDelayMinutes  float64   `json:"avg_delay_minutes"`
}

// InsertLevelTransition appends an optimization-level change to history.
func (db *DB) InsertLevelTransition(t *LevelTransition) error {
	result, err := db.conn.Exec(
		"INSERT INTO optimization_history (changed_at, from_level, to_level, reason) VALUES (?, ?, ?, ?)",
		t.ChangedAt.UTC().Format(time.RFC3339), t.FromLevel, t.ToLevel, t.Reason,
	)
	if err != nil {
		return err
	}
	t.ID, _ = result.LastInsertId()
	return nil
}

// RecentLevelTransitions returns up to limit transitions, newest first.
func (db *DB) RecentLevelTransitions(limit int) ([]LevelTransition, error) {
	rows, err := db.conn.Query(
		"SELECT id, changed_at, from_level, to_level, reason FROM optimization_history ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []LevelTransition
	for rows.Next() {
		var t LevelTransition
		var changedAt string
		if err := rows.Scan(&t.ID, &changedAt, &t.FromLevel, &t.ToLevel, &t.Reason); err != nil {
			return nil, err
		}
		t.ChangedAt, _ = time.Parse(time.RFC3339, changedAt)
		results = append(results, t)
	}
	return results, rows.Err()
}

// InsertSchedulingRun appends an optimization pass summary to history.
func (db *DB) InsertSchedulingRun(r *SchedulingRun) error {
	result, err := db.conn.Exec(
		`INSERT INTO scheduling_history
		(run_at, user_id, strategy, total_reminders, optimized, battery_reduction, adherence_impact, avg_delay_minutes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunAt.UTC().Format(time.RFC3339), r.UserID, r.Strategy,
		r.TotalReminders, r.Optimized, r.BatteryReduction, r.AdherenceImpact, r.AvgDelayMinutes,
	)
	if err != nil {
		return err
	}
	r.ID, _ = result.LastInsertId()
	return nil
}

// RecentSchedulingRuns returns up to limit runs for a user, newest first.
// An empty userID returns runs for all users.
func (db *DB) RecentSchedulingRuns(userID string, limit int) ([]SchedulingRun, error) {
	query := `SELECT id, run_at, user_id, strategy, total_reminders, optimized,
		battery_reduction, adherence_impact, avg_delay_minutes FROM scheduling_history`
	var args []any
	if userID != "" {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SchedulingRun
	for rows.Next() {
		var r SchedulingRun
		var runAt string
		if err := rows.Scan(&r.ID, &runAt, &r.UserID, &r.Strategy, &r.TotalReminders,
			&r.Optimized, &r.BatteryReduction, &r.AdherenceImpact, &r.AvgDelayMinutes); err != nil {
			return nil, err
		}
		r.RunAt, _ = time.Parse(time.RFC3339, runAt)
		results = append(results, r)
	}
	return results, rows.Err()
}
