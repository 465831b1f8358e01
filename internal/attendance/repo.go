package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresRepository reads the roster and timetable and persists the ledger
// in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// StudentByTag returns the student registered to tag, or nil.
func (r *PostgresRepository) StudentByTag(ctx context.Context, tag string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, rfid_tag, program_id, semester_id
		FROM students WHERE rfid_tag = $1
	`, tag)
	var st Student
	if err := row.Scan(&st.ID, &st.Name, &st.RFIDTag, &st.ProgramID, &st.SemesterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// RoomByDevice returns the room whose reader is deviceTag, or nil.
func (r *PostgresRepository) RoomByDevice(ctx context.Context, deviceTag string) (*Room, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, reader_device_tag
		FROM rooms WHERE reader_device_tag = $1
	`, deviceTag)
	var room Room
	if err := row.Scan(&room.ID, &room.Name, &room.ReaderDeviceTag); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

// SessionsFor lists sessions matching program, semester, room and weekday, oldest first.
func (r *PostgresRepository) SessionsFor(ctx context.Context, programID, semesterID, roomID int64, weekday time.Weekday) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, program_id, semester_id, room_id, weekday
		FROM class_sessions
		WHERE program_id = $1 AND semester_id = $2 AND room_id = $3 AND lower(weekday) = lower($4)
		ORDER BY id
	`, programID, semesterID, roomID, weekday.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Session
	for rows.Next() {
		var (
			s   Session
			day string
		)
		if err := rows.Scan(&s.ID, &s.ProgramID, &s.SemesterID, &s.RoomID, &day); err != nil {
			return nil, err
		}
		if s.Weekday, err = ParseWeekday(day); err != nil {
			return nil, fmt.Errorf("session %d: %w", s.ID, err)
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// FindRecord returns the record stored under key, or nil.
func (r *PostgresRepository) FindRecord(ctx context.Context, key Key) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, session_id, room_id, attendance_day, recorded_at, status
		FROM attendance_records
		WHERE student_id = $1 AND session_id = $2 AND attendance_day = $3::date
	`, key.StudentID, key.SessionID, key.Day)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// InsertRecord writes rec and audit in one transaction. The unique index on
// (student_id, session_id, attendance_day) settles concurrent inserts.
func (r *PostgresRepository) InsertRecord(ctx context.Context, rec Record, audit AuditEntry) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_records (id, student_id, session_id, room_id, attendance_day, recorded_at, status)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7)
		ON CONFLICT (student_id, session_id, attendance_day) DO NOTHING
	`, rec.ID, rec.StudentID, rec.SessionID, rec.RoomID, rec.Day, rec.RecordedAt, rec.Status)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		err = ErrDuplicateRecord
		return err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO audit_log (event, detail, recorded_at)
		VALUES ($1, $2, $3)
	`, audit.Event, audit.Detail, audit.RecordedAt); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListRecords returns every attendance record, newest first.
func (r *PostgresRepository) ListRecords(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, session_id, room_id, attendance_day, recorded_at, status
		FROM attendance_records
		ORDER BY recorded_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec Record
		day time.Time
	)
	if err := row.Scan(&rec.ID, &rec.StudentID, &rec.SessionID, &rec.RoomID, &day, &rec.RecordedAt, &rec.Status); err != nil {
		return Record{}, err
	}
	rec.Day = day.Format(dayLayout)
	return rec, nil
}
