package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medtrackhq/medtrack-server/internal/model"
	"github.com/medtrackhq/medtrack-server/internal/store"
)

// NewWithDB constructs a SQLite store backed directly by database/sql and
// ensures the schema exists.
func NewWithDB(db *sql.DB) (store.Store, error) {
	if err := EnsureSchema(db); err != nil {
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Users() store.Users             { return &users{db: s.db} }
func (s *sqliteStore) Medications() store.Medications { return &medications{db: s.db} }
func (s *sqliteStore) Doses() store.Doses             { return &doses{db: s.db} }
func (s *sqliteStore) Reminders() store.Reminders     { return &reminders{db: s.db} }
func (s *sqliteStore) Outbox() store.Outbox           { return &outbox{db: s.db} }

func (s *sqliteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// isUniqueViolation reports whether err is a UNIQUE constraint failure. The
// modernc driver exposes no typed error for it, only the message.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// writeOutbox records a mirror mutation in the same transaction as the write
// it describes.
func writeOutbox(ctx context.Context, tx *sql.Tx, op, aggregateID string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
        INSERT INTO outbox (op, aggregate_id, payload, next_attempt_at, creation_time)
        VALUES (?,?,?,?,?)
    `, op, aggregateID, string(b), now, now)
	return err
}

// --- Users ---

type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	created := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO users (user_id, email, display_name, time_zone, push_token, creation_time)
        VALUES (?,?,?,?,?,?)
    `, m.UserID, m.Email, m.DisplayName, m.TimeZone, m.PushToken, created); err != nil {
		return nil, err
	}
	out := *m
	out.CreationTime = created
	if err := writeOutbox(ctx, tx, store.OpUpsertUser, m.UserID, &out); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (u *users) Get(ctx context.Context, userID string) (*model.User, error) {
	var out model.User
	row := u.db.QueryRowContext(ctx, `
        SELECT user_id, email, display_name, time_zone, push_token, creation_time
        FROM users WHERE user_id=?
    `, userID)
	if err := row.Scan(&out.UserID, &out.Email, &out.DisplayName, &out.TimeZone, &out.PushToken, &out.CreationTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userID, model.ErrNotFound)
		}
		return nil, err
	}
	return &out, nil
}

func (u *users) Delete(ctx context.Context, userID string) error {
	res, err := u.db.ExecContext(ctx, `DELETE FROM users WHERE user_id=?`, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", userID, model.ErrNotFound)
	}
	return nil
}

// --- Medications ---

type medications struct{ db *sql.DB }

func (m *medications) Create(ctx context.Context, mm *model.Medication) (*model.Medication, error) {
	id := mm.MedicationID
	if id == "" {
		id = uuid.New().String()
	}
	timesJSON, err := json.Marshal(mm.Times)
	if err != nil {
		return nil, err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	created := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO medications (medication_id, owner_id, name, dosage, frequency, times, start_date, end_date, notes, creation_time)
        VALUES (?,?,?,?,?,?,?,?,?,?)
    `, id, mm.OwnerID, mm.Name, mm.Dosage, string(mm.Frequency), string(timesJSON), mm.StartDate, mm.EndDate, mm.Notes, created); err != nil {
		return nil, err
	}
	out := *mm
	out.MedicationID = id
	out.CreationTime = created
	if err := writeOutbox(ctx, tx, store.OpUpsertMedication, id, &out); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &out, nil
}

func scanMedication(scan func(dest ...any) error) (*model.Medication, error) {
	var out model.Medication
	var timesJSON string
	if err := scan(&out.MedicationID, &out.OwnerID, &out.Name, &out.Dosage, (*string)(&out.Frequency), &timesJSON, &out.StartDate, &out.EndDate, &out.Notes, &out.CreationTime); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(timesJSON), &out.Times); err != nil {
		return nil, err
	}
	return &out, nil
}

const medicationCols = `medication_id, owner_id, name, dosage, frequency, times, start_date, end_date, notes, creation_time`

func (m *medications) Get(ctx context.Context, ownerID, medicationID string) (*model.Medication, error) {
	row := m.db.QueryRowContext(ctx, `
        SELECT `+medicationCols+` FROM medications WHERE owner_id=? AND medication_id=?
    `, ownerID, medicationID)
	out, err := scanMedication(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("medication %s: %w", medicationID, model.ErrNotFound)
	}
	return out, err
}

func (m *medications) List(ctx context.Context, ownerID string) ([]*model.Medication, error) {
	rows, err := m.db.QueryContext(ctx, `
        SELECT `+medicationCols+` FROM medications WHERE owner_id=? ORDER BY creation_time DESC
    `, ownerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Medication
	for rows.Next() {
		mm, err := scanMedication(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, mm)
	}
	return out, rows.Err()
}

func (m *medications) ListActiveOn(ctx context.Context, date string) ([]*model.Medication, error) {
	rows, err := m.db.QueryContext(ctx, `
        SELECT `+medicationCols+` FROM medications
        WHERE start_date <= ? AND (end_date IS NULL OR end_date >= ?)
    `, date, date)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Medication
	for rows.Next() {
		mm, err := scanMedication(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, mm)
	}
	return out, rows.Err()
}

func (m *medications) Update(ctx context.Context, mm *model.Medication) (*model.Medication, error) {
	timesJSON, err := json.Marshal(mm.Times)
	if err != nil {
		return nil, err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
        UPDATE medications SET name=?, dosage=?, frequency=?, times=?, start_date=?, end_date=?, notes=?
        WHERE owner_id=? AND medication_id=?
    `, mm.Name, mm.Dosage, string(mm.Frequency), string(timesJSON), mm.StartDate, mm.EndDate, mm.Notes, mm.OwnerID, mm.MedicationID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("medication %s: %w", mm.MedicationID, model.ErrNotFound)
	}
	if err := writeOutbox(ctx, tx, store.OpUpsertMedication, mm.MedicationID, mm); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return m.Get(ctx, mm.OwnerID, mm.MedicationID)
}

func (m *medications) Delete(ctx context.Context, ownerID, medicationID string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM medications WHERE owner_id=? AND medication_id=?`, ownerID, medicationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("medication %s: %w", medicationID, model.ErrNotFound)
	}
	// Dose records and reminders are owned by the medication aggregate.
	if _, err := tx.ExecContext(ctx, `DELETE FROM dose_records WHERE medication_id=?`, medicationID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM reminders WHERE medication_id=?`, medicationID); err != nil {
		return err
	}
	if err := writeOutbox(ctx, tx, store.OpDeleteMedication, medicationID, map[string]string{"medicationId": medicationID, "ownerId": ownerID}); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Doses ---

type doses struct{ db *sql.DB }

const doseCols = `medication_id, dose_date, dose_index, scheduled_time, taken, missed, taken_at`

func scanDose(scan func(dest ...any) error) (*model.DoseRecord, error) {
	var out model.DoseRecord
	if err := scan(&out.MedicationID, &out.Date, &out.DoseIndex, &out.ScheduledTime, &out.Taken, &out.Missed, &out.TakenAt); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *doses) GetOrInit(ctx context.Context, med *model.Medication, date string) ([]*model.DoseRecord, error) {
	if med == nil {
		return nil, fmt.Errorf("nil medication: %w", model.ErrValidation)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
        SELECT `+doseCols+` FROM dose_records
        WHERE medication_id=? AND dose_date=? ORDER BY dose_index
    `, med.MedicationID, date)
	if err != nil {
		return nil, err
	}
	var existing []*model.DoseRecord
	for rows.Next() {
		rec, err := scanDose(rows.Scan)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		existing = append(existing, rec)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(existing) == med.TimesPerDay() {
		return existing, tx.Commit()
	}

	// Times-per-day changed (or first touch): rebuild the date's records,
	// discarding prior taken/missed state for that date.
	if len(existing) > 0 {
		if _, err := tx.ExecContext(ctx, `
            DELETE FROM dose_records WHERE medication_id=? AND dose_date=?
        `, med.MedicationID, date); err != nil {
			return nil, err
		}
	}
	out := make([]*model.DoseRecord, 0, med.TimesPerDay())
	for i, tod := range med.Times {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO dose_records (medication_id, dose_date, dose_index, scheduled_time)
            VALUES (?,?,?,?)
        `, med.MedicationID, date, i, tod); err != nil {
			return nil, err
		}
		out = append(out, &model.DoseRecord{MedicationID: med.MedicationID, Date: date, DoseIndex: i, ScheduledTime: tod})
	}
	if err := writeOutbox(ctx, tx, store.OpUpsertDose, doseAggregate(med.MedicationID, date), out); err != nil {
		return nil, err
	}
	return out, tx.Commit()
}

func (d *doses) Get(ctx context.Context, medicationID, date string, doseIndex int) (*model.DoseRecord, error) {
	row := d.db.QueryRowContext(ctx, `
        SELECT `+doseCols+` FROM dose_records
        WHERE medication_id=? AND dose_date=? AND dose_index=?
    `, medicationID, date, doseIndex)
	out, err := scanDose(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dose %s/%s/%d: %w", medicationID, date, doseIndex, model.ErrNotFound)
	}
	return out, err
}

func (d *doses) SetTaken(ctx context.Context, medicationID, date string, doseIndex int, taken bool, takenAt *time.Time) (*model.DoseRecord, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var res sql.Result
	if taken {
		// missed=0 guard: once the sweep closed the window, missed wins.
		res, err = tx.ExecContext(ctx, `
            UPDATE dose_records SET taken=1, missed=0, taken_at=?
            WHERE medication_id=? AND dose_date=? AND dose_index=? AND missed=0
        `, takenAt, medicationID, date, doseIndex)
	} else {
		res, err = tx.ExecContext(ctx, `
            UPDATE dose_records SET taken=0, taken_at=NULL
            WHERE medication_id=? AND dose_date=? AND dose_index=?
        `, medicationID, date, doseIndex)
	}
	if err != nil {
		return nil, err
	}

	rec, err := d.getInTx(ctx, tx, medicationID, date, doseIndex)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 && taken {
		// Row exists but was guarded: already swept to missed.
		return nil, fmt.Errorf("dose %s/%s/%d already marked missed: %w", medicationID, date, doseIndex, model.ErrOutOfWindow)
	}
	if err := writeOutbox(ctx, tx, store.OpUpsertDose, doseAggregate(medicationID, date), rec); err != nil {
		return nil, err
	}
	return rec, tx.Commit()
}

func (d *doses) SetMissed(ctx context.Context, medicationID, date string, doseIndex int, missed bool) (*model.DoseRecord, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if missed {
		// taken=0 guard: a concurrent take that committed first wins.
		if _, err := tx.ExecContext(ctx, `
            UPDATE dose_records SET missed=1, taken=0, taken_at=NULL
            WHERE medication_id=? AND dose_date=? AND dose_index=? AND taken=0
        `, medicationID, date, doseIndex); err != nil {
			return nil, err
		}
	} else {
		if _, err := tx.ExecContext(ctx, `
            UPDATE dose_records SET missed=0
            WHERE medication_id=? AND dose_date=? AND dose_index=?
        `, medicationID, date, doseIndex); err != nil {
			return nil, err
		}
	}

	rec, err := d.getInTx(ctx, tx, medicationID, date, doseIndex)
	if err != nil {
		return nil, err
	}
	if err := writeOutbox(ctx, tx, store.OpUpsertDose, doseAggregate(medicationID, date), rec); err != nil {
		return nil, err
	}
	return rec, tx.Commit()
}

func (d *doses) getInTx(ctx context.Context, tx *sql.Tx, medicationID, date string, doseIndex int) (*model.DoseRecord, error) {
	row := tx.QueryRowContext(ctx, `
        SELECT `+doseCols+` FROM dose_records
        WHERE medication_id=? AND dose_date=? AND dose_index=?
    `, medicationID, date, doseIndex)
	out, err := scanDose(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dose %s/%s/%d: %w", medicationID, date, doseIndex, model.ErrNotFound)
	}
	return out, err
}

func doseAggregate(medicationID, date string) string { return medicationID + ":" + date }

// --- Reminders ---

type reminders struct{ db *sql.DB }

const reminderCols = `reminder_id, owner_id, medication_id, dose_index, reminder_time, anchor_date, rtype, status, last_fired_on, creation_time`

func scanReminder(scan func(dest ...any) error) (*model.Reminder, error) {
	var out model.Reminder
	if err := scan(&out.ReminderID, &out.OwnerID, &out.MedicationID, &out.DoseIndex, &out.ReminderTime, &out.AnchorDate, (*string)(&out.Type), (*string)(&out.Status), &out.LastFiredOn, &out.CreationTime); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *reminders) Create(ctx context.Context, rem *model.Reminder) (*model.Reminder, error) {
	id := rem.ReminderID
	if id == "" {
		id = uuid.New().String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	created := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO reminders (reminder_id, owner_id, medication_id, dose_index, reminder_time, anchor_date, rtype, status, creation_time)
        VALUES (?,?,?,?,?,?,?,'pending',?)
    `, id, rem.OwnerID, rem.MedicationID, rem.DoseIndex, rem.ReminderTime, rem.AnchorDate, string(rem.Type), created); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("reminder slot occupied: %w", model.ErrDuplicate)
		}
		return nil, err
	}
	out := *rem
	out.ReminderID = id
	out.Status = model.ReminderPending
	out.CreationTime = created
	if err := writeOutbox(ctx, tx, store.OpUpsertReminder, id, &out); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *reminders) Update(ctx context.Context, rem *model.Reminder) (*model.Reminder, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
        UPDATE reminders SET reminder_time=?, anchor_date=?, status='pending'
        WHERE reminder_id=? AND owner_id=?
    `, rem.ReminderTime, rem.AnchorDate, rem.ReminderID, rem.OwnerID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("reminder %s: %w", rem.ReminderID, model.ErrNotFound)
	}
	out, err := r.getInTx(ctx, tx, rem.ReminderID)
	if err != nil {
		return nil, err
	}
	if err := writeOutbox(ctx, tx, store.OpUpsertReminder, out.ReminderID, out); err != nil {
		return nil, err
	}
	return out, tx.Commit()
}

func (r *reminders) Get(ctx context.Context, reminderID string) (*model.Reminder, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reminderCols+` FROM reminders WHERE reminder_id=?`, reminderID)
	out, err := scanReminder(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reminder %s: %w", reminderID, model.ErrNotFound)
	}
	return out, err
}

func (r *reminders) getInTx(ctx context.Context, tx *sql.Tx, reminderID string) (*model.Reminder, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+reminderCols+` FROM reminders WHERE reminder_id=?`, reminderID)
	out, err := scanReminder(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reminder %s: %w", reminderID, model.ErrNotFound)
	}
	return out, err
}

func (r *reminders) Delete(ctx context.Context, ownerID, reminderID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM reminders WHERE reminder_id=? AND owner_id=?`, reminderID, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("reminder %s: %w", reminderID, model.ErrNotFound)
	}
	if err := writeOutbox(ctx, tx, store.OpDeleteReminder, reminderID, map[string]string{"reminderId": reminderID, "ownerId": ownerID}); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *reminders) ListForOwner(ctx context.Context, ownerID string) ([]*model.Reminder, error) {
	return r.list(ctx, `SELECT `+reminderCols+` FROM reminders WHERE owner_id=? ORDER BY creation_time`, ownerID)
}

func (r *reminders) ListForSlot(ctx context.Context, medicationID string, doseIndex int) ([]*model.Reminder, error) {
	return r.list(ctx, `SELECT `+reminderCols+` FROM reminders WHERE medication_id=? AND dose_index=? ORDER BY creation_time`, medicationID, doseIndex)
}

func (r *reminders) ListSchedulable(ctx context.Context) ([]*model.Reminder, error) {
	return r.list(ctx, `
        SELECT `+reminderCols+` FROM reminders
        WHERE (rtype='single' AND status='pending') OR rtype='daily'
        ORDER BY reminder_time
    `)
}

func (r *reminders) list(ctx context.Context, query string, args ...any) ([]*model.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rem)
	}
	return out, rows.Err()
}

func (r *reminders) ClaimFire(ctx context.Context, rem *model.Reminder, today string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var res sql.Result
	switch rem.Type {
	case model.ReminderDaily:
		res, err = tx.ExecContext(ctx, `
            UPDATE reminders SET status='sent', last_fired_on=?
            WHERE reminder_id=? AND rtype='daily' AND (last_fired_on IS NULL OR last_fired_on<>?)
        `, today, rem.ReminderID, today)
	default:
		res, err = tx.ExecContext(ctx, `
            UPDATE reminders SET status='sent'
            WHERE reminder_id=? AND rtype='single' AND status='pending'
        `, rem.ReminderID)
	}
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, tx.Commit()
	}
	out, err := r.getInTx(ctx, tx, rem.ReminderID)
	if err != nil {
		return false, err
	}
	if err := writeOutbox(ctx, tx, store.OpUpsertReminder, rem.ReminderID, out); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (r *reminders) ReleaseFire(ctx context.Context, rem *model.Reminder, today string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	switch rem.Type {
	case model.ReminderDaily:
		_, err = tx.ExecContext(ctx, `
            UPDATE reminders SET status='pending', last_fired_on=NULL
            WHERE reminder_id=? AND last_fired_on=?
        `, rem.ReminderID, today)
	default:
		_, err = tx.ExecContext(ctx, `
            UPDATE reminders SET status='pending'
            WHERE reminder_id=? AND status='sent'
        `, rem.ReminderID)
	}
	if err != nil {
		return err
	}
	out, err := r.getInTx(ctx, tx, rem.ReminderID)
	if err != nil {
		return err
	}
	if err := writeOutbox(ctx, tx, store.OpUpsertReminder, rem.ReminderID, out); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *reminders) UpdateStatus(ctx context.Context, reminderID string, status model.ReminderStatus) (*model.Reminder, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE reminders SET status=? WHERE reminder_id=?`, string(status), reminderID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("reminder %s: %w", reminderID, model.ErrNotFound)
	}
	out, err := r.getInTx(ctx, tx, reminderID)
	if err != nil {
		return nil, err
	}
	if err := writeOutbox(ctx, tx, store.OpUpsertReminder, reminderID, out); err != nil {
		return nil, err
	}
	return out, tx.Commit()
}

func (r *reminders) ResetDailyToPending(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE reminders SET status='pending' WHERE rtype='daily' AND status='sent'`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Outbox ---

type outbox struct{ db *sql.DB }

func (o *outbox) Lease(ctx context.Context, now time.Time, limit int) ([]*model.OutboxRow, error) {
	rows, err := o.db.QueryContext(ctx, `
        SELECT id, op, aggregate_id, payload, attempt_count
        FROM outbox WHERE status='pending' AND next_attempt_at <= ?
        ORDER BY id ASC LIMIT ?
    `, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.OutboxRow
	for rows.Next() {
		var row model.OutboxRow
		var payload string
		if err := rows.Scan(&row.ID, &row.Op, &row.AggregateID, &payload, &row.AttemptCount); err != nil {
			return nil, err
		}
		row.Payload = []byte(payload)
		out = append(out, &row)
	}
	return out, rows.Err()
}

func (o *outbox) MarkDone(ctx context.Context, id int64) error {
	_, err := o.db.ExecContext(ctx, `UPDATE outbox SET status='done', update_time=? WHERE id=?`, time.Now().UTC(), id)
	return err
}

func (o *outbox) MarkFailed(ctx context.Context, id int64, nextAttemptAt time.Time) error {
	_, err := o.db.ExecContext(ctx, `
        UPDATE outbox SET attempt_count=attempt_count+1, next_attempt_at=?, update_time=?
        WHERE id=?
    `, nextAttemptAt.UTC(), time.Now().UTC(), id)
	return err
}
