package scheduling

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
)

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const apptCols = `id, appointment_number, patient_id, doctor_id, appointment_date, status,
	reason, notes, prescription, diagnosis, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.AppointmentNumber, &a.PatientID, &a.DoctorID, &a.AppointmentDate, &a.Status,
		&a.Reason, &a.Notes, &a.Prescription, &a.Diagnosis, &a.CreatedAt, &a.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (appointment_number, patient_id, doctor_id, appointment_date, status, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		a.AppointmentNumber, a.PatientID, a.DoctorID, a.AppointmentDate, a.Status, a.Reason,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if db.IsUniqueViolation(err, "appointments_appointment_number_key") {
		return ErrDuplicateNumber
	}
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *appointmentRepoPG) GetForUpdate(ctx context.Context, id int64) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
}

func (r *appointmentRepoPG) List(ctx context.Context, f ListFilter) ([]*Appointment, error) {
	query := `SELECT ` + apptCols + ` FROM appointments WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.PatientID != 0 {
		query += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, f.PatientID)
		idx++
	}
	if f.DoctorID != 0 {
		query += fmt.Sprintf(` AND doctor_id = $%d`, idx)
		args = append(args, f.DoctorID)
		idx++
	}
	if f.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}
	query += fmt.Sprintf(` ORDER BY appointment_date DESC, id DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET appointment_date=$2, status=$3, notes=$4, prescription=$5, diagnosis=$6,
			updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.AppointmentDate, a.Status, a.Notes, a.Prescription, a.Diagnosis,
	).Scan(&a.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	return err
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
