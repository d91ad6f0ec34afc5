package doctor

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/domain/account"
	"github.com/hms/hms/internal/platform/db"
)

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const doctorCols = `d.id, d.user_id, d.doctor_id, d.specialization, d.qualification, d.experience_years,
	d.license_number, d.phone, d.consultation_fee, d.about, d.available_days,
	d.available_time_start, d.available_time_end, d.created_at, d.updated_at,
	u.id, u.email, u.username, u.full_name, u.role, u.is_active, u.created_at, u.updated_at`

const doctorFrom = ` FROM doctors d JOIN users u ON u.id = d.user_id`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var u account.User
	err := row.Scan(&d.ID, &d.UserID, &d.DoctorID, &d.Specialization, &d.Qualification, &d.ExperienceYears,
		&d.LicenseNumber, &d.Phone, &d.ConsultationFee, &d.About, &d.AvailableDays,
		&d.AvailableTimeStart, &d.AvailableTimeEnd, &d.CreatedAt, &d.UpdatedAt,
		&u.ID, &u.Email, &u.Username, &u.FullName, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if d.AvailableDays == nil {
		d.AvailableDays = []string{}
	}
	d.User = &u
	return &d, nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctors (user_id, doctor_id, specialization, qualification, experience_years,
			license_number, phone, consultation_fee, about, available_days,
			available_time_start, available_time_end)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id, created_at, updated_at`,
		d.UserID, d.DoctorID, d.Specialization, d.Qualification, d.ExperienceYears,
		d.LicenseNumber, d.Phone, d.ConsultationFee, d.About, d.AvailableDays,
		d.AvailableTimeStart, d.AvailableTimeEnd,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	switch {
	case db.IsUniqueViolation(err, "doctors_doctor_id_key"):
		return ErrDuplicateID
	case db.IsUniqueViolation(err, "doctors_license_number_key"):
		return ErrDuplicateLicense
	case err != nil:
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id int64) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+doctorFrom+` WHERE d.id = $1`, id))
}

func (r *doctorRepoPG) GetForUpdate(ctx context.Context, id int64) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+doctorFrom+` WHERE d.id = $1 FOR UPDATE OF d`, id))
}

func (r *doctorRepoPG) GetByUserID(ctx context.Context, userID int64) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+doctorFrom+` WHERE d.user_id = $1`, userID))
}

// likeEscaper makes user input literal inside an ILIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *doctorRepoPG) List(ctx context.Context, f ListFilter) ([]*Doctor, error) {
	query := `SELECT ` + doctorCols + doctorFrom + ` WHERE 1=1`
	var args []any
	idx := 1

	if f.Specialization != "" {
		query += fmt.Sprintf(` AND d.specialization ILIKE $%d`, idx)
		args = append(args, "%"+likeEscaper.Replace(f.Specialization)+"%")
		idx++
	}

	query += fmt.Sprintf(` ORDER BY d.id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Doctor{}
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctors SET phone=$2, consultation_fee=$3, about=$4, available_days=$5,
			available_time_start=$6, available_time_end=$7, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		d.ID, d.Phone, d.ConsultationFee, d.About, d.AvailableDays,
		d.AvailableTimeStart, d.AvailableTimeEnd,
	).Scan(&d.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	return err
}

func (r *doctorRepoPG) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM doctors WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}
