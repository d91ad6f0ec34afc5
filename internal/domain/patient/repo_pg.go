package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/domain/account"
	"github.com/hms/hms/internal/platform/db"
)

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `p.id, p.user_id, p.patient_id, p.date_of_birth, p.gender, p.blood_group, p.phone,
	p.address, p.emergency_contact, p.emergency_contact_name, p.medical_history, p.allergies,
	p.current_medications, p.created_at, p.updated_at,
	u.id, u.email, u.username, u.full_name, u.role, u.is_active, u.created_at, u.updated_at`

const patientFrom = ` FROM patients p JOIN users u ON u.id = p.user_id`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var u account.User
	var dob time.Time
	err := row.Scan(&p.ID, &p.UserID, &p.PatientID, &dob, &p.Gender, &p.BloodGroup, &p.Phone,
		&p.Address, &p.EmergencyContact, &p.EmergencyContactName, &p.MedicalHistory, &p.Allergies,
		&p.CurrentMedications, &p.CreatedAt, &p.UpdatedAt,
		&u.ID, &u.Email, &u.Username, &u.FullName, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.DateOfBirth = Date{dob}
	p.User = &u
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (user_id, patient_id, date_of_birth, gender, blood_group, phone,
			address, emergency_contact, emergency_contact_name, medical_history, allergies, current_medications)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id, created_at, updated_at`,
		p.UserID, p.PatientID, p.DateOfBirth.Time, p.Gender, p.BloodGroup, p.Phone,
		p.Address, p.EmergencyContact, p.EmergencyContactName, p.MedicalHistory, p.Allergies, p.CurrentMedications,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if db.IsUniqueViolation(err, "patients_patient_id_key") {
		return ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+patientFrom+` WHERE p.id = $1`, id))
}

func (r *patientRepoPG) GetForUpdate(ctx context.Context, id int64) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+patientFrom+` WHERE p.id = $1 FOR UPDATE OF p`, id))
}

func (r *patientRepoPG) GetByUserID(ctx context.Context, userID int64) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+patientFrom+` WHERE p.user_id = $1`, userID))
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+patientFrom+` ORDER BY p.id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET phone=$2, address=$3, emergency_contact=$4, emergency_contact_name=$5,
			medical_history=$6, allergies=$7, current_medications=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Phone, p.Address, p.EmergencyContact, p.EmergencyContactName,
		p.MedicalHistory, p.Allergies, p.CurrentMedications,
	).Scan(&p.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	return err
}
