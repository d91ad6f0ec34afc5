package seqid

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
)

type column struct {
	table string
	name  string
}

var columns = map[Kind]column{
	KindPatient:     {table: "patients", name: "patient_id"},
	KindDoctor:      {table: "doctors", name: "doctor_id"},
	KindAppointment: {table: "appointments", name: "appointment_number"},
}

// PGSource reads the last identifier from the owning table, newest row
// first, skipping rows that never received one.
type PGSource struct {
	pool *pgxpool.Pool
}

func NewPGSource(pool *pgxpool.Pool) *PGSource {
	return &PGSource{pool: pool}
}

func (s *PGSource) LastID(ctx context.Context, kind Kind) (string, error) {
	col, ok := columns[kind]
	if !ok {
		return "", fmt.Errorf("unknown identifier kind %q", kind)
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s IS NOT NULL ORDER BY id DESC LIMIT 1`,
		col.name, col.table, col.name)

	var last string
	err := db.Conn(ctx, s.pool).QueryRow(ctx, query).Scan(&last)
	if db.IsNoRows(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return last, nil
}
