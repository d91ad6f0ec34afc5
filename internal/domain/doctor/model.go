package doctor

import (
	"strings"
	"time"

	"github.com/hms/hms/internal/domain/account"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/pkg/patch"
)

var weekdays = map[string]bool{
	"Monday": true, "Tuesday": true, "Wednesday": true, "Thursday": true,
	"Friday": true, "Saturday": true, "Sunday": true,
}

// normalizeDays title-cases and de-duplicates weekday names, keeping the
// order given.
func normalizeDays(days []string) ([]string, error) {
	out := make([]string, 0, len(days))
	seen := map[string]bool{}
	for _, d := range days {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		d = strings.ToUpper(d[:1]) + strings.ToLower(d[1:])
		if !weekdays[d] {
			return nil, apperr.Validationf("invalid available day: %q", d)
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out, nil
}

// parseClock validates an HH:MM time of day and returns minutes past
// midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, apperr.Validationf("time %q must be HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func validateWindow(start, end *string) error {
	if start == nil && end == nil {
		return nil
	}
	if start == nil || end == nil {
		return apperr.Validation("available_time_start and available_time_end must be set together")
	}
	s, err := parseClock(*start)
	if err != nil {
		return err
	}
	e, err := parseClock(*end)
	if err != nil {
		return err
	}
	if s >= e {
		return apperr.Validation("available_time_start must be before available_time_end")
	}
	return nil
}

// Doctor maps to the doctors table. User is the owning account.
type Doctor struct {
	ID                 int64         `db:"id" json:"id"`
	UserID             int64         `db:"user_id" json:"user_id"`
	DoctorID           string        `db:"doctor_id" json:"doctor_id"`
	Specialization     string        `db:"specialization" json:"specialization"`
	Qualification      string        `db:"qualification" json:"qualification"`
	ExperienceYears    *int          `db:"experience_years" json:"experience_years"`
	LicenseNumber      *string       `db:"license_number" json:"license_number"`
	Phone              string        `db:"phone" json:"phone"`
	ConsultationFee    float64       `db:"consultation_fee" json:"consultation_fee"`
	About              *string       `db:"about" json:"about"`
	AvailableDays      []string      `db:"available_days" json:"available_days"`
	AvailableTimeStart *string       `db:"available_time_start" json:"available_time_start"`
	AvailableTimeEnd   *string       `db:"available_time_end" json:"available_time_end"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
	User               *account.User `json:"user,omitempty"`
}

// Registration is the admin-submitted body creating a doctor and their
// account.
type Registration struct {
	User               account.NewUser `json:"user"`
	Specialization     string          `json:"specialization"`
	Qualification      string          `json:"qualification"`
	ExperienceYears    *int            `json:"experience_years"`
	LicenseNumber      *string         `json:"license_number"`
	Phone              string          `json:"phone"`
	ConsultationFee    *float64        `json:"consultation_fee"`
	About              *string         `json:"about"`
	AvailableDays      []string        `json:"available_days"`
	AvailableTimeStart *string         `json:"available_time_start"`
	AvailableTimeEnd   *string         `json:"available_time_end"`
}

func (r *Registration) Validate() error {
	r.Specialization = strings.TrimSpace(r.Specialization)
	r.Qualification = strings.TrimSpace(r.Qualification)
	if r.Specialization == "" {
		return apperr.Validation("specialization is required")
	}
	if r.Qualification == "" {
		return apperr.Validation("qualification is required")
	}
	if strings.TrimSpace(r.Phone) == "" {
		return apperr.Validation("phone is required")
	}
	if r.ExperienceYears != nil && *r.ExperienceYears < 0 {
		return apperr.Validation("experience_years cannot be negative")
	}
	if r.ConsultationFee != nil && *r.ConsultationFee < 0 {
		return apperr.Validation("consultation_fee cannot be negative")
	}
	if r.LicenseNumber != nil {
		trimmed := strings.TrimSpace(*r.LicenseNumber)
		if trimmed == "" {
			r.LicenseNumber = nil
		} else {
			r.LicenseNumber = &trimmed
		}
	}
	days, err := normalizeDays(r.AvailableDays)
	if err != nil {
		return err
	}
	r.AvailableDays = days
	return validateWindow(r.AvailableTimeStart, r.AvailableTimeEnd)
}

func (r *Registration) toDoctor(userID int64, doctorID string) *Doctor {
	d := &Doctor{
		UserID:             userID,
		DoctorID:           doctorID,
		Specialization:     r.Specialization,
		Qualification:      r.Qualification,
		ExperienceYears:    r.ExperienceYears,
		LicenseNumber:      r.LicenseNumber,
		Phone:              r.Phone,
		About:              r.About,
		AvailableDays:      r.AvailableDays,
		AvailableTimeStart: r.AvailableTimeStart,
		AvailableTimeEnd:   r.AvailableTimeEnd,
	}
	if r.ConsultationFee != nil {
		d.ConsultationFee = *r.ConsultationFee
	}
	return d
}

// Update is a partial update of the fields a doctor manages themselves.
type Update struct {
	Phone              patch.Field[string]   `json:"phone"`
	ConsultationFee    patch.Field[float64]  `json:"consultation_fee"`
	About              patch.Field[string]   `json:"about"`
	AvailableDays      patch.Field[[]string] `json:"available_days"`
	AvailableTimeStart patch.Field[string]   `json:"available_time_start"`
	AvailableTimeEnd   patch.Field[string]   `json:"available_time_end"`
}

// applyTo validates the update against d and applies it. d is left
// untouched on error.
func (u *Update) applyTo(d *Doctor) error {
	next := *d
	if u.Phone.Set && (!u.Phone.Valid || strings.TrimSpace(u.Phone.Value) == "") {
		return apperr.Validation("phone cannot be cleared")
	}
	u.Phone.ApplyValue(&next.Phone)

	if u.ConsultationFee.Set {
		if !u.ConsultationFee.Valid {
			return apperr.Validation("consultation_fee cannot be cleared")
		}
		if u.ConsultationFee.Value < 0 {
			return apperr.Validation("consultation_fee cannot be negative")
		}
		next.ConsultationFee = u.ConsultationFee.Value
	}
	u.About.Apply(&next.About)

	if u.AvailableDays.Set {
		days, err := normalizeDays(u.AvailableDays.Value)
		if err != nil {
			return err
		}
		next.AvailableDays = days
	}
	u.AvailableTimeStart.Apply(&next.AvailableTimeStart)
	u.AvailableTimeEnd.Apply(&next.AvailableTimeEnd)
	if err := validateWindow(next.AvailableTimeStart, next.AvailableTimeEnd); err != nil {
		return err
	}

	*d = next
	return nil
}
