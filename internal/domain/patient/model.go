package patient

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hms/hms/internal/domain/account"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/pkg/patch"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

type BloodGroup string

var bloodGroups = map[BloodGroup]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

func (b BloodGroup) Valid() bool { return bloodGroups[b] }

const dateLayout = "2006-01-02"

// Date is a calendar date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return Date{t}, nil
}

func (d Date) String() string { return d.Format(dateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Patient maps to the patients table. User is the owning account, loaded
// with every read.
type Patient struct {
	ID                   int64         `db:"id" json:"id"`
	UserID               int64         `db:"user_id" json:"user_id"`
	PatientID            string        `db:"patient_id" json:"patient_id"`
	DateOfBirth          Date          `db:"date_of_birth" json:"date_of_birth"`
	Gender               Gender        `db:"gender" json:"gender"`
	BloodGroup           *BloodGroup   `db:"blood_group" json:"blood_group"`
	Phone                string        `db:"phone" json:"phone"`
	Address              *string       `db:"address" json:"address"`
	EmergencyContact     *string       `db:"emergency_contact" json:"emergency_contact"`
	EmergencyContactName *string       `db:"emergency_contact_name" json:"emergency_contact_name"`
	MedicalHistory       *string       `db:"medical_history" json:"medical_history"`
	Allergies            *string       `db:"allergies" json:"allergies"`
	CurrentMedications   *string       `db:"current_medications" json:"current_medications"`
	CreatedAt            time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time     `db:"updated_at" json:"updated_at"`
	User                 *account.User `json:"user,omitempty"`
}

// Registration is the public self-registration body.
type Registration struct {
	User                 account.NewUser `json:"user"`
	DateOfBirth          Date            `json:"date_of_birth"`
	Gender               Gender          `json:"gender"`
	BloodGroup           *BloodGroup     `json:"blood_group"`
	Phone                string          `json:"phone"`
	Address              *string         `json:"address"`
	EmergencyContact     *string         `json:"emergency_contact"`
	EmergencyContactName *string         `json:"emergency_contact_name"`
	MedicalHistory       *string         `json:"medical_history"`
	Allergies            *string         `json:"allergies"`
	CurrentMedications   *string         `json:"current_medications"`
}

func (r *Registration) Validate(now time.Time) error {
	if r.DateOfBirth.IsZero() {
		return apperr.Validation("date_of_birth is required")
	}
	if r.DateOfBirth.After(now) {
		return apperr.Validation("date_of_birth cannot be in the future")
	}
	if !r.Gender.Valid() {
		return apperr.Validationf("invalid gender: %q", r.Gender)
	}
	if r.BloodGroup != nil && !r.BloodGroup.Valid() {
		return apperr.Validationf("invalid blood_group: %q", *r.BloodGroup)
	}
	if strings.TrimSpace(r.Phone) == "" {
		return apperr.Validation("phone is required")
	}
	return nil
}

func (r *Registration) toPatient(userID int64, patientID string) *Patient {
	return &Patient{
		UserID:               userID,
		PatientID:            patientID,
		DateOfBirth:          r.DateOfBirth,
		Gender:               r.Gender,
		BloodGroup:           r.BloodGroup,
		Phone:                r.Phone,
		Address:              r.Address,
		EmergencyContact:     r.EmergencyContact,
		EmergencyContactName: r.EmergencyContactName,
		MedicalHistory:       r.MedicalHistory,
		Allergies:            r.Allergies,
		CurrentMedications:   r.CurrentMedications,
	}
}

// Update is a partial update. Identity, date of birth and gender are not
// editable through it.
type Update struct {
	Phone                patch.Field[string] `json:"phone"`
	Address              patch.Field[string] `json:"address"`
	EmergencyContact     patch.Field[string] `json:"emergency_contact"`
	EmergencyContactName patch.Field[string] `json:"emergency_contact_name"`
	MedicalHistory       patch.Field[string] `json:"medical_history"`
	Allergies            patch.Field[string] `json:"allergies"`
	CurrentMedications   patch.Field[string] `json:"current_medications"`
}

func (u *Update) Validate() error {
	if u.Phone.Set && (!u.Phone.Valid || strings.TrimSpace(u.Phone.Value) == "") {
		return apperr.Validation("phone cannot be cleared")
	}
	return nil
}

func (u *Update) applyTo(p *Patient) {
	u.Phone.ApplyValue(&p.Phone)
	u.Address.Apply(&p.Address)
	u.EmergencyContact.Apply(&p.EmergencyContact)
	u.EmergencyContactName.Apply(&p.EmergencyContactName)
	u.MedicalHistory.Apply(&p.MedicalHistory)
	u.Allergies.Apply(&p.Allergies)
	u.CurrentMedications.Apply(&p.CurrentMedications)
}
