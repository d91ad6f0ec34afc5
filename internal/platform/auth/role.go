package auth

import "fmt"

// Role is the closed set of account roles. A user's role is fixed at
// creation.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleDoctor       Role = "doctor"
	RolePatient      Role = "patient"
	RoleNurse        Role = "nurse"
	RoleReceptionist Role = "receptionist"
)

var roles = map[Role]bool{
	RoleAdmin:        true,
	RoleDoctor:       true,
	RolePatient:      true,
	RoleNurse:        true,
	RoleReceptionist: true,
}

func (r Role) Valid() bool { return roles[r] }

func (r Role) String() string { return string(r) }

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Actor is the authenticated caller together with the profiles linked to
// the account. PatientID and DoctorID are zero when no profile exists.
type Actor struct {
	UserID    int64
	Role      Role
	PatientID int64
	DoctorID  int64
}

func (a Actor) HasPatient() bool { return a.PatientID != 0 }

func (a Actor) HasDoctor() bool { return a.DoctorID != 0 }
