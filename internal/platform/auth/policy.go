package auth

import (
	"github.com/hms/hms/internal/platform/apperr"
)

type Resource string

const (
	ResourceAppointment Resource = "appointment"
	ResourceDoctor      Resource = "doctor"
	ResourcePatient     Resource = "patient"
)

type Action string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionList    Action = "list"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionReadOwn Action = "read_own"
)

// Target names the profiles that own the record being acted on. Zero
// means the record has no such owner.
type Target struct {
	PatientID int64
	DoctorID  int64
}

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// Err converts a denial into a permission error.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperr.Permission(d.Reason)
}

// Rule decides one (resource, action, role) cell of the table.
type Rule func(a Actor, t Target) Decision

type cell struct {
	res  Resource
	act  Action
	role Role
}

type op struct {
	res Resource
	act Action
}

// Policy is the authorization decision table shared by every service.
// Doctor reads and patient self-registration are public and never reach it.
type Policy struct {
	rules    map[cell]Rule
	fallback map[op]Rule
}

var granted = Decision{Allowed: true, Reason: "allowed"}

func allow(Actor, Target) Decision { return granted }

func deny(reason string) Rule {
	return func(Actor, Target) Decision { return Decision{Reason: reason} }
}

func ownPatient(a Actor, t Target) Decision {
	if a.HasPatient() && a.PatientID == t.PatientID {
		return granted
	}
	return Decision{Reason: apperr.DefaultPermissionMessage}
}

func ownDoctor(a Actor, t Target) Decision {
	if a.HasDoctor() && a.DoctorID == t.DoctorID {
		return granted
	}
	return Decision{Reason: apperr.DefaultPermissionMessage}
}

func hasPatientProfile(a Actor, _ Target) Decision {
	if a.HasPatient() {
		return granted
	}
	return Decision{Reason: "Patient profile not found"}
}

func hasDoctorProfile(a Actor, _ Target) Decision {
	if a.HasDoctor() {
		return granted
	}
	return Decision{Reason: "Doctor profile not found"}
}

func NewPolicy() *Policy {
	p := &Policy{rules: map[cell]Rule{}, fallback: map[op]Rule{}}

	// Appointments.
	p.set(ResourceAppointment, ActionCreate, deny("Only patients can book appointments"), map[Role]Rule{
		RolePatient: allow,
	})
	p.set(ResourceAppointment, ActionRead, nil, map[Role]Rule{
		RoleAdmin:        allow,
		RoleDoctor:       ownDoctor,
		RolePatient:      ownPatient,
		RoleNurse:        allow,
		RoleReceptionist: allow,
	})
	p.set(ResourceAppointment, ActionList, nil, map[Role]Rule{
		RoleAdmin:        allow,
		RoleDoctor:       hasDoctorProfile,
		RolePatient:      hasPatientProfile,
		RoleNurse:        allow,
		RoleReceptionist: allow,
	})
	p.set(ResourceAppointment, ActionUpdate, nil, map[Role]Rule{
		RoleAdmin:   allow,
		RoleDoctor:  ownDoctor,
		RolePatient: ownPatient,
	})
	p.set(ResourceAppointment, ActionDelete, nil, map[Role]Rule{
		RoleAdmin:   allow,
		RolePatient: ownPatient,
	})

	// Doctor profiles.
	p.set(ResourceDoctor, ActionCreate, deny("Only admins can register doctors"), map[Role]Rule{
		RoleAdmin: allow,
	})
	p.set(ResourceDoctor, ActionUpdate, nil, map[Role]Rule{
		RoleAdmin:  allow,
		RoleDoctor: ownDoctor,
	})
	p.set(ResourceDoctor, ActionReadOwn, deny("Not a doctor account"), map[Role]Rule{
		RoleDoctor: allow,
	})

	// Patient profiles. Any non-patient role may read or edit any patient.
	p.set(ResourcePatient, ActionList, nil, map[Role]Rule{
		RoleAdmin:  allow,
		RoleDoctor: allow,
		RoleNurse:  allow,
	})
	staffOrSelf := map[Role]Rule{
		RoleAdmin:        allow,
		RoleDoctor:       allow,
		RoleNurse:        allow,
		RoleReceptionist: allow,
		RolePatient:      ownPatient,
	}
	p.set(ResourcePatient, ActionRead, nil, staffOrSelf)
	p.set(ResourcePatient, ActionUpdate, nil, staffOrSelf)
	p.set(ResourcePatient, ActionReadOwn, deny("Not a patient account"), map[Role]Rule{
		RolePatient: allow,
	})

	return p
}

func (p *Policy) set(res Resource, act Action, fallback Rule, byRole map[Role]Rule) {
	if fallback != nil {
		p.fallback[op{res, act}] = fallback
	}
	for role, rule := range byRole {
		p.rules[cell{res, act, role}] = rule
	}
}

// Evaluate decides whether actor may perform act on a res owned by t.
// Anything without a rule is denied.
func (p *Policy) Evaluate(a Actor, res Resource, act Action, t Target) Decision {
	if !a.Role.Valid() {
		return Decision{Reason: apperr.DefaultPermissionMessage}
	}
	if rule, ok := p.rules[cell{res, act, a.Role}]; ok {
		return rule(a, t)
	}
	if rule, ok := p.fallback[op{res, act}]; ok {
		return rule(a, t)
	}
	return Decision{Reason: apperr.DefaultPermissionMessage}
}

// Authorize is Evaluate returning a permission error on denial.
func (p *Policy) Authorize(a Actor, res Resource, act Action, t Target) error {
	return p.Evaluate(a, res, act, t).Err()
}

// Scope restricts an appointment listing. Both ids zero means unrestricted.
type Scope struct {
	PatientID int64
	DoctorID  int64
}

func (s Scope) Unrestricted() bool { return s.PatientID == 0 && s.DoctorID == 0 }

// AppointmentScope returns the rows actor may list: patients and doctors
// see only their own, staff see everything.
func (p *Policy) AppointmentScope(a Actor) (Scope, error) {
	if err := p.Authorize(a, ResourceAppointment, ActionList, Target{}); err != nil {
		return Scope{}, err
	}
	switch a.Role {
	case RolePatient:
		return Scope{PatientID: a.PatientID}, nil
	case RoleDoctor:
		return Scope{DoctorID: a.DoctorID}, nil
	}
	return Scope{}, nil
}

// AppointmentChange lists the fields an update sets. Status is empty when
// the update leaves it alone.
type AppointmentChange struct {
	Fields []string
	Status string
}

var (
	patientAppointmentFields = map[string]bool{"appointment_date": true, "status": true}
	patientStatuses          = map[string]bool{"pending": true, "cancelled": true}
)

// AppointmentUpdate checks ownership and then the fields the role may
// set. Patients may only reschedule, or move status to pending or
// cancelled.
func (p *Policy) AppointmentUpdate(a Actor, t Target, ch AppointmentChange) Decision {
	d := p.Evaluate(a, ResourceAppointment, ActionUpdate, t)
	if !d.Allowed || a.Role != RolePatient {
		return d
	}
	if ch.Status != "" && !patientStatuses[ch.Status] {
		return Decision{Reason: "Patients can only cancel appointments"}
	}
	for _, f := range ch.Fields {
		if !patientAppointmentFields[f] {
			return Decision{Reason: "Patients can only reschedule or cancel appointments"}
		}
	}
	return d
}
