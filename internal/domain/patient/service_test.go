package patient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/account"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/seqid"
	"github.com/hms/hms/pkg/patch"
	"github.com/hms/hms/pkg/phone"
)

// -- Mocks --

type mockPatientRepo struct {
	patients map[int64]*Patient
	nextID   int64
	// collideOnce makes the next Create fail as if patient_id were taken.
	collideOnce bool
	locked      int
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[int64]*Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	if m.collideOnce {
		m.collideOnce = false
		return ErrDuplicateID
	}
	for _, existing := range m.patients {
		if existing.PatientID == p.PatientID {
			return ErrDuplicateID
		}
	}
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id int64) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPatientRepo) GetForUpdate(ctx context.Context, id int64) (*Patient, error) {
	m.locked++
	return m.GetByID(ctx, id)
}

func (m *mockPatientRepo) GetByUserID(_ context.Context, userID int64) (*Patient, error) {
	for _, p := range m.patients {
		if p.UserID == userID {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockPatientRepo) List(_ context.Context, limit, offset int) ([]*Patient, error) {
	var ids []int64
	for id := range m.patients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := []*Patient{}
	for i, id := range ids {
		if i >= offset && len(out) < limit {
			out = append(out, m.patients[id])
		}
	}
	return out, nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return ErrNotFound
	}
	m.patients[p.ID] = p
	return nil
}

// lastID mirrors the PostgreSQL source: the newest row's identifier.
func (m *mockPatientRepo) lastID(_ context.Context, _ seqid.Kind) (string, error) {
	if m.nextID == 0 {
		return "", nil
	}
	if p, ok := m.patients[m.nextID]; ok {
		return p.PatientID, nil
	}
	return "", nil
}

type fakeAccounts struct {
	users  map[string]*account.User
	nextID int64
	tx     *inlineTx
}

func (f *fakeAccounts) Register(_ context.Context, in account.NewUser) (*account.User, error) {
	if f.users == nil {
		f.users = make(map[string]*account.User)
	}
	if _, ok := f.users[in.Email]; ok {
		return nil, apperr.Validation("Email or username already registered")
	}
	f.nextID++
	u := &account.User{ID: f.nextID, Email: in.Email, Username: in.Username, FullName: in.FullName, Role: in.Role, IsActive: true}
	f.users[in.Email] = u
	if f.tx != nil {
		f.tx.undo = append(f.tx.undo, func() { delete(f.users, in.Email) })
	}
	return u, nil
}

// inlineTx runs fn directly and replays registered undo funcs when it
// fails, standing in for a rollback.
type inlineTx struct {
	calls int
	undo  []func()
}

func (t *inlineTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	t.undo = nil
	if err := fn(ctx); err != nil {
		for _, u := range t.undo {
			u()
		}
		return err
	}
	return nil
}

type countingRecorder struct{ counts map[string]int }

func (r *countingRecorder) ProfileRegistered(kind string) {
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[kind]++
}

func (r *countingRecorder) SequenceConflict(kind string) {
	r.ProfileRegistered("conflict:" + kind)
}

type fixture struct {
	svc      *Service
	repo     *mockPatientRepo
	accounts *fakeAccounts
	tx       *inlineTx
	metrics  *countingRecorder
}

func newFixture() *fixture {
	repo := newMockPatientRepo()
	metrics := &countingRecorder{}
	ids := seqid.New(seqid.SourceFunc(repo.lastID), zerolog.Nop(), seqid.WithConflictRecorder(metrics))
	tx := &inlineTx{}
	f := &fixture{repo: repo, accounts: &fakeAccounts{tx: tx}, tx: tx, metrics: metrics}
	f.svc = NewService(repo, f.accounts, f.tx, ids, auth.NewPolicy(), phone.NewNormalizer("US"), metrics, zerolog.Nop())
	f.svc.now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func registration(name string) Registration {
	return Registration{
		User: account.NewUser{
			Email:    name + "@example.com",
			Username: name,
			FullName: name,
			Password: "password123",
		},
		DateOfBirth: NewDate(1990, time.May, 17),
		Gender:      GenderFemale,
		Phone:       "(650) 253-0000",
	}
}

func TestService_Register(t *testing.T) {
	f := newFixture()
	p, err := f.svc.Register(context.Background(), registration("alice"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.PatientID != "PAT-00001" {
		t.Errorf("expected PAT-00001, got %s", p.PatientID)
	}
	if p.User == nil || p.User.Role != auth.RolePatient {
		t.Errorf("expected embedded patient user, got %+v", p.User)
	}
	if p.Phone != "+16502530000" {
		t.Errorf("expected E.164 phone, got %s", p.Phone)
	}
	if f.metrics.counts["patient"] != 1 {
		t.Errorf("expected registration counted, got %v", f.metrics.counts)
	}
}

func TestService_Register_SequentialIDs(t *testing.T) {
	f := newFixture()
	for i := 1; i <= 12; i++ {
		p, err := f.svc.Register(context.Background(), registration(fmt.Sprintf("user%d", i)))
		if err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
		if want := fmt.Sprintf("PAT-%05d", i); p.PatientID != want {
			t.Errorf("registration %d: got %s, want %s", i, p.PatientID, want)
		}
	}
}

func TestService_Register_IgnoresRequestedRole(t *testing.T) {
	f := newFixture()
	in := registration("mallory")
	in.User.Role = auth.RoleAdmin
	p, err := f.svc.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.User.Role != auth.RolePatient {
		t.Errorf("self-registration must not grant %s", p.User.Role)
	}
}

func TestService_Register_Duplicate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, registration("alice")); err != nil {
		t.Fatalf("first: %v", err)
	}
	_, err := f.svc.Register(ctx, registration("alice"))
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.repo.patients) != 1 {
		t.Errorf("duplicate must not create a profile, have %d", len(f.repo.patients))
	}
}

func TestService_Register_RetriesCollisionOnce(t *testing.T) {
	f := newFixture()
	f.repo.collideOnce = true

	p, err := f.svc.Register(context.Background(), registration("alice"))
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if p.PatientID != "PAT-00001" {
		t.Errorf("unexpected id %s", p.PatientID)
	}
	if f.tx.calls != 2 {
		t.Errorf("expected two transactions, got %d", f.tx.calls)
	}
	if f.metrics.counts["conflict:patient"] != 1 {
		t.Errorf("expected conflict recorded, got %v", f.metrics.counts)
	}
}

func TestService_Register_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Registration)
	}{
		{"missing dob", func(r *Registration) { r.DateOfBirth = Date{} }},
		{"future dob", func(r *Registration) { r.DateOfBirth = NewDate(2030, time.January, 1) }},
		{"bad gender", func(r *Registration) { r.Gender = "unknown" }},
		{"bad blood group", func(r *Registration) { bg := BloodGroup("C+"); r.BloodGroup = &bg }},
		{"missing phone", func(r *Registration) { r.Phone = "" }},
		{"invalid phone", func(r *Registration) { r.Phone = "12" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			in := registration("alice")
			tt.mutate(&in)
			if _, err := f.svc.Register(context.Background(), in); !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
			if len(f.repo.patients) != 0 {
				t.Error("nothing should be created")
			}
		})
	}
}

func TestService_Register_MalformedLastID(t *testing.T) {
	repo := newMockPatientRepo()
	ids := seqid.New(seqid.SourceFunc(func(context.Context, seqid.Kind) (string, error) {
		return "PAT00007", nil
	}), zerolog.Nop())
	svc := NewService(repo, &fakeAccounts{}, &inlineTx{}, ids, auth.NewPolicy(), phone.NewNormalizer("US"), nil, zerolog.Nop())

	_, err := svc.Register(context.Background(), registration("alice"))
	if !apperr.Is(err, apperr.KindMalformedSequence) {
		t.Fatalf("expected malformed sequence error, got %v", err)
	}
}

func TestService_List_Permissions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, _ = f.svc.Register(ctx, registration("alice"))
	_, _ = f.svc.Register(ctx, registration("bob"))

	for _, role := range []auth.Role{auth.RoleAdmin, auth.RoleDoctor, auth.RoleNurse} {
		items, err := f.svc.List(ctx, auth.Actor{UserID: 99, Role: role}, 100, 0)
		if err != nil || len(items) != 2 {
			t.Errorf("%s: expected 2 patients, got %d, %v", role, len(items), err)
		}
	}
	for _, role := range []auth.Role{auth.RolePatient, auth.RoleReceptionist} {
		if _, err := f.svc.List(ctx, auth.Actor{UserID: 99, Role: role}, 100, 0); !apperr.Is(err, apperr.KindPermission) {
			t.Errorf("%s: expected permission error, got %v", role, err)
		}
	}

	items, _ := f.svc.List(ctx, auth.Actor{Role: auth.RoleAdmin}, 1, 1)
	if len(items) != 1 || items[0].PatientID != "PAT-00002" {
		t.Errorf("pagination: unexpected %v", items)
	}
}

func TestService_Get(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, _ := f.svc.Register(ctx, registration("alice"))
	b, _ := f.svc.Register(ctx, registration("bob"))

	self := auth.Actor{UserID: a.UserID, Role: auth.RolePatient, PatientID: a.ID}
	if _, err := f.svc.Get(ctx, self, a.ID); err != nil {
		t.Errorf("patient reading self: %v", err)
	}
	if _, err := f.svc.Get(ctx, self, b.ID); !apperr.Is(err, apperr.KindPermission) {
		t.Errorf("patient reading other: expected permission error, got %v", err)
	}
	if _, err := f.svc.Get(ctx, auth.Actor{Role: auth.RoleReceptionist}, b.ID); err != nil {
		t.Errorf("staff read: %v", err)
	}
	if _, err := f.svc.Get(ctx, self, 404); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_Me(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, _ := f.svc.Register(ctx, registration("alice"))

	got, err := f.svc.Me(ctx, auth.Actor{UserID: a.UserID, Role: auth.RolePatient, PatientID: a.ID})
	if err != nil || got.ID != a.ID {
		t.Fatalf("expected own profile, got %v, %v", got, err)
	}

	_, err = f.svc.Me(ctx, auth.Actor{UserID: 50, Role: auth.RoleDoctor})
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindPermission || ae.Message != "Not a patient account" {
		t.Errorf("expected 'Not a patient account', got %v", err)
	}

	_, err = f.svc.Me(ctx, auth.Actor{UserID: 77, Role: auth.RolePatient})
	if !errors.As(err, &ae) || ae.Kind != apperr.KindNotFound || ae.Message != "Patient profile not found" {
		t.Errorf("expected profile not found, got %v", err)
	}
}

func TestService_Update(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, _ := f.svc.Register(ctx, registration("alice"))
	b, _ := f.svc.Register(ctx, registration("bob"))
	self := auth.Actor{UserID: a.UserID, Role: auth.RolePatient, PatientID: a.ID}

	upd := Update{
		Address:   patch.Value("1 Main St"),
		Allergies: patch.Value("penicillin"),
		Phone:     patch.Value("+44 20 7031 3000"),
	}
	got, err := f.svc.Update(ctx, self, a.ID, upd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Address == nil || *got.Address != "1 Main St" || got.Phone != "+442070313000" {
		t.Errorf("unexpected patient %+v", got)
	}

	got, err = f.svc.Update(ctx, self, a.ID, Update{Address: patch.Null[string]()})
	if err != nil || got.Address != nil {
		t.Errorf("expected address cleared, got %v, %v", got.Address, err)
	}
	if got.Allergies == nil || *got.Allergies != "penicillin" {
		t.Error("absent fields must be left alone")
	}

	if _, err := f.svc.Update(ctx, self, b.ID, upd); !apperr.Is(err, apperr.KindPermission) {
		t.Errorf("expected permission error for other patient, got %v", err)
	}
	if _, err := f.svc.Update(ctx, auth.Actor{Role: auth.RoleReceptionist}, b.ID, upd); err != nil {
		t.Errorf("staff update: %v", err)
	}
	if _, err := f.svc.Update(ctx, self, a.ID, Update{Phone: patch.Null[string]()}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error clearing phone, got %v", err)
	}
}

func TestService_Update_LockedReadInTx(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, _ := f.svc.Register(ctx, registration("alice"))
	f.tx.calls = 0

	if _, err := f.svc.Update(ctx, auth.Actor{Role: auth.RoleAdmin}, a.ID, Update{Address: patch.Value("2 Side St")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.tx.calls != 1 || f.repo.locked != 1 {
		t.Errorf("expected one locked read in one transaction, got %d reads in %d", f.repo.locked, f.tx.calls)
	}

	_, err := f.svc.Update(ctx, auth.Actor{Role: auth.RoleAdmin}, 404, Update{})
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindNotFound || ae.Message != "Patient not found" {
		t.Errorf("expected 'Patient not found', got %v", err)
	}
}
