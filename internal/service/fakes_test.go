package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/tuition-marketplace/internal/model"
	"github.com/iliyamo/tuition-marketplace/internal/payment"
	"github.com/iliyamo/tuition-marketplace/internal/queue"
	"github.com/iliyamo/tuition-marketplace/internal/repository"
)

// memDB backs every fake store with plain maps and enforces the same unique
// keys as the MongoDB indexes.
type memDB struct {
	mu       sync.Mutex
	users    map[string]*model.User
	tuitions map[primitive.ObjectID]*model.Tuition
	apps     map[primitive.ObjectID]*model.Application
	payments map[string]*model.Payment

	statusWrites int // tuition status updates, for idempotency checks
	failOn       string
}

var errInjected = errors.New("injected store failure")

func newMemDB() *memDB {
	return &memDB{
		users:    map[string]*model.User{},
		tuitions: map[primitive.ObjectID]*model.Tuition{},
		apps:     map[primitive.ObjectID]*model.Application{},
		payments: map[string]*model.Payment{},
	}
}

func (db *memDB) fail(op string) error {
	if db.failOn == op {
		return errInjected
	}
	return nil
}

func page[T any](all []T, pr model.PageRequest) ([]T, int64) {
	pr = pr.Normalize()
	total := int64(len(all))
	start := pr.Skip()
	if start > total {
		start = total
	}
	end := start + int64(pr.Limit)
	if end > total {
		end = total
	}
	return all[start:end], total
}

// ---- users ----

type memUsers struct{ db *memDB }

func (s memUsers) Create(_ context.Context, u *model.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("users.create"); err != nil {
		return err
	}
	if _, ok := s.db.users[u.Email]; ok {
		return repository.ErrDuplicate
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	cp := *u
	s.db.users[u.Email] = &cp
	return nil
}

func (s memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[normEmail(email)]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s memUsers) GetByID(_ context.Context, id primitive.ObjectID) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s memUsers) RoleOf(ctx context.Context, email string) (string, bool, error) {
	u, err := s.GetByEmail(ctx, email)
	if err != nil {
		return "", false, err
	}
	return u.Role, u.Status != model.UserInactive, nil
}

func (s memUsers) TouchLogin(_ context.Context, email string, at time.Time) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[normEmail(email)]
	if !ok {
		return 0, nil
	}
	u.LastLoggedIn = at
	return 1, nil
}

func (s memUsers) Update(_ context.Context, email string, p model.UserPatch, at time.Time) (int64, int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[normEmail(email)]
	if !ok {
		return 0, 0, nil
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.PhotoURL != nil {
		u.PhotoURL = *p.PhotoURL
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Status != nil {
		u.Status = *p.Status
	}
	if p.ClearTutorFields {
		u.Education, u.Subjects, u.HourlyRate = nil, nil, nil
	} else {
		if p.Education != nil {
			u.Education = p.Education
		}
		if p.Subjects != nil {
			u.Subjects = p.Subjects
		}
		if p.HourlyRate != nil {
			u.HourlyRate = p.HourlyRate
		}
	}
	u.UpdatedAt = at
	return 1, 1, nil
}

func (s memUsers) List(_ context.Context, f model.UserFilter, pr model.PageRequest) ([]model.User, int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var all []model.User
	for _, u := range s.db.users {
		if (f.Role == "" || u.Role == f.Role) && (f.Status == "" || u.Status == f.Status) && (f.Email == "" || u.Email == normEmail(f.Email)) {
			all = append(all, *u)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	items, total := page(all, pr)
	return items, total, nil
}

func (s memUsers) DeleteByID(_ context.Context, id primitive.ObjectID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for k, u := range s.db.users {
		if u.ID == id {
			delete(s.db.users, k)
			return 1, nil
		}
	}
	return 0, nil
}

// ---- tuitions ----

type memTuitions struct{ db *memDB }

func (s memTuitions) Create(_ context.Context, t *model.Tuition) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	cp := *t
	s.db.tuitions[t.ID] = &cp
	return nil
}

func (s memTuitions) GetByID(_ context.Context, id primitive.ObjectID) (*model.Tuition, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("tuitions.get"); err != nil {
		return nil, err
	}
	t, ok := s.db.tuitions[id]
	if !ok {
		return nil, repository.ErrTuitionNotFound
	}
	cp := *t
	return &cp, nil
}

func (s memTuitions) List(_ context.Context, f model.TuitionFilter, pr model.PageRequest) ([]model.Tuition, int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var all []model.Tuition
	for _, t := range s.db.tuitions {
		if (f.Status == "" || t.Status == f.Status) && (f.StudentEmail == "" || t.StudentEmail == f.StudentEmail) {
			all = append(all, *t)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.Hex() < all[j].ID.Hex() })
	items, total := page(all, pr)
	return items, total, nil
}

func (s memTuitions) Update(_ context.Context, id primitive.ObjectID, owner string, p model.TuitionPatch, at time.Time) (int64, int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tuitions[id]
	if !ok || t.StudentEmail != owner {
		return 0, 0, nil
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Budget != nil {
		t.Budget = *p.Budget
	}
	t.UpdatedAt = at
	return 1, 1, nil
}

func (s memTuitions) SetStatus(_ context.Context, id primitive.ObjectID, status string, at time.Time, from ...string) (int64, int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tuitions[id]
	if !ok {
		return 0, 0, nil
	}
	if len(from) > 0 {
		allowed := false
		for _, f := range from {
			allowed = allowed || t.Status == f
		}
		if !allowed {
			return 0, 0, nil
		}
	}
	s.db.statusWrites++
	t.Status = status
	t.UpdatedAt = at
	return 1, 1, nil
}

func (s memTuitions) Delete(_ context.Context, id primitive.ObjectID, owner string) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tuitions[id]
	if !ok || t.StudentEmail != owner {
		return 0, nil
	}
	delete(s.db.tuitions, id)
	return 1, nil
}

// ---- applications ----

type memApps struct{ db *memDB }

func (s memApps) Create(_ context.Context, a *model.Application) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, x := range s.db.apps {
		if x.TuitionID == a.TuitionID && x.TutorEmail == a.TutorEmail {
			return repository.ErrDuplicate
		}
	}
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	cp := *a
	s.db.apps[a.ID] = &cp
	return nil
}

func (s memApps) GetByID(_ context.Context, id primitive.ObjectID) (*model.Application, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.apps[id]
	if !ok {
		return nil, repository.ErrApplicationNotFound
	}
	cp := *a
	return &cp, nil
}

func (s memApps) Exists(_ context.Context, tuitionID primitive.ObjectID, tutor string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, a := range s.db.apps {
		if a.TuitionID == tuitionID && a.TutorEmail == tutor {
			return true, nil
		}
	}
	return false, nil
}

func (s memApps) List(_ context.Context, f model.ApplicationFilter, pr model.PageRequest) ([]model.Application, int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var all []model.Application
	for _, a := range s.db.apps {
		if (f.TuitionID.IsZero() || a.TuitionID == f.TuitionID) &&
			(f.TutorEmail == "" || a.TutorEmail == f.TutorEmail) &&
			(f.StudentEmail == "" || a.StudentEmail == f.StudentEmail) &&
			(f.Status == "" || a.Status == f.Status) {
			all = append(all, *a)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].TutorEmail < all[j].TutorEmail })
	items, total := page(all, pr)
	return items, total, nil
}

func (s memApps) SetStatus(_ context.Context, id primitive.ObjectID, status string, at time.Time) (int64, int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.apps[id]
	if !ok {
		return 0, 0, nil
	}
	a.Status, a.UpdatedAt = status, at
	return 1, 1, nil
}

func (s memApps) Resolve(_ context.Context, tuitionID primitive.ObjectID, tutor string, at time.Time) (int64, int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var acc, rej int64
	for _, a := range s.db.apps {
		if a.TuitionID != tuitionID {
			continue
		}
		if a.TutorEmail == tutor {
			a.Status = model.ApplicationAccepted
			acc++
		} else {
			a.Status = model.ApplicationRejected
			rej++
		}
		a.UpdatedAt = at
	}
	return acc, rej, nil
}

func (s memApps) DeleteByTuition(_ context.Context, tuitionID primitive.ObjectID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for id, a := range s.db.apps {
		if a.TuitionID == tuitionID {
			delete(s.db.apps, id)
			n++
		}
	}
	return n, nil
}

func (s memApps) DeletePending(_ context.Context, id primitive.ObjectID, tutor string) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.apps[id]
	if !ok || a.TutorEmail != tutor || a.Status != model.ApplicationPending {
		return 0, nil
	}
	delete(s.db.apps, id)
	return 1, nil
}

// ---- payments ----

type memPayments struct {
	db *memDB
	// hideExisting makes GetByTransaction miss once, simulating a concurrent
	// insert landing between the pre-check and the insert.
	hideExisting bool
}

func (s *memPayments) Create(_ context.Context, p *model.Payment) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.payments[p.TransactionID]; ok {
		return repository.ErrDuplicate
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	cp := *p
	s.db.payments[p.TransactionID] = &cp
	return nil
}

func (s *memPayments) GetByTransaction(_ context.Context, txn string) (*model.Payment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.hideExisting {
		s.hideExisting = false
		return nil, repository.ErrPaymentNotFound
	}
	p, ok := s.db.payments[txn]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memPayments) List(_ context.Context, f model.PaymentFilter, pr model.PageRequest) ([]model.Payment, int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var all []model.Payment
	for _, p := range s.db.payments {
		if (f.StudentEmail == "" || p.StudentEmail == f.StudentEmail) && (f.TutorEmail == "" || p.TutorEmail == f.TutorEmail) {
			all = append(all, *p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].TransactionID < all[j].TransactionID })
	items, total := page(all, pr)
	return items, total, nil
}

// ---- provider and publisher ----

type fakeProvider struct {
	sessions  map[string]*payment.Session
	created   []payment.CheckoutRequest
	createErr error
}

func (p *fakeProvider) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (*payment.Checkout, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.created = append(p.created, req)
	return &payment.Checkout{ID: "cs_new", URL: "https://checkout.example/cs_new"}, nil
}

func (p *fakeProvider) Session(_ context.Context, id string) (*payment.Session, error) {
	s, ok := p.sessions[id]
	if !ok {
		return nil, errors.New("no such session")
	}
	return s, nil
}

type fakeVerifier struct {
	session *payment.Session
	ok      bool
	err     error
}

func (v fakeVerifier) CompletedSession([]byte, string) (*payment.Session, bool, error) {
	return v.session, v.ok, v.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.PaymentRecordedEvent
	err    error
}

func (p *recordingPublisher) PaymentRecorded(_ context.Context, ev queue.PaymentRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}
