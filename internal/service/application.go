package service

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/iliyamo/tuition-marketplace/internal/access"
	"github.com/iliyamo/tuition-marketplace/internal/apperr"
	"github.com/iliyamo/tuition-marketplace/internal/model"
	"github.com/iliyamo/tuition-marketplace/internal/repository"
)

// ApplicationService handles tutors applying to postings and students
// reviewing the applications on theirs.
type ApplicationService struct {
	apps     ApplicationStore
	tuitions TuitionStore
	log      *zap.Logger
}

func NewApplicationService(a ApplicationStore, t TuitionStore, log *zap.Logger) *ApplicationService {
	if a == nil || t == nil {
		panic("nil store passed to NewApplicationService")
	}
	return &ApplicationService{apps: a, tuitions: t, log: log}
}

// ApplyInput is the body of POST /apply-tuition.
type ApplyInput struct {
	TuitionID      primitive.ObjectID
	TutorName      string
	ExpectedSalary float64
	Message        string
}

// Apply records the caller's application to an open posting. A tutor may
// apply once per posting and never to a posting they created.
func (s *ApplicationService) Apply(ctx context.Context, caller access.Identity, in ApplyInput) (*model.Application, error) {
	if in.ExpectedSalary < 0 {
		return nil, apperr.New(apperr.Validation, "expected salary must not be negative")
	}
	t, err := s.tuitions.GetByID(ctx, in.TuitionID)
	if err != nil {
		return nil, storeErr(err, "tuition not found")
	}
	tutor := normEmail(caller.Email)
	if t.StudentEmail == tutor {
		return nil, apperr.New(apperr.Forbidden, "you cannot apply to your own tuition")
	}
	if t.Status != model.TuitionOpen {
		return nil, apperr.New(apperr.Conflict, "tuition is not open for applications")
	}
	exists, err := s.apps.Exists(ctx, t.ID, tutor)
	if err != nil {
		return nil, storeErr(err, "application lookup failed")
	}
	if exists {
		return nil, apperr.New(apperr.Conflict, "you already applied to this tuition")
	}

	at := now()
	a := &model.Application{
		TuitionID:      t.ID,
		TuitionTitle:   t.Title,
		TutorEmail:     tutor,
		TutorName:      strings.TrimSpace(in.TutorName),
		StudentEmail:   t.StudentEmail,
		ExpectedSalary: in.ExpectedSalary,
		Message:        strings.TrimSpace(in.Message),
		Status:         model.ApplicationPending,
		AppliedAt:      at,
		UpdatedAt:      at,
	}
	if err := s.apps.Create(ctx, a); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.New(apperr.Conflict, "you already applied to this tuition")
		}
		return nil, storeErr(err, "create application failed")
	}
	s.log.Debug("application created", zap.String("tuition_id", t.ID.Hex()), zap.String("tutor", tutor))
	return a, nil
}

// ForStudent lists the applications on the caller's postings.
func (s *ApplicationService) ForStudent(ctx context.Context, caller access.Identity, f model.ApplicationFilter, pr model.PageRequest) (Page[model.Application], error) {
	f.StudentEmail = normEmail(caller.Email)
	f.TutorEmail = ""
	return s.list(ctx, f, pr)
}

// Mine lists the caller's own applications.
func (s *ApplicationService) Mine(ctx context.Context, caller access.Identity, status string, pr model.PageRequest) (Page[model.Application], error) {
	return s.list(ctx, model.ApplicationFilter{TutorEmail: normEmail(caller.Email), Status: status}, pr)
}

func (s *ApplicationService) list(ctx context.Context, f model.ApplicationFilter, pr model.PageRequest) (Page[model.Application], error) {
	switch f.Status {
	case "", model.ApplicationPending, model.ApplicationAccepted, model.ApplicationRejected:
	default:
		return Page[model.Application]{}, apperr.New(apperr.Validation, "unknown status")
	}
	pr = pr.Normalize()
	items, total, err := s.apps.List(ctx, f, pr)
	if err != nil {
		return Page[model.Application]{}, storeErr(err, "list applications failed")
	}
	return newPage(items, total, pr), nil
}

// SetStatus lets the owning student move an application between pending
// and rejected. Acceptance only happens through a recorded payment.
func (s *ApplicationService) SetStatus(ctx context.Context, caller access.Identity, id primitive.ObjectID, status string) (*model.Application, error) {
	if status != model.ApplicationPending && status != model.ApplicationRejected {
		return nil, apperr.New(apperr.Validation, "status must be pending or rejected")
	}
	a, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "application not found")
	}
	if a.StudentEmail != normEmail(caller.Email) {
		return nil, apperr.New(apperr.Forbidden, "not an application on your tuition")
	}
	if a.Status == model.ApplicationAccepted {
		return nil, apperr.New(apperr.Conflict, "application is already accepted")
	}
	t, err := s.tuitions.GetByID(ctx, a.TuitionID)
	if err != nil {
		return nil, storeErr(err, "tuition not found")
	}
	if t.Status == model.TuitionAssigned {
		return nil, apperr.New(apperr.Conflict, "tuition is already assigned")
	}

	at := now()
	if _, _, err := s.apps.SetStatus(ctx, id, status, at); err != nil {
		return nil, storeErr(err, "update application failed")
	}
	a.Status = status
	a.UpdatedAt = at
	return a, nil
}

// Withdraw deletes the caller's application while it is still pending.
func (s *ApplicationService) Withdraw(ctx context.Context, caller access.Identity, id primitive.ObjectID) error {
	a, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return storeErr(err, "application not found")
	}
	tutor := normEmail(caller.Email)
	if a.TutorEmail != tutor {
		return apperr.New(apperr.Forbidden, "not your application")
	}
	if a.Status != model.ApplicationPending {
		return apperr.New(apperr.Conflict, "only pending applications can be withdrawn")
	}
	n, err := s.apps.DeletePending(ctx, id, tutor)
	if err != nil {
		return storeErr(err, "delete application failed")
	}
	if n == 0 {
		return apperr.New(apperr.Conflict, "only pending applications can be withdrawn")
	}
	return nil
}
