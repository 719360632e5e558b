package service

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/iliyamo/tuition-marketplace/internal/access"
	"github.com/iliyamo/tuition-marketplace/internal/apperr"
	"github.com/iliyamo/tuition-marketplace/internal/model"
)

// TuitionService manages postings. Owners edit and delete their own open
// postings; admins toggle open and closed. Assigned postings never change.
type TuitionService struct {
	tuitions TuitionStore
	apps     ApplicationStore
	log      *zap.Logger
}

func NewTuitionService(t TuitionStore, a ApplicationStore, log *zap.Logger) *TuitionService {
	if t == nil || a == nil {
		panic("nil store passed to NewTuitionService")
	}
	return &TuitionService{tuitions: t, apps: a, log: log}
}

// TuitionInput is the body of POST /tuition.
type TuitionInput struct {
	StudentName string
	Title       string
	Subject     string
	Class       string
	Location    string
	Budget      float64
	Schedule    string
	Description string
}

func (s *TuitionService) Create(ctx context.Context, caller access.Identity, in TuitionInput) (*model.Tuition, error) {
	t := &model.Tuition{
		StudentEmail: normEmail(caller.Email),
		StudentName:  strings.TrimSpace(in.StudentName),
		Title:        strings.TrimSpace(in.Title),
		Subject:      strings.TrimSpace(in.Subject),
		Class:        strings.TrimSpace(in.Class),
		Location:     strings.TrimSpace(in.Location),
		Budget:       in.Budget,
		Schedule:     strings.TrimSpace(in.Schedule),
		Description:  strings.TrimSpace(in.Description),
		Status:       model.TuitionOpen,
	}
	if t.Title == "" || t.Subject == "" || t.Class == "" {
		return nil, apperr.New(apperr.Validation, "title, subject and class are required")
	}
	if t.Budget < 0 {
		return nil, apperr.New(apperr.Validation, "budget must not be negative")
	}
	t.CreatedAt = now()
	t.UpdatedAt = t.CreatedAt
	if err := s.tuitions.Create(ctx, t); err != nil {
		return nil, storeErr(err, "create tuition failed")
	}
	return t, nil
}

func (s *TuitionService) Get(ctx context.Context, id primitive.ObjectID) (*model.Tuition, error) {
	t, err := s.tuitions.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "tuition not found")
	}
	return t, nil
}

func (s *TuitionService) List(ctx context.Context, f model.TuitionFilter, pr model.PageRequest) (Page[model.Tuition], error) {
	switch f.Status {
	case "", model.TuitionOpen, model.TuitionAssigned, model.TuitionClosed:
	default:
		return Page[model.Tuition]{}, apperr.New(apperr.Validation, "unknown status")
	}
	pr = pr.Normalize()
	items, total, err := s.tuitions.List(ctx, f, pr)
	if err != nil {
		return Page[model.Tuition]{}, storeErr(err, "list tuitions failed")
	}
	return newPage(items, total, pr), nil
}

// Mine lists the caller's own postings.
func (s *TuitionService) Mine(ctx context.Context, caller access.Identity, status string, pr model.PageRequest) (Page[model.Tuition], error) {
	return s.List(ctx, model.TuitionFilter{StudentEmail: normEmail(caller.Email), Status: status}, pr)
}

// owned loads a posting and checks that caller owns it and that it is not
// assigned yet.
func (s *TuitionService) owned(ctx context.Context, caller access.Identity, id primitive.ObjectID) (*model.Tuition, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.StudentEmail != normEmail(caller.Email) {
		return nil, apperr.New(apperr.Forbidden, "not your tuition")
	}
	if t.Status == model.TuitionAssigned {
		return nil, apperr.New(apperr.Conflict, "tuition is already assigned")
	}
	return t, nil
}

func (s *TuitionService) Update(ctx context.Context, caller access.Identity, id primitive.ObjectID, p model.TuitionPatch) (*model.Tuition, error) {
	if p.Empty() {
		return nil, apperr.New(apperr.Validation, "nothing to update")
	}
	for _, f := range []*string{p.Title, p.Subject, p.Class} {
		if f != nil && strings.TrimSpace(*f) == "" {
			return nil, apperr.New(apperr.Validation, "title, subject and class cannot be blank")
		}
	}
	if p.Budget != nil && *p.Budget < 0 {
		return nil, apperr.New(apperr.Validation, "budget must not be negative")
	}
	if _, err := s.owned(ctx, caller, id); err != nil {
		return nil, err
	}
	matched, _, err := s.tuitions.Update(ctx, id, normEmail(caller.Email), p, now())
	if err != nil {
		return nil, storeErr(err, "update tuition failed")
	}
	if matched == 0 {
		return nil, apperr.New(apperr.NotFound, "tuition not found")
	}
	return s.Get(ctx, id)
}

// Delete removes an unassigned posting of the caller and its applications.
func (s *TuitionService) Delete(ctx context.Context, caller access.Identity, id primitive.ObjectID) error {
	if _, err := s.owned(ctx, caller, id); err != nil {
		return err
	}
	n, err := s.tuitions.Delete(ctx, id, normEmail(caller.Email))
	if err != nil {
		return storeErr(err, "delete tuition failed")
	}
	if n == 0 {
		return apperr.New(apperr.NotFound, "tuition not found")
	}
	removed, err := s.apps.DeleteByTuition(ctx, id)
	if err != nil {
		// the posting is gone; orphans are unreachable through the API
		s.log.Warn("delete applications of removed tuition failed", zap.String("tuition_id", id.Hex()), zap.Error(err))
		return nil
	}
	s.log.Info("tuition deleted", zap.String("tuition_id", id.Hex()), zap.Int64("applications_removed", removed))
	return nil
}

// SetStatus moves a posting between open and closed.
func (s *TuitionService) SetStatus(ctx context.Context, id primitive.ObjectID, status string) (*model.Tuition, error) {
	if status != model.TuitionOpen && status != model.TuitionClosed {
		return nil, apperr.New(apperr.Validation, "status must be open or closed")
	}
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == model.TuitionAssigned {
		return nil, apperr.New(apperr.Conflict, "tuition is already assigned")
	}
	matched, _, err := s.tuitions.SetStatus(ctx, id, status, now(), model.TuitionOpen, model.TuitionClosed)
	if err != nil {
		return nil, storeErr(err, "update tuition status failed")
	}
	if matched == 0 {
		return nil, apperr.New(apperr.Conflict, "tuition is already assigned")
	}
	return s.Get(ctx, id)
}
