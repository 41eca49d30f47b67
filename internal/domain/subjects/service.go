package subjects

import (
	"context"
	"strings"
)

type StoreAPI interface {
	Get(ctx context.Context, tenantID, subjectID string) (Subject, error)
	Count(ctx context.Context, tenantID string, filter Filter) (int, error)
	List(ctx context.Context, tenantID string, filter Filter, limit, offset int) ([]Subject, error)
	Create(ctx context.Context, tenantID string, subject Subject) (string, error)
	UpdateStatus(ctx context.Context, tenantID, subjectID, status string) error
}

type Service struct {
	store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store}
}

func (s *Service) Get(ctx context.Context, tenantID, subjectID string) (Subject, error) {
	return s.store.Get(ctx, tenantID, subjectID)
}

func (s *Service) List(ctx context.Context, tenantID string, filter Filter, limit, offset int) ([]Subject, int, error) {
	total, err := s.store.Count(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	list, err := s.store.List(ctx, tenantID, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Create normalizes the subject and stores it. Kind defaults to employee and
// status to active.
func (s *Service) Create(ctx context.Context, tenantID string, subject Subject) (Subject, error) {
	subject.FullName = strings.TrimSpace(subject.FullName)
	subject.Email = strings.ToLower(strings.TrimSpace(subject.Email))
	if subject.Kind == "" {
		subject.Kind = KindEmployee
	}
	if subject.Status == "" {
		subject.Status = StatusActive
	}
	if !ValidKind(subject.Kind) {
		return Subject{}, ErrInvalidKind
	}
	if !ValidStatus(subject.Status) {
		return Subject{}, ErrInvalidStatus
	}
	id, err := s.store.Create(ctx, tenantID, subject)
	if err != nil {
		return Subject{}, err
	}
	return s.store.Get(ctx, tenantID, id)
}

func (s *Service) UpdateStatus(ctx context.Context, tenantID, subjectID, status string) error {
	if !ValidStatus(status) {
		return ErrInvalidStatus
	}
	return s.store.UpdateStatus(ctx, tenantID, subjectID, status)
}

func ValidKind(kind string) bool {
	return kind == KindEmployee || kind == KindAdmin
}

func ValidStatus(status string) bool {
	return status == StatusActive || status == StatusInactive
}
