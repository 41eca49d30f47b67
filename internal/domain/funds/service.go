package funds

import (
	"context"
	"math"
	"strings"
)

type StoreAPI interface {
	SubjectExists(ctx context.Context, tenantID, subjectID string) (bool, error)
	Insert(ctx context.Context, tenantID string, entry Entry) (Entry, error)
	CountEntries(ctx context.Context, tenantID, subjectID string) (int, error)
	ListEntries(ctx context.Context, tenantID, subjectID string, limit, offset int) ([]Entry, error)
	Balance(ctx context.Context, tenantID, subjectID string) (Balance, error)
}

type Service struct {
	store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store}
}

func (s *Service) Entries(ctx context.Context, tenantID, subjectID string, limit, offset int) ([]Entry, int, error) {
	if err := s.ensureSubject(ctx, tenantID, subjectID); err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountEntries(ctx, tenantID, subjectID)
	if err != nil {
		return nil, 0, err
	}
	entries, err := s.store.ListEntries(ctx, tenantID, subjectID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *Service) Balance(ctx context.Context, tenantID, subjectID string) (Balance, error) {
	if err := s.ensureSubject(ctx, tenantID, subjectID); err != nil {
		return Balance{}, err
	}
	return s.store.Balance(ctx, tenantID, subjectID)
}

// Adjust records a manual correction. It is never tied to a month, so
// unlocking a month leaves it in place.
func (s *Service) Adjust(ctx context.Context, tenantID, actorID string, adj Adjustment) (Entry, error) {
	amount := math.Round(adj.Amount*100) / 100
	if amount == 0 || math.IsNaN(amount) {
		return Entry{}, ErrInvalidAmount
	}
	note := strings.TrimSpace(adj.Note)
	if note == "" {
		return Entry{}, ErrNoteRequired
	}
	if err := s.ensureSubject(ctx, tenantID, adj.SubjectID); err != nil {
		return Entry{}, err
	}
	return s.store.Insert(ctx, tenantID, Entry{
		SubjectID: adj.SubjectID,
		Kind:      KindAdjustment,
		Amount:    amount,
		Note:      note,
		CreatedBy: actorID,
	})
}

func (s *Service) ensureSubject(ctx context.Context, tenantID, subjectID string) error {
	exists, err := s.store.SubjectExists(ctx, tenantID, subjectID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrSubjectNotFound
	}
	return nil
}

// MonthEntries returns the ledger lines a locked month posts for one result:
// a negative fine, a positive gift, or nothing.
func MonthEntries(subjectID, monthKey, actorID string, finalFine float64, gift *float64) []Entry {
	var out []Entry
	if finalFine > 0 {
		out = append(out, Entry{SubjectID: subjectID, MonthKey: monthKey, Kind: KindFine, Amount: -finalFine, Note: "monthly fine " + monthKey, CreatedBy: actorID})
	}
	if gift != nil && *gift > 0 {
		out = append(out, Entry{SubjectID: subjectID, MonthKey: monthKey, Kind: KindGift, Amount: *gift, Note: "monthly gift " + monthKey, CreatedBy: actorID})
	}
	return out
}
