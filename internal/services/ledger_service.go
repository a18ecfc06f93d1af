package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

// LedgerStore is the persistence used by LedgerService.
type LedgerStore interface {
	ListTransactions(ctx context.Context, dr core.DateRange) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	Summary(ctx context.Context, dr core.DateRange) (core.Summary, error)

	ListCategories(ctx context.Context) ([]core.Category, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

// LedgerService applies the ledger rules on top of the store: validation,
// category type matching, event publishing and summary memoization.
type LedgerService struct {
	store     LedgerStore
	events    amqp.Publisher
	summaries cache.Cache[core.Summary]
	logger    *log.Logger

	// gen counts invalidations; a summary read under an older generation is
	// not stored.
	genMu sync.Mutex
	gen   uint64
}

func NewLedgerService(store LedgerStore, events amqp.Publisher, summaries cache.Cache[core.Summary], logger *log.Logger) *LedgerService {
	if events == nil {
		events = amqp.NoopPublisher{Logger: logger}
	}
	return &LedgerService{
		store:     store,
		events:    events,
		summaries: summaries,
		logger:    logger.WithComponent(log.ComponentLedger),
	}
}

func (s *LedgerService) ListTransactions(ctx context.Context, dr core.DateRange) ([]core.Transaction, error) {
	if err := dr.Validate(); err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, dr)
}

func (s *LedgerService) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx.Normalize()
	if err := s.checkTransaction(ctx, tx); err != nil {
		return core.Transaction{}, err
	}
	created, err := s.store.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, err
	}
	s.mutated(ctx, amqp.KindTransactionCreated, created)
	return created, nil
}

func (s *LedgerService) UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx.Normalize()
	if err := s.checkTransaction(ctx, tx); err != nil {
		return core.Transaction{}, err
	}
	updated, err := s.store.UpdateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, err
	}
	s.mutated(ctx, amqp.KindTransactionUpdated, updated)
	return updated, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) error {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.mutated(ctx, amqp.KindTransactionDeleted, tx)
	return nil
}

// checkTransaction validates fields and, when a category is set, that it
// exists and has the transaction's type.
func (s *LedgerService) checkTransaction(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if tx.CategoryID == nil {
		return nil
	}
	c, err := s.store.GetCategory(ctx, *tx.CategoryID)
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("%w: category %d does not exist", ErrInvalidInput, *tx.CategoryID)
	}
	if err != nil {
		return err
	}
	if c.Type != tx.Type {
		return core.ErrCategoryTypeMismatch
	}
	return nil
}

// Summary returns the range aggregate, memoized until the next mutation.
func (s *LedgerService) Summary(ctx context.Context, dr core.DateRange) (core.Summary, error) {
	if err := dr.Validate(); err != nil {
		return core.Summary{}, err
	}
	if s.summaries == nil {
		return s.store.Summary(ctx, dr)
	}
	key := dr.String()
	if sum, ok := s.summaries.Get(key); ok {
		return sum, nil
	}

	s.genMu.Lock()
	gen := s.gen
	s.genMu.Unlock()

	sum, err := s.store.Summary(ctx, dr)
	if err != nil {
		return core.Summary{}, err
	}

	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.gen == gen {
		s.summaries.Set(key, sum)
	}
	return sum, nil
}

func (s *LedgerService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *LedgerService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.Normalize()
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, err
	}
	s.invalidate(ctx)
	return created, nil
}

func (s *LedgerService) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.Normalize()
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	updated, err := s.store.UpdateCategory(ctx, c)
	if err != nil {
		return core.Category{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// DeleteCategory refuses categories still referenced by transactions.
func (s *LedgerService) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *LedgerService) mutated(ctx context.Context, kind amqp.Kind, tx core.Transaction) {
	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "Ledger updated",
		log.NewFields().
			WithOperation(string(kind)).
			WithTransaction(tx.ID, string(tx.Type), tx.Amount.String(), tx.CategoryID).
			ToSlice()...)

	// Best effort: the mutation is already committed.
	if err := s.events.Publish(ctx, amqp.NewLedgerEvent(kind, tx)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldEventKind, kind, log.FieldTransactionID, tx.ID, log.FieldError, err)
	}
}

func (s *LedgerService) invalidate(ctx context.Context) {
	if s.summaries == nil {
		return
	}
	s.genMu.Lock()
	s.gen++
	n := s.summaries.Purge()
	s.genMu.Unlock()
	if n > 0 {
		s.logger.DebugContext(ctx, "Purged cached summaries", "count", n)
	}
}
