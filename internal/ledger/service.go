// Package ledger implements batch quantity accounting, the distribution
// state machine and the first-scan provenance history.
package ledger

import (
	"context"
	"errors"
	"time"

	"medchain-backend/internal/chain"
	"medchain-backend/internal/lock"
	"medchain-backend/internal/logging"
	"medchain-backend/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	moduleName = "ledger"
	lockTTL    = 10 * time.Second
)

var tracer = otel.Tracer("medchain-ledger")

// Actor is the authenticated party performing an operation.
type Actor struct {
	ID   string
	Role models.UserRole
	Name string
}

// Directory resolves participants so receivers can be checked before a
// distribution is written. Optional.
type Directory interface {
	Participant(ctx context.Context, id string) (role models.UserRole, approved bool, err error)
	// ResolveWallet returns the user id registered for a lowercased wallet
	// address, or ErrNotFound.
	ResolveWallet(ctx context.Context, wallet string) (string, error)
}

type Options struct {
	Locker             lock.Locker
	Anchor             chain.Anchor
	Directory          Directory
	VerificationSecret string
	Logger             *logrus.Logger
	Now                func() time.Time
	NewID              func() string
}

type Service struct {
	store     Store
	locker    lock.Locker
	anchor    chain.Anchor
	directory Directory
	secret    []byte
	logger    *logrus.Logger
	now       func() time.Time
	newID     func() string
}

func NewService(store Store, opts Options) *Service {
	s := &Service{
		store:     store,
		locker:    opts.Locker,
		anchor:    opts.Anchor,
		directory: opts.Directory,
		secret:    []byte(opts.VerificationSecret),
		logger:    opts.Logger,
		now:       opts.Now,
		newID:     opts.NewID,
	}
	if s.locker == nil {
		s.locker = lock.Noop{}
	}
	if s.anchor == nil {
		s.anchor = chain.Noop{}
	}
	if s.logger == nil {
		s.logger = logging.GetLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// withBatch serialises writers on one batch: the optional distributed lock
// first, then the row lock taken by Store.UpdateBatch.
func (s *Service) withBatch(ctx context.Context, batchID string, fn func(tx Tx, batch *models.Batch) error) error {
	lk, err := s.locker.Obtain(ctx, "medchain:batch:"+batchID, lockTTL)
	if errors.Is(err, lock.ErrNotObtained) {
		return ErrBusy
	}
	if err != nil {
		return err
	}
	defer func() {
		if relErr := lk.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logger.WithField("batchId", batchID).WithError(relErr).Warn("batch lock release failed")
		}
	}()

	return s.store.UpdateBatch(ctx, batchID, fn)
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// anchorRecord fingerprints a record through the chain collaborator. Failures
// are logged only.
func (s *Service) anchorRecord(ctx context.Context, kind, id string, payload any) string {
	hash, err := s.anchor.Anchor(ctx, kind, id, payload)
	if err != nil {
		logging.LogError(s.logger, moduleName, "anchorRecord", "anchor failed", map[string]string{"kind": kind, "id": id}, err)
		return ""
	}
	return hash
}

func timePtr(t time.Time) *time.Time {
	return &t
}
