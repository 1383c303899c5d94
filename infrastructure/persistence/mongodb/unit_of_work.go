package mongodb

import (
	"context"
	"fmt"

	"ordercore/domain/shared"
	"ordercore/infrastructure/persistence/retry"

	"go.mongodb.org/mongo-driver/mongo"
)

// UnitOfWork runs fn inside a multi-document transaction. The session
// context handed to fn is what joins repository calls to the transaction.
type UnitOfWork struct {
	db          *mongo.Database
	outbox      *OutboxRepository
	ledger      shared.EventLedger
	retryConfig retry.Config
}

func NewUnitOfWork(db *mongo.Database) *UnitOfWork {
	return &UnitOfWork{
		db:          db,
		outbox:      NewOutboxRepository(db),
		retryConfig: retry.DefaultConfig,
	}
}

func (u *UnitOfWork) SetRetryConfig(config retry.Config) {
	u.retryConfig = config
}

// Execute nests into an already running session transaction. WithTransaction
// retries TransientTransactionError itself; the outer retry covers write
// conflicts surfaced as concurrent modification.
func (u *UnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return u.run(ctx, fn)
	}

	executeOnce := func(ctx context.Context) error {
		session, err := u.db.Client().StartSession()
		if err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}
		defer session.EndSession(ctx)

		_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
			return nil, u.run(sc, fn)
		})
		return err
	}
	if err := retry.ExecuteWithRetry(ctx, u.retryConfig, executeOnce); err != nil {
		return err
	}
	u.ledger.Committed()
	return nil
}

func (u *UnitOfWork) run(ctx context.Context, fn func(ctx context.Context) error) error {
	u.ledger.Begin()
	if err := fn(ctx); err != nil {
		return err
	}
	for _, event := range u.ledger.Events() {
		if err := u.outbox.SaveEvent(ctx, event); err != nil {
			return fmt.Errorf("failed to save event to outbox: %w", err)
		}
	}
	return nil
}

func (u *UnitOfWork) RegisterNew(aggregate shared.AggregateRoot) {
	u.ledger.Register(aggregate)
}

func (u *UnitOfWork) RegisterDirty(aggregate shared.AggregateRoot) {
	u.ledger.Register(aggregate)
}

type UnitOfWorkFactory struct {
	db          *mongo.Database
	retryConfig retry.Config
}

func NewUnitOfWorkFactory(db *mongo.Database, retryConfig retry.Config) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{db: db, retryConfig: retryConfig}
}

func (f *UnitOfWorkFactory) New() shared.UnitOfWork {
	uow := NewUnitOfWork(f.db)
	uow.SetRetryConfig(f.retryConfig)
	return uow
}

// inTx runs fn in the ambient session transaction or a new one.
func inTx(ctx context.Context, db *mongo.Database, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	session, err := db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

var (
	_ shared.UnitOfWork        = (*UnitOfWork)(nil)
	_ shared.UnitOfWorkFactory = (*UnitOfWorkFactory)(nil)
)
