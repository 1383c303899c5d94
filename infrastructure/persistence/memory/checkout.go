package memory

import (
	"context"
	"time"

	"ordercore/domain/idempotency"
	"ordercore/domain/order"
	"ordercore/domain/user"
)

type SequenceRepository struct {
	store *Store
}

func NewSequenceRepository(store *Store) *SequenceRepository {
	return &SequenceRepository{store: store}
}

func (r *SequenceRepository) Next(ctx context.Context, counterID string) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[counterID]++
	s.record(ctx, func() { s.counters[counterID]-- })
	return s.counters[counterID], nil
}

type IdempotencyRepository struct {
	store *Store
}

func NewIdempotencyRepository(store *Store) *IdempotencyRepository {
	return &IdempotencyRepository{store: store}
}

func (r *IdempotencyRepository) Find(ctx context.Context, key string, notBefore time.Time) (*idempotency.Record, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.idempotency[key]
	if !ok || !rec.CreatedAt.After(notBefore) {
		return nil, nil
	}
	return &rec, nil
}

func (r *IdempotencyRepository) Save(ctx context.Context, record idempotency.Record, notBefore time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.idempotency[record.Key]
	if exists && prev.CreatedAt.After(notBefore) {
		return idempotency.ErrKeyConflict
	}
	s.idempotency[record.Key] = record
	s.record(ctx, func() {
		if exists {
			s.idempotency[record.Key] = prev
			return
		}
		delete(s.idempotency, record.Key)
	})
	return nil
}

func (r *IdempotencyRepository) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, rec := range s.idempotency {
		if rec.CreatedAt.Before(cutoff) {
			delete(s.idempotency, key)
			n++
		}
	}
	return n, nil
}

type UserRepository struct {
	store *Store
}

func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[u.ID()] = user.ReconstructionDTO{
		ID:        u.ID(),
		Name:      u.Name(),
		Email:     u.Email().Value(),
		Phone:     u.Phone(),
		IsActive:  u.IsActive(),
		CreatedAt: u.CreatedAt(),
		UpdatedAt: u.UpdatedAt(),
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	dto, ok := s.users[id]
	if !ok {
		return nil, user.NewUserNotFoundError(id)
	}
	return user.RebuildFromDTO(dto), nil
}

var (
	_ order.Sequence    = (*SequenceRepository)(nil)
	_ idempotency.Store = (*IdempotencyRepository)(nil)
	_ user.Repository   = (*UserRepository)(nil)
)
