package access

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	blocked  map[int64]BlockedUser
	managers map[int64]bool
	err      error
}

func newMemRepo(managers ...int64) *memRepo {
	r := &memRepo{blocked: map[int64]BlockedUser{}, managers: map[int64]bool{}}
	for _, id := range managers {
		r.managers[id] = true
	}
	return r
}

func (r *memRepo) IsBlocked(_ context.Context, id int64) (bool, error) {
	_, ok := r.blocked[id]
	return ok, r.err
}

func (r *memRepo) GetBlockedUser(_ context.Context, id int64) (*BlockedUser, error) {
	if r.err != nil {
		return nil, r.err
	}
	bu, ok := r.blocked[id]
	if !ok {
		return nil, nil
	}
	return &bu, nil
}

func (r *memRepo) BlockUser(_ context.Context, id int64, reason string, by int64) error {
	r.blocked[id] = BlockedUser{UserID: id, Reason: reason, BlockedBy: by}
	return nil
}

func (r *memRepo) UnblockUser(_ context.Context, id int64) error {
	delete(r.blocked, id)
	return nil
}

func (r *memRepo) ListBlockedUsers(context.Context) ([]BlockedUser, error) {
	var out []BlockedUser
	for _, bu := range r.blocked {
		out = append(out, bu)
	}
	return out, nil
}

func (r *memRepo) IsManager(_ context.Context, id int64) (bool, error) { return r.managers[id], r.err }

func (r *memRepo) GetManager(_ context.Context, id int64) (*Manager, error) {
	if !r.managers[id] {
		return nil, nil
	}
	return &Manager{UserID: id, ChatID: id}, nil
}

func (r *memRepo) AddManager(_ context.Context, id, _ int64, _ string, _ int64) error {
	r.managers[id] = true
	return nil
}

func (r *memRepo) RemoveManager(_ context.Context, id int64) error {
	delete(r.managers, id)
	return nil
}

func (r *memRepo) ListManagers(context.Context) ([]Manager, error) { return nil, nil }

func (r *memRepo) GetManagerChatIDs(context.Context) ([]int64, error) {
	var out []int64
	for id := range r.managers {
		out = append(out, id)
	}
	return out, nil
}

func TestBlockUser(t *testing.T) {
	tests := []struct {
		name    string
		target  int64
		by      int64
		denied  bool
		blocked bool
	}{
		{"manager blocks user", 5, 1, false, true},
		{"user cannot block", 5, 6, true, false},
		{"manager cannot block self", 1, 1, true, false},
		{"manager cannot block manager", 2, 1, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo(1, 2)
			svc := NewService(repo, repo, zerolog.New(io.Discard))

			err := svc.BlockUser(context.Background(), tt.target, "spam", tt.by)
			assert.Equal(t, tt.denied, IsAccessDenied(err), "err: %v", err)
			_, blocked := repo.blocked[tt.target]
			assert.Equal(t, tt.blocked, blocked)
		})
	}
}

func TestMiddleware(t *testing.T) {
	repo := newMemRepo(1)
	svc := NewService(repo, repo, zerolog.New(io.Discard))
	ctx := context.Background()

	assert.NoError(t, svc.Middleware(ctx, 5))
	require.NoError(t, svc.BlockUser(ctx, 5, "no-shows", 1))

	err := svc.Middleware(ctx, 5)
	require.True(t, IsAccessDenied(err))
	assert.Equal(t, "Your access to the bot is blocked: no-shows", err.Error())
	assert.True(t, IsAccessDenied(fmt.Errorf("wrapped: %w", err)))

	require.NoError(t, svc.UnblockUser(ctx, 5, 1))
	assert.NoError(t, svc.Middleware(ctx, 5))

	assert.True(t, IsAccessDenied(svc.ManagerMiddleware(ctx, 5)))
	assert.NoError(t, svc.ManagerMiddleware(ctx, 1))
}

func TestMiddlewareStoreError(t *testing.T) {
	repo := newMemRepo()
	repo.err = errors.New("disk I/O error")
	svc := NewService(repo, repo, zerolog.New(io.Discard))

	err := svc.Middleware(context.Background(), 5)
	require.Error(t, err)
	assert.False(t, IsAccessDenied(err))
}
