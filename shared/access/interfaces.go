package access

import (
	"context"
	"time"
)

// BlockedUser represents a blocked user record.
type BlockedUser struct {
	UserID    int64
	BlockedAt time.Time
	Reason    string
	BlockedBy int64
}

// Manager represents a manager record.
type Manager struct {
	UserID  int64
	ChatID  int64
	Name    string
	AddedAt time.Time
	AddedBy int64
}

// BlocklistRepository stores blocked users. GetBlockedUser returns nil, nil
// for a user that is not blocked.
type BlocklistRepository interface {
	IsBlocked(ctx context.Context, userID int64) (bool, error)
	GetBlockedUser(ctx context.Context, userID int64) (*BlockedUser, error)
	BlockUser(ctx context.Context, userID int64, reason string, blockedBy int64) error
	UnblockUser(ctx context.Context, userID int64) error
	ListBlockedUsers(ctx context.Context) ([]BlockedUser, error)
}

// ManagerRepository stores managers.
type ManagerRepository interface {
	IsManager(ctx context.Context, userID int64) (bool, error)
	GetManager(ctx context.Context, userID int64) (*Manager, error)
	AddManager(ctx context.Context, userID, chatID int64, name string, addedBy int64) error
	RemoveManager(ctx context.Context, userID int64) error
	ListManagers(ctx context.Context) ([]Manager, error)
	GetManagerChatIDs(ctx context.Context) ([]int64, error)
}
