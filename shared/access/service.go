// Package access decides who may use the bot and who may run manager
// commands.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Service checks the blocklist and the manager list.
type Service struct {
	blocklist BlocklistRepository
	managers  ManagerRepository
	logger    zerolog.Logger
}

func NewService(blocklist BlocklistRepository, managers ManagerRepository, logger zerolog.Logger) *Service {
	return &Service{
		blocklist: blocklist,
		managers:  managers,
		logger:    logger.With().Str("component", "access").Logger(),
	}
}

// BlockUser adds a user to the blocklist on behalf of a manager.
func (s *Service) BlockUser(ctx context.Context, userID int64, reason string, blockedBy int64) error {
	if err := s.ManagerMiddleware(ctx, blockedBy); err != nil {
		return err
	}
	if userID == blockedBy {
		return &AccessDeniedError{Reason: "You cannot block yourself."}
	}
	isManager, err := s.managers.IsManager(ctx, userID)
	if err != nil {
		return fmt.Errorf("checking manager status: %w", err)
	}
	if isManager {
		return &AccessDeniedError{Reason: "Managers cannot be blocked."}
	}

	if err := s.blocklist.BlockUser(ctx, userID, reason, blockedBy); err != nil {
		return err
	}
	s.logger.Info().
		Int64("user_id", userID).
		Int64("blocked_by", blockedBy).
		Str("reason", reason).
		Msg("user blocked")
	return nil
}

// UnblockUser removes a user from the blocklist on behalf of a manager.
func (s *Service) UnblockUser(ctx context.Context, userID, unblockedBy int64) error {
	if err := s.ManagerMiddleware(ctx, unblockedBy); err != nil {
		return err
	}
	if err := s.blocklist.UnblockUser(ctx, userID); err != nil {
		return err
	}
	s.logger.Info().
		Int64("user_id", userID).
		Int64("unblocked_by", unblockedBy).
		Msg("user unblocked")
	return nil
}

func (s *Service) ListBlockedUsers(ctx context.Context) ([]BlockedUser, error) {
	return s.blocklist.ListBlockedUsers(ctx)
}

func (s *Service) IsManager(ctx context.Context, userID int64) (bool, error) {
	return s.managers.IsManager(ctx, userID)
}

func (s *Service) GetManagerChatIDs(ctx context.Context) ([]int64, error) {
	return s.managers.GetManagerChatIDs(ctx)
}

// CanAccess reports whether the user may use the bot, and the reason to
// show when not.
func (s *Service) CanAccess(ctx context.Context, userID int64) (bool, string, error) {
	blocked, err := s.blocklist.GetBlockedUser(ctx, userID)
	if err != nil {
		return false, "", err
	}
	if blocked == nil {
		return true, "", nil
	}
	reason := "Your access to the bot is blocked."
	if blocked.Reason != "" {
		reason = fmt.Sprintf("Your access to the bot is blocked: %s", blocked.Reason)
	}
	return false, reason, nil
}

// Middleware returns an *AccessDeniedError for blocked users.
func (s *Service) Middleware(ctx context.Context, userID int64) error {
	canAccess, reason, err := s.CanAccess(ctx, userID)
	if err != nil {
		return fmt.Errorf("checking access: %w", err)
	}
	if !canAccess {
		return &AccessDeniedError{Reason: reason}
	}
	return nil
}

// ManagerMiddleware returns an *AccessDeniedError for non-managers.
func (s *Service) ManagerMiddleware(ctx context.Context, userID int64) error {
	canManage, err := s.managers.IsManager(ctx, userID)
	if err != nil {
		return fmt.Errorf("checking manager status: %w", err)
	}
	if !canManage {
		return &AccessDeniedError{Reason: "This command is for managers only."}
	}
	return nil
}

// AccessDeniedError carries a message for the user.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return e.Reason
}

func IsAccessDenied(err error) bool {
	var denied *AccessDeniedError
	return errors.As(err, &denied)
}
