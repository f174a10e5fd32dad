package service

import (
	"context"
	"errors"

	"github.com/vantage-solutions/ms-go-accounts/app/entity"
	"github.com/vantage-solutions/ms-go-accounts/app/repository"
)

// UserService covers profile access and admin user management. Profile
// updates are allow-listed to username and email; role, password and
// verification state can only change through their dedicated operations.
type UserService struct {
	userRepo    userRepository
	refreshRepo refreshTokenRepository
}

func NewUserService(userRepo userRepository, refreshRepo refreshTokenRepository) *UserService {
	return &UserService{
		userRepo:    userRepo,
		refreshRepo: refreshRepo,
	}
}

func (s *UserService) Profile(ctx context.Context, userID uint64) (*entity.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uint64, username, email string) (*entity.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if username != "" && username != user.Username {
		existing, err := s.userRepo.FindByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != userID {
			return nil, ErrUserExists
		}
		user.Username = username
	}

	if email != "" && email != user.Email {
		canonicalEmail := CanonicalizeEmail(email)
		existing, err := s.userRepo.FindByCanonicalEmail(ctx, canonicalEmail)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != userID {
			return nil, ErrUserExists
		}
		user.Email = email
		user.CanonicalEmail = canonicalEmail
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]*entity.User, error) {
	return s.userRepo.List(ctx)
}

func (s *UserService) GetUser(ctx context.Context, id uint64) (*entity.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) UpdateRole(ctx context.Context, id uint64, role string) (*entity.User, error) {
	if !ValidRole(role) {
		return nil, ErrInvalidRole
	}

	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	user.Role = role
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id uint64) error {
	if err := s.refreshRepo.DeleteByUserID(ctx, id); err != nil {
		return err
	}

	rows, err := s.userRepo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}
