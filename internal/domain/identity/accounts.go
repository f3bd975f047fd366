package identity

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"pet-vaccination-clinic/internal/domain/authz"
	"pet-vaccination-clinic/internal/platform/apperror"
	"pet-vaccination-clinic/internal/platform/validation"
	"pet-vaccination-clinic/internal/ports/storage"
)

var (
	ErrPasswordTooLong     = apperror.Validation("password_too_long", "password must not exceed 72 bytes")
	ErrUserHasProfiles     = apperror.Conflict("protected_reference", "user still has profiles and cannot be deleted")
	ErrInvalidRefreshToken = apperror.Unauthorized("invalid_refresh_token", "refresh token is invalid or expired")
)

// UserPatch: campos nil quedan como están.
type UserPatch struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	IsStaff  *bool   `json:"is_staff"`
}

type accountFields struct {
	Username string `json:"username" validate:"required,max=150"`
	Email    string `json:"email" validate:"required,email,max=254"`
}

type passwordField struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (s *Service) ListUsers(ctx context.Context, c authz.Caller) ([]User, error) {
	if err := s.policy.Authorize(c, authz.ResourceUser, authz.ActionList, authz.Ownership{}); err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx)
}

// GetUser: cada usuario lee su propia cuenta; staff lee cualquiera.
func (s *Service) GetUser(ctx context.Context, c authz.Caller, id string) (User, error) {
	u, err := s.getUser(ctx, strings.TrimSpace(id))
	if err != nil {
		return User{}, err
	}
	if err := s.policy.Authorize(c, authz.ResourceUser, authz.ActionRead, authz.Ownership{UserID: u.ID}); err != nil {
		return User{}, err
	}
	return u, nil
}

// UpdateUser cambia username, email o password. is_staff solo lo cambia otro staff.
func (s *Service) UpdateUser(ctx context.Context, c authz.Caller, id string, in UserPatch) (User, error) {
	u, err := s.getUser(ctx, strings.TrimSpace(id))
	if err != nil {
		return User{}, err
	}
	if err := s.policy.Authorize(c, authz.ResourceUser, authz.ActionUpdate, authz.Ownership{UserID: u.ID}); err != nil {
		return User{}, err
	}
	if in.IsStaff != nil && *in.IsStaff != u.IsStaff && !c.IsStaff {
		return User{}, authz.ErrStaffOnly
	}

	if in.Username != nil {
		u.Username = strings.TrimSpace(*in.Username)
	}
	if in.Email != nil {
		u.Email = strings.TrimSpace(*in.Email)
	}
	if in.IsStaff != nil {
		u.IsStaff = *in.IsStaff
	}
	if err := s.valid.Struct(accountFields{Username: u.Username, Email: u.Email}); err != nil {
		return User{}, err
	}
	if in.Password != nil {
		if err := s.valid.Struct(passwordField{Password: *in.Password}); err != nil {
			return User{}, err
		}
		hash, err := s.hashPassword(*in.Password)
		if err != nil {
			return User{}, err
		}
		u.PasswordHash = hash
	}

	u.UpdatedAt = s.now()
	if err := s.repo.UpdateUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, mapUserErr(err)
	}

	s.log.Info("user updated", map[string]any{"user_id": u.ID, "by": c.UserID})
	return u, nil
}

// DeleteUser (staff) queda bloqueado mientras la cuenta tenga perfiles.
func (s *Service) DeleteUser(ctx context.Context, c authz.Caller, id string) error {
	if err := s.policy.Authorize(c, authz.ResourceUser, authz.ActionDelete, authz.Ownership{}); err != nil {
		return err
	}
	u, err := s.getUser(ctx, strings.TrimSpace(id))
	if err != nil {
		return err
	}

	if _, err := s.repo.GetOwnerByUserID(ctx, u.ID); err == nil {
		return ErrUserHasProfiles
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if _, err := s.repo.GetStaffByUserID(ctx, u.ID); err == nil {
		return ErrUserHasProfiles
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	if err := s.repo.DeleteUser(ctx, u.ID); err != nil {
		if errors.Is(err, storage.ErrReferenced) {
			return ErrUserHasProfiles
		}
		return s.mapDeleteErr(err, ErrUserNotFound)
	}
	s.log.Info("user deleted", map[string]any{"user_id": u.ID, "by": c.UserID})
	return nil
}

// RefreshUser recarga la cuenta de un refresh token ya verificado.
// Si la cuenta se borró el token deja de servir.
func (s *Service) RefreshUser(ctx context.Context, userID string) (User, error) {
	u, err := s.repo.GetUserByID(ctx, strings.TrimSpace(userID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return User{}, ErrInvalidRefreshToken
		}
		return User{}, err
	}
	return u, nil
}

// hashPassword: el tag max=72 cuenta runas y bcrypt limita bytes, por eso se mapea su error.
func (s *Service) hashPassword(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", err
	}
	return string(hash), nil
}

func mapUserErr(err error) error {
	if errors.Is(err, storage.ErrDuplicate) {
		return ErrUsernameTaken
	}
	return validation.FromStorage(err)
}
