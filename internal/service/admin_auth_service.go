package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/utils"
)

// AdminUserStore is the persistence of back-office users.
type AdminUserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	Create(ctx context.Context, user *models.AdminUser) error
	TouchLastLogin(ctx context.Context, id int64) error
}

type AdminAuthService struct {
	admins AdminUserStore
}

func NewAdminAuthService(admins AdminUserStore) *AdminAuthService {
	return &AdminAuthService{admins: admins}
}

// Login checks the credentials and returns a signed token with its expiry.
func (s *AdminAuthService) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	user, err := s.admins.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, utils.ErrNotFound) {
			log.Error().Err(err).Str("email", email).Msg("Failed to get user by email")
			return "", time.Time{}, err
		}
		return "", time.Time{}, utils.ErrInvalidCredentials
	}

	if !user.IsActive {
		log.Warn().Str("email", email).Msg("Account is inactive")
		return "", time.Time{}, utils.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Warn().Str("email", email).Msg("Password verification failed")
		return "", time.Time{}, utils.ErrInvalidCredentials
	}

	token, expiresAt, err := utils.GenerateJWT(user.ID, user.Email)
	if err != nil {
		return "", time.Time{}, err
	}

	if err := s.admins.TouchLastLogin(ctx, user.ID); err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("Failed to record last login")
	}
	log.Info().Str("email", email).Msg("Login successful")
	return token, expiresAt, nil
}

// CreateAdmin stores a new active admin with a bcrypt password hash.
func (s *AdminAuthService) CreateAdmin(ctx context.Context, email, password, name string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := &models.AdminUser{
		Email:        email,
		PasswordHash: string(hashedPassword),
		Name:         name,
		IsActive:     true,
	}
	return s.admins.Create(ctx, user)
}
