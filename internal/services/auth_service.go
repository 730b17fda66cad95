package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"agriconnect/internal/domain"
	applog "agriconnect/internal/log"
	"agriconnect/internal/repos"
	"agriconnect/internal/validate"
)

type AuthService struct {
	Users *repos.UserRepo
	Cost  int
	Now   func() time.Time
}

func NewAuthService(users *repos.UserRepo, cost int) *AuthService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = 12
	}
	return &AuthService{Users: users, Cost: cost, Now: func() time.Time { return time.Now().UTC() }}
}

type RegisterInput struct {
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Password     string   `json:"password"`
	Role         string   `json:"role"`
	LocationLat  *float64 `json:"locationLat"`
	LocationLng  *float64 `json:"locationLng"`
	LocationText string   `json:"locationText"`
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, string, error) {
	name, ok := validate.Name(in.Name)
	if !ok {
		return nil, "", fmt.Errorf("%w: name must be 1-60 characters", domain.ErrValidation)
	}
	email, ok := validate.Email(in.Email)
	if !ok {
		return nil, "", fmt.Errorf("%w: email is not valid", domain.ErrValidation)
	}
	if !validate.Password(in.Password) {
		return nil, "", fmt.Errorf("%w: password must be 8-64 characters", domain.ErrValidation)
	}
	role, ok := validate.Role(in.Role)
	if !ok {
		return nil, "", fmt.Errorf("%w: role must be farmer or consumer", domain.ErrValidation)
	}
	if !validate.Coordinates(in.LocationLat, in.LocationLng) {
		return nil, "", fmt.Errorf("%w: locationLat and locationLng must be given together and in range", domain.ErrValidation)
	}
	if len(in.LocationText) > 200 {
		return nil, "", fmt.Errorf("%w: locationText too long", domain.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.Cost)
	if err != nil {
		return nil, "", err
	}
	u := &domain.User{
		Name:         name,
		Email:        email,
		Hash:         string(hash),
		Role:         role,
		LocationLat:  in.LocationLat,
		LocationLng:  in.LocationLng,
		LocationText: in.LocationText,
		CreatedAt:    s.Now(),
	}
	if err := s.Users.Create(ctx, u); err != nil {
		return nil, "", storeErr(err)
	}
	token, err := s.newSession(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	u, err := s.Users.ByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", domain.ErrBadCreds
	}
	if err != nil {
		return nil, "", storeErr(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return nil, "", domain.ErrBadCreds
	}
	token, err := s.newSession(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *AuthService) newSession(ctx context.Context, userID int64) (string, error) {
	token := uuid.NewString()
	if err := s.Users.BindSession(ctx, token, userID, s.Now()); err != nil {
		return "", storeErr(err)
	}
	return token, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	return storeErr(s.Users.DeleteSession(ctx, token))
}

// CurrentUser resolves a session token; unknown tokens return (nil, nil).
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, nil
	}
	u, err := s.Users.SessionUser(ctx, token)
	if err != nil {
		return nil, storeErr(err)
	}
	if u != nil {
		if err := s.Users.TouchSession(ctx, token, s.Now()); err != nil {
			applog.Background("session.touch", err, map[string]any{"user_id": u.ID})
		}
	}
	return u, nil
}
