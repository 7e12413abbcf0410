package service

import (
	"ai_tutor_backend/internal/config"
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/util"
	"ai_tutor_backend/pkg/logger"
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserStore 用户存储
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id uint) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	UpdateLastLogin(ctx context.Context, userID uint) error
}

// AuthService 注册与登录
type AuthService struct {
	users UserStore
	cfg   config.JWTConfig
}

func NewAuthService(users UserStore, cfg config.JWTConfig) *AuthService {
	return &AuthService{users: users, cfg: cfg}
}

type RegisterInput struct {
	Name          string
	Email         string
	Password      string
	AcademicLevel model.AcademicLevel
	Subjects      []string
	StudyStyle    model.StudyStyle
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*model.User, string, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, "", util.ErrEmailRegistered
	} else if !errors.Is(err, util.ErrUserNotFound) {
		return nil, "", fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	user := &model.User{
		Name:          strings.TrimSpace(input.Name),
		Email:         email,
		Password:      string(hashed),
		AcademicLevel: input.AcademicLevel,
		Subjects:      input.Subjects,
		StudyStyle:    input.StudyStyle,
	}
	if user.AcademicLevel == "" {
		user.AcademicLevel = model.Undergraduate
	}
	if user.StudyStyle == "" {
		user.StudyStyle = model.Mixed
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, util.ErrEmailRegistered) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}

	token, err := util.GenerateJWT(user, s.cfg.Secret, s.cfg.ExpireTime)
	if err != nil {
		return nil, "", err
	}

	logger.Log.Info("user registered",
		zap.Uint("user_id", user.ID),
		zap.String("email", user.Email))
	return user, token, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, util.ErrUserNotFound) {
			return nil, "", util.ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", util.ErrInvalidCredentials
	}

	token, err := util.GenerateJWT(user, s.cfg.Secret, s.cfg.ExpireTime)
	if err != nil {
		return nil, "", err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		logger.Log.Warn("failed to update last login",
			zap.Uint("user_id", user.ID), zap.Error(err))
	}

	return user, token, nil
}
