package service

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/util"
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserService 用户画像查询与更新
type UserService struct {
	users UserStore
}

func NewUserService(users UserStore) *UserService {
	return &UserService{users: users}
}

func (s *UserService) GetProfile(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, util.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}
	return user, nil
}

type ProfileUpdate struct {
	Name          *string
	AcademicLevel *model.AcademicLevel
	Subjects      *[]string
	StudyStyle    *model.StudyStyle
}

// UpdateProfile 局部更新画像，nil字段不动
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, update ProfileUpdate) (*model.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, fmt.Errorf("name cannot be empty")
		}
		user.Name = name
	}
	if update.AcademicLevel != nil {
		user.AcademicLevel = *update.AcademicLevel
	}
	if update.Subjects != nil {
		user.Subjects = *update.Subjects
	}
	if update.StudyStyle != nil {
		user.StudyStyle = *update.StudyStyle
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}
	return user, nil
}
