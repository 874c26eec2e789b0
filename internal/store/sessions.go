package store

import (
	"context"
	"strings"

	"livepoll/internal/models"

	"emperror.dev/errors"
	"gorm.io/gorm"
)

type SessionStore struct {
	db *gorm.DB
}

func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

func orderedQuestions(db *gorm.DB) *gorm.DB {
	return db.Order("question_order ASC, created_at ASC")
}

func orderedOptions(db *gorm.DB) *gorm.DB {
	return db.Order("option_order ASC, created_at ASC")
}

func (s *SessionStore) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var session models.Session
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

func (s *SessionStore) FindByJoinCode(ctx context.Context, joinCode string) (*models.Session, error) {
	var session models.Session
	err := s.db.WithContext(ctx).
		Where("join_code = ?", strings.ToUpper(joinCode)).
		First(&session).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

func (s *SessionStore) ListQuestions(ctx context.Context, sessionID string) ([]models.Question, error) {
	var questions []models.Question
	err := orderedQuestions(s.db.WithContext(ctx)).
		Preload("Options", orderedOptions).
		Where("session_id = ?", sessionID).
		Find(&questions).Error
	if err != nil {
		return nil, errors.WrapIf(err, "failed to list questions")
	}
	return questions, nil
}

func (s *SessionStore) FindQuestion(ctx context.Context, id string) (*models.Question, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var question models.Question
	err := s.db.WithContext(ctx).
		Preload("Options", orderedOptions).
		Where("id = ?", id).
		First(&question).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &question, nil
}

func (s *SessionStore) JoinCodeExists(ctx context.Context, joinCode string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Session{}).Where("join_code = ?", joinCode).Count(&count).Error
	if err != nil {
		return false, errors.WrapIf(err, "failed to check join code")
	}
	return count > 0, nil
}

// Create 同时插入会话、题目和选项
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return errors.WrapIf(err, "failed to create session")
	}
	return nil
}

// UpdateStatus 仅当会话仍处于 from 状态时才改为 to
func (s *SessionStore) UpdateStatus(ctx context.Context, id string, from, to models.SessionStatus) error {
	if !validID(id) {
		return ErrNotFound
	}
	res := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return errors.WrapIf(res.Error, "failed to update session status")
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// 没有更新到行：区分会话不存在与状态已变
	if _, err := s.FindByID(ctx, id); err != nil {
		return err
	}
	return ErrStatusChanged
}

// Delete 删除会话及其全部关联数据
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&models.Vote{}).Error; err != nil {
			return errors.WrapIf(err, "failed to delete votes")
		}
		if err := tx.Where("session_id = ?", id).Delete(&models.VoteCount{}).Error; err != nil {
			return errors.WrapIf(err, "failed to delete vote counts")
		}
		questionIDs := tx.Model(&models.Question{}).Select("id").Where("session_id = ?", id)
		if err := tx.Where("question_id IN (?)", questionIDs).Delete(&models.Option{}).Error; err != nil {
			return errors.WrapIf(err, "failed to delete options")
		}
		if err := tx.Where("session_id = ?", id).Delete(&models.Question{}).Error; err != nil {
			return errors.WrapIf(err, "failed to delete questions")
		}
		res := tx.Where("id = ?", id).Delete(&models.Session{})
		if res.Error != nil {
			return errors.WrapIf(res.Error, "failed to delete session")
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
