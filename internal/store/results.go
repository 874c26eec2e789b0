package store

import (
	"context"

	"livepoll/internal/models"

	"emperror.dev/errors"
	"gorm.io/gorm"
)

// ResultStore 读取计票，供汇总时与题目信息合并
type ResultStore struct {
	db *gorm.DB
}

func NewResultStore(db *gorm.DB) *ResultStore {
	return &ResultStore{db: db}
}

func (s *ResultStore) SessionCounts(ctx context.Context, sessionID string) ([]models.CountRow, error) {
	var rows []models.CountRow
	err := s.db.WithContext(ctx).Model(&models.VoteCount{}).
		Select("question_id, option_id, vote_counts.count").
		Where("session_id = ?", sessionID).
		Scan(&rows).Error
	if err != nil {
		return nil, errors.WrapIf(err, "failed to load vote counts")
	}
	return rows, nil
}

func (s *ResultStore) QuestionCounts(ctx context.Context, questionID string) ([]models.CountRow, error) {
	var rows []models.CountRow
	err := s.db.WithContext(ctx).Model(&models.VoteCount{}).
		Select("question_id, option_id, vote_counts.count").
		Where("question_id = ?", questionID).
		Scan(&rows).Error
	if err != nil {
		return nil, errors.WrapIf(err, "failed to load question counts")
	}
	return rows, nil
}

// Participation 汇总总票数，并统计已提交投票中不同指纹的数量
func (s *ResultStore) Participation(ctx context.Context, sessionID string) (models.ParticipationSummary, error) {
	var summary models.ParticipationSummary
	err := s.db.WithContext(ctx).Model(&models.VoteCount{}).
		Select("CAST(COALESCE(SUM(vote_counts.count), 0) AS BIGINT)").
		Where("session_id = ?", sessionID).
		Scan(&summary.TotalVotes).Error
	if err != nil {
		return summary, errors.WrapIf(err, "failed to sum vote counts")
	}
	err = s.db.WithContext(ctx).Model(&models.Vote{}).
		Where("session_id = ?", sessionID).
		Distinct("participant_fingerprint").
		Count(&summary.UniqueParticipants).Error
	if err != nil {
		return summary, errors.WrapIf(err, "failed to count participants")
	}
	return summary, nil
}
