package store

import (
	"context"
	"time"

	"livepoll/internal/models"

	"emperror.dev/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommitResult 单次 CommitVote 的结果
type CommitResult struct {
	// Duplicate 参与者对该题已有投票
	Duplicate bool
	// Votes 计票后该选项的票数
	Votes int64
}

type VoteStore struct {
	db *gorm.DB
}

func NewVoteStore(db *gorm.DB) *VoteStore {
	return &VoteStore{db: db}
}

// CommitVote 参与者对该题没有投票时插入，并在同一事务中由数据库完成计票 +1
func (s *VoteStore) CommitVote(ctx context.Context, pending models.PendingVote) (CommitResult, error) {
	var result CommitResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		vote := pending.Vote()
		ins := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "session_id"}, {Name: "question_id"}, {Name: "participant_fingerprint"},
			},
			DoNothing: true,
		}).Create(&vote)
		if ins.Error != nil {
			return errors.WrapIf(ins.Error, "failed to insert vote")
		}
		if ins.RowsAffected == 0 {
			result.Duplicate = true
			return nil
		}

		now := time.Now()
		count := models.VoteCount{
			SessionID:  pending.SessionID,
			QuestionID: pending.QuestionID,
			OptionID:   pending.OptionID,
			Count:      1,
			UpdatedAt:  now,
		}
		err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "session_id"}, {Name: "question_id"}, {Name: "option_id"},
			},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count":      gorm.Expr("vote_counts.count + ?", 1),
				"updated_at": now,
			}),
		}).Create(&count).Error
		if err != nil {
			return errors.WrapIf(err, "failed to increment vote count")
		}

		var current models.VoteCount
		err = tx.Where("session_id = ? AND question_id = ? AND option_id = ?",
			pending.SessionID, pending.QuestionID, pending.OptionID).
			Take(&current).Error
		if err != nil {
			return errors.WrapIf(err, "failed to read vote count")
		}
		result.Votes = current.Count
		return nil
	})
	return result, err
}

// VotedQuestions 列出参与者已提交投票的题目
func (s *VoteStore) VotedQuestions(ctx context.Context, sessionID, fingerprint string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Where("session_id = ? AND participant_fingerprint = ?", sessionID, fingerprint).
		Pluck("question_id", &ids).Error
	if err != nil {
		return nil, errors.WrapIf(err, "failed to list voted questions")
	}
	return ids, nil
}

// ResetCounts 会话计票清零，保留投票记录
func (s *VoteStore) ResetCounts(ctx context.Context, sessionID string) error {
	err := s.db.WithContext(ctx).Model(&models.VoteCount{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{"count": 0, "updated_at": time.Now()}).Error
	if err != nil {
		return errors.WrapIf(err, "failed to reset vote counts")
	}
	return nil
}
