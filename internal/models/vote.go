package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Vote 已提交、不可修改的投票
// (session, question, fingerprint) 唯一索引是去重的最终依据
type Vote struct {
	ID                     string    `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID              string    `gorm:"type:uuid;not null;uniqueIndex:idx_votes_participant,priority:1;index" json:"sessionId"`
	QuestionID             string    `gorm:"type:uuid;not null;uniqueIndex:idx_votes_participant,priority:2" json:"questionId"`
	OptionID               string    `gorm:"type:uuid;not null;index" json:"optionId"`
	ParticipantFingerprint string    `gorm:"size:64;not null;uniqueIndex:idx_votes_participant,priority:3" json:"-"`
	VotedAt                time.Time `gorm:"not null" json:"votedAt"`

	Session  Session  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Question Question `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Option   Option   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.VotedAt.IsZero() {
		v.VotedAt = time.Now()
	}
	return nil
}

// VoteCount 单个选项的计票，首次计票时创建
type VoteCount struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID  string    `gorm:"type:uuid;not null;uniqueIndex:idx_vote_counts_option,priority:1" json:"sessionId"`
	QuestionID string    `gorm:"type:uuid;not null;uniqueIndex:idx_vote_counts_option,priority:2" json:"questionId"`
	OptionID   string    `gorm:"type:uuid;not null;uniqueIndex:idx_vote_counts_option,priority:3" json:"optionId"`
	Count      int64     `gorm:"not null;default:0" json:"count"`
	UpdatedAt  time.Time `json:"updatedAt"`

	Session  Session  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Question Question `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Option   Option   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

func (c *VoteCount) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// PendingVote 尚未提交的投票在队列中的格式
type PendingVote struct {
	SessionID              string `json:"sessionId"`
	QuestionID             string `json:"questionId"`
	OptionID               string `json:"optionId"`
	ParticipantFingerprint string `json:"participantFingerprint"`
}

// Vote 把队列条目转换为待插入的行
func (p PendingVote) Vote() Vote {
	return Vote{
		SessionID:              p.SessionID,
		QuestionID:             p.QuestionID,
		OptionID:               p.OptionID,
		ParticipantFingerprint: p.ParticipantFingerprint,
	}
}
