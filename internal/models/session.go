package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionStatus string

const (
	SessionDraft   SessionStatus = "draft"
	SessionActive  SessionStatus = "active"
	SessionStopped SessionStatus = "stopped"
	SessionClosed  SessionStatus = "closed"
)

// Valid 是否为已知的生命周期状态
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionDraft, SessionActive, SessionStopped, SessionClosed:
		return true
	}
	return false
}

// AcceptsVotes 只有进行中的会话接受投票
func (s SessionStatus) AcceptsVotes() bool {
	return s == SessionActive
}

type Session struct {
	ID          string        `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string        `gorm:"size:255;not null" json:"title"`
	Description string        `gorm:"type:text" json:"description"`
	JoinCode    string        `gorm:"size:8;uniqueIndex;not null" json:"joinCode"`
	Status      SessionStatus `gorm:"type:varchar(16);not null;default:'draft';index" json:"status"`
	Questions   []Question    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"questions,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

type Question struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID string    `gorm:"type:uuid;not null;index" json:"sessionId"`
	Text      string    `gorm:"column:question_text;type:text;not null" json:"text"`
	Order     int       `gorm:"column:question_order;not null;default:0" json:"order"`
	Options   []Option  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"options,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

type Option struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	QuestionID string    `gorm:"type:uuid;not null;index" json:"questionId"`
	Text       string    `gorm:"column:option_text;size:255;not null" json:"text"`
	Order      int       `gorm:"column:option_order;not null;default:0" json:"order"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (o *Option) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}
