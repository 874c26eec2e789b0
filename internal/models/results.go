package models

import "time"

type OptionResult struct {
	OptionID   string  `json:"optionId"`
	Text       string  `json:"text"`
	Order      int     `json:"order"`
	Votes      int64   `json:"votes"`
	Percentage float64 `json:"percentage"`
}

type QuestionResult struct {
	QuestionID string         `json:"questionId"`
	Text       string         `json:"text"`
	Order      int            `json:"order"`
	TotalVotes int64          `json:"totalVotes"`
	Options    []OptionResult `json:"options"`
}

// SessionResults 提供给观众的结果，会被短暂缓存
type SessionResults struct {
	SessionID          string           `json:"sessionId"`
	Title              string           `json:"title"`
	Status             SessionStatus    `json:"status"`
	TotalVotes         int64            `json:"totalVotes"`
	UniqueParticipants int64            `json:"uniqueParticipants"`
	Questions          []QuestionResult `json:"questions"`
	LastUpdated        time.Time        `json:"lastUpdated"`
}

type QuestionAnalytics struct {
	QuestionID            string  `json:"questionId"`
	Text                  string  `json:"text"`
	TotalVotes            int64   `json:"totalVotes"`
	ResponseRate          float64 `json:"responseRate"`
	MostPopularOption     string  `json:"mostPopularOption"`
	MostPopularVotes      int64   `json:"mostPopularVotes"`
	MostPopularPercentage float64 `json:"mostPopularPercentage"`
}

type AnalyticsSummary struct {
	TotalVotes          int64   `json:"totalVotes"`
	UniqueParticipants  int64   `json:"uniqueParticipants"`
	TotalQuestions      int     `json:"totalQuestions"`
	AverageResponseRate float64 `json:"averageResponseRate"`
}

type SessionAnalytics struct {
	SessionID string              `json:"sessionId"`
	Title     string              `json:"title"`
	Status    SessionStatus       `json:"status"`
	Summary   AnalyticsSummary    `json:"summary"`
	Questions []QuestionAnalytics `json:"questions"`
}

// CountRow 汇总只需要的 vote_counts 字段
type CountRow struct {
	QuestionID string
	OptionID   string
	Count      int64
}

type ParticipationSummary struct {
	TotalVotes         int64
	UniqueParticipants int64
}
