package models

const (
	EventConnected      = "connected"
	EventInitialResults = "initial_results"
	EventVoteUpdate     = "vote_update"
	EventCountsReset    = "counts_reset"
)

// ChangeEvent 计票变化后发布到 results:<sessionId>，订阅方原样转发，不落库
type ChangeEvent struct {
	Type       string      `json:"type"`
	SessionID  string      `json:"sessionId"`
	QuestionID string      `json:"questionId,omitempty"`
	Data       interface{} `json:"data,omitempty"`
}

// OptionDelta vote_update 事件的数据
type OptionDelta struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
	Votes      int64  `json:"votes"`
}

// StreamMessage 写入实时连接的消息
type StreamMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

type SessionConnections struct {
	SessionID   string `json:"sessionId"`
	Connections int    `json:"connections"`
}

type ConnectionStats struct {
	TotalSessions    int                  `json:"totalSessions"`
	TotalConnections int                  `json:"totalConnections"`
	Sessions         []SessionConnections `json:"sessions"`
}
