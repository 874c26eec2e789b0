package models

const MaxVotesPerRequest = 50

// 请求结构

type VoteInput struct {
	QuestionID string `json:"questionId" binding:"required"`
	OptionID   string `json:"optionId" binding:"required"`
}

type SubmitVotesRequest struct {
	Votes []VoteInput `json:"votes" binding:"dive"`
}

type CreateOptionRequest struct {
	Text string `json:"text" binding:"required,max=255"`
}

type CreateQuestionRequest struct {
	Text    string                `json:"text" binding:"required"`
	Options []CreateOptionRequest `json:"options" binding:"required,min=2,max=20,dive"`
}

type CreateSessionRequest struct {
	Title       string                  `json:"title" binding:"required,max=255"`
	Description string                  `json:"description"`
	Questions   []CreateQuestionRequest `json:"questions" binding:"required,min=1,max=50,dive"`
}

type UpdateStatusRequest struct {
	Status SessionStatus `json:"status" binding:"required,oneof=draft active stopped closed"`
}

// 响应结构

type SubmitVotesResponse struct {
	Queued    int    `json:"queued"`
	SessionID string `json:"sessionId"`
}

type QuestionVotingStatus struct {
	QuestionID string `json:"questionId"`
	HasVoted   bool   `json:"hasVoted"`
}

type VotingStatus struct {
	SessionID string                 `json:"sessionId"`
	Questions []QuestionVotingStatus `json:"questions"`
}

type PublicSession struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	DescriptionHTML string        `json:"descriptionHtml"`
	JoinCode        string        `json:"joinCode"`
	Status          SessionStatus `json:"status"`
	Questions       []Question    `json:"questions"`
}

type QueueStatus struct {
	SessionID string `json:"sessionId"`
	Pending   int    `json:"pending"`
}
