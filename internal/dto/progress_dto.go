package dto

// QuestionProgress summarises a learner's attempts at one question.
type QuestionProgress struct {
	QuestionID        uint     `json:"question_id"`
	Attempts          int      `json:"attempts"`
	AttemptsRemaining int      `json:"attempts_remaining"`
	BestScore         *float64 `json:"best_score,omitempty"`
	LastStatus        string   `json:"last_status"`
}

// LearnerProgressResponse aggregates a learner's submission activity.
type LearnerProgressResponse struct {
	TotalSubmissions int                `json:"total_submissions"`
	Evaluated        int                `json:"evaluated"`
	Published        int                `json:"published"`
	Pending          int                `json:"pending"`
	Questions        []QuestionProgress `json:"questions"`
}
