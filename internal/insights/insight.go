package insights

import "time"

// Insight is one generated piece of coaching text tied to a user.
type Insight struct {
	ID          int       `json:"id"`
	UserID      string    `json:"userId"`
	Content     string    `json:"content"`
	InsightType string    `json:"insightType"`
	IsRead      bool      `json:"isRead"`
	GeneratedAt time.Time `json:"generatedAt"`
}
