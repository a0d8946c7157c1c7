package models

import "time"

// Message is a single team message as delivered by the chat subsystem.
// Messages are immutable once ingested; the engine only reads them. Signals
// may be attached after asynchronous extraction.
type Message struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	AuthorID  string        `json:"author_id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Signals   *SignalRecord `json:"signals,omitempty"`
}

// TeamContext carries the team/session facts the threshold calculator and the
// latch precondition depend on. Supplied by the external context provider.
type TeamContext struct {
	TeamID            string    `json:"team_id"`
	ProjectID         string    `json:"project_id"`
	TeamCreatedAt     time.Time `json:"team_created_at"`
	TotalMessageCount int       `json:"total_message_count"`
	ParticipantCount  int       `json:"participant_count"`
}

// TeamAgeDays returns the team age in whole days relative to now.
func (c TeamContext) TeamAgeDays(now time.Time) int {
	if c.TeamCreatedAt.IsZero() || now.Before(c.TeamCreatedAt) {
		return 0
	}
	return int(now.Sub(c.TeamCreatedAt).Hours() / 24)
}
