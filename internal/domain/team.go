package domain

type Team struct {
	Id        string `json:"id"`
	SessionId string `json:"session_id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
}

// TeamRoundData is one team's KPI snapshot for one game round.
type TeamRoundData struct {
	TeamId string             `json:"team_id"`
	Round  int                `json:"round"`
	KPIs   map[string]float64 `json:"kpis"`
}

type Decision struct {
	Id          string `json:"id"`
	SessionId   string `json:"session_id"`
	TeamId      string `json:"team_id"`
	SlideId     int    `json:"slide_id"`
	Round       int    `json:"round"`
	Choice      string `json:"choice"`
	SubmittedAt int64  `json:"submitted_at"`
}

// TeamDataSnapshot travels with slide updates so a newly connected display
// can render standings without a separate fetch.
type TeamDataSnapshot struct {
	Teams     []Team          `json:"teams"`
	Rounds    []TeamRoundData `json:"rounds"`
	Decisions []Decision      `json:"decisions"`
}
