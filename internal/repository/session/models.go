package session

type Session struct {
	JoinCode       string `redis:"join_code"`
	Facilitator    string `redis:"facilitator"`
	CurrentSlideId int    `redis:"current_slide_id"`
	Phase          string `redis:"phase"`
	CreatedAt      int64  `redis:"created_at"`
}

type SetSessionParams struct {
	SessionId      string
	JoinCode       string
	Facilitator    string
	CurrentSlideId int
	Phase          string
	CreatedAt      int64
}

// UpdateSessionParams is a patch: nil fields are left untouched.
type UpdateSessionParams struct {
	SessionId      string
	CurrentSlideId *int
	Phase          *string
	Facilitator    *string
}

type Team struct {
	Name  string `redis:"name"`
	Color string `redis:"color"`
}

type SetTeamParams struct {
	TeamId    string
	SessionId string
	Name      string
	Color     string
}

type RemoveTeamParams struct {
	TeamId    string
	SessionId string
}

type Decision struct {
	TeamId      string `redis:"team_id"`
	SlideId     int    `redis:"slide_id"`
	Round       int    `redis:"round"`
	Choice      string `redis:"choice"`
	SubmittedAt int64  `redis:"submitted_at"`
}

type AddDecisionParams struct {
	DecisionId  string
	SessionId   string
	TeamId      string
	SlideId     int
	Round       int
	Choice      string
	SubmittedAt int64
}

type SetRoundDataParams struct {
	TeamId string
	Round  int
	KPIs   map[string]float64
}
