package domain

type Session struct {
	Id             string `json:"id"`
	JoinCode       string `json:"join_code"`
	Facilitator    string `json:"facilitator"`
	CurrentSlideId int    `json:"current_slide_id"`
	Phase          Phase  `json:"phase"`
	CreatedAt      int64  `json:"created_at"`
}
