package domain

import "encoding/json"

// Wire messages exchanged on the per-session sync channel between the host
// and the presentation display. Every message is self-describing: commands
// carry absolute target values, never deltas, so duplicate or out-of-order
// delivery degrades gracefully.

const (
	MessageTypeCommand       = "command"
	MessageTypeSlideUpdate   = "slide_update"
	MessageTypeStatus        = "status"
	MessageTypeJoinInfo      = "join_info"
	MessageTypeJoinInfoClose = "join_info_close"
)

// MessageHeader is the part of every sync message peeked at before full
// decoding: dispatch by type, discard on session mismatch.
type MessageHeader struct {
	Type      string `json:"type"`
	SessionId string `json:"session_id"`
}

type CommandAction string

const (
	ActionPlay              CommandAction = "play"
	ActionPause             CommandAction = "pause"
	ActionSeek              CommandAction = "seek"
	ActionReset             CommandAction = "reset"
	ActionDecisionReset     CommandAction = "decision_reset"
	ActionSync              CommandAction = "sync"
	ActionVolume            CommandAction = "volume"
	ActionClosePresentation CommandAction = "close_presentation"
	ActionVideoStatusPoll   CommandAction = "video_status_poll"
	ActionScroll            CommandAction = "scroll"
)

type CommandData struct {
	Time         *float64 `json:"time,omitempty"`
	Volume       *float64 `json:"volume,omitempty"`
	Muted        *bool    `json:"muted,omitempty"`
	PlaybackRate *float64 `json:"playback_rate,omitempty"`
	ScrollTop    *float64 `json:"scroll_top,omitempty"`
}

type Command struct {
	Type      string        `json:"type"`
	SessionId string        `json:"session_id"`
	CommandId string        `json:"command_id"`
	Action    CommandAction `json:"action"`
	Data      CommandData   `json:"data"`
	Timestamp int64         `json:"timestamp"`
}

type SlideUpdate struct {
	Type      string            `json:"type"`
	SessionId string            `json:"session_id"`
	Slide     Slide             `json:"slide"`
	TeamData  *TeamDataSnapshot `json:"team_data,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

const (
	StatusPing         = "ping"
	StatusPong         = "pong"
	StatusReady        = "ready"
	StatusVideoReady   = "video_ready"
	StatusVideoEnded   = "video_ended"
	StatusDisconnect   = "disconnect"
	StatusSessionEnded = "session_ended"
)

// StatusMessage flows presentation -> host, except ping which either side may
// originate. SentAt echoes the originating probe's send timestamp so the
// prober can compute round-trip latency.
type StatusMessage struct {
	Type      string          `json:"type"`
	SessionId string          `json:"session_id"`
	Status    string          `json:"status"`
	Role      string          `json:"role"`
	SentAt    int64           `json:"sent_at,omitempty"`
	Video     *VideoStateInfo `json:"video,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type VideoStateInfo struct {
	IsPlaying   bool    `json:"is_playing"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	Volume      float64 `json:"volume"`
	IsMuted     bool    `json:"is_muted"`
	IsReady     bool    `json:"is_ready"`
}

type JoinInfo struct {
	Type      string `json:"type"`
	SessionId string `json:"session_id"`
	URL       string `json:"url"`
	QRDataURL string `json:"qr_data_url"`
	Timestamp int64  `json:"timestamp"`
}

// TeamEvent is pushed to team devices over the server-relayed realtime
// channel, not the local sync channel.
type TeamEvent struct {
	Name      string          `json:"name"`
	SessionId string          `json:"session_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}
