package territory

// 推送事件类型
const (
	EventConnectionEstablished = "connection_established"
	EventLocationUpdate        = "location_update"
	EventHexClaimed            = "hex_claimed"
	EventLoopComplete          = "loop_complete"
	EventPaintballUsed         = "paintball_used"
	EventScoreUpdate           = "score_update"
	EventRecordingStarted      = "recording_started"
	EventRecordingStopped      = "recording_stopped"
	EventGameEnded             = "game_ended"
	EventError                 = "error"
)

// LocationUpdatePayload 位置广播
type LocationUpdatePayload struct {
	ParticipantID uint    `json:"participant_id"`
	Team          string  `json:"team"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	CellID        string  `json:"cell_id,omitempty"`
	Timestamp     int64   `json:"timestamp"`
}

// HexClaimedPayload 占领广播
type HexClaimedPayload struct {
	ParticipantID uint   `json:"participant_id"`
	Team          string `json:"team"`
	CellID        string `json:"cell_id"`
	Source        string `json:"source"`
	Timestamp     int64  `json:"timestamp"`
}

// LoopCompletePayload 环路完成广播
type LoopCompletePayload struct {
	Team          string   `json:"team"`
	LoopCells     []string `json:"loop_cells"`
	InteriorCells []string `json:"interior_cells"`
	ClaimedCount  int      `json:"claimed_count"`
	Timestamp     int64    `json:"timestamp"`
}

// PaintballUsedPayload 弹药使用广播
type PaintballUsedPayload struct {
	ParticipantID  uint   `json:"participant_id"`
	Team           string `json:"team"`
	PaintballType  string `json:"paintball_type"`
	TargetCellID   string `json:"target_cell_id"`
	RemainingCount int    `json:"remaining_count"`
	Timestamp      int64  `json:"timestamp"`
}

// ScoreUpdatePayload 比分广播
type ScoreUpdatePayload struct {
	TeamACount int   `json:"team_a_count"`
	TeamBCount int   `json:"team_b_count"`
	Timestamp  int64 `json:"timestamp"`
}

// RecordingStartedPayload 跑步开始（仅发起者）
type RecordingStartedPayload struct {
	RecordID  uint  `json:"record_id"`
	StartedAt int64 `json:"started_at"`
}

// RecordingStoppedPayload 跑步结束（仅发起者）
type RecordingStoppedPayload struct {
	RecordID uint    `json:"record_id"`
	Duration int64   `json:"duration"`
	Distance float64 `json:"distance"`
	Pace     float64 `json:"pace"`
}

// GameEndedPayload 游戏结束广播
type GameEndedPayload struct {
	WinnerTeam  *string `json:"winner_team"`
	MVPID       *uint   `json:"mvp_id"`
	MVPUsername string  `json:"mvp_username,omitempty"`
	TeamACount  int     `json:"team_a_count"`
	TeamBCount  int     `json:"team_b_count"`
	Timestamp   int64   `json:"timestamp"`
}

// ErrorPayload 错误事件（仅发起者）
type ErrorPayload struct {
	Message string `json:"message"`
}
