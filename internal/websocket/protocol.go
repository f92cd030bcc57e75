package websocket

// 入站消息类型
const (
	InboundLocation       = "loc"
	InboundPaintball      = "paintball"
	InboundStartRecording = "start_recording"
	InboundStopRecording  = "stop_recording"
)

// InboundMessage 客户端上行消息
// 单个JSON对象为一条消息，按type区分，未用字段为零值。
type InboundMessage struct {
	Type string `json:"type"`

	// loc
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
	Speed    float64 `json:"speed"`

	// paintball
	PaintballType string `json:"paintball_type"`
	TargetH3ID    string `json:"target_h3_id"`
}
