package broadcast

const (
	TypeNewUserJoined = "new_user_joined"
	TypeSyncAction    = "sync_action"
	TypeUpdateTime    = "update_time"
)

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type NewUserJoinedPayload struct {
	SessionCode string `json:"session_code"`
}

type SyncActionPayload struct {
	SessionCode string  `json:"session_code"`
	Action      string  `json:"action"`
	CurrentTime float64 `json:"currentTime"`
}

type UpdateTimePayload struct {
	CurrentTime float64 `json:"currentTime"`
}
