package queue

const (
	TypeNodeRun = "node:run"
)

type NodeRunPayload struct {
	NodeID string `json:"node_id"`
	UserID string `json:"user_id,omitempty"`
}
