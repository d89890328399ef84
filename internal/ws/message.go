package ws

// Лента событий комнат односторонняя: клиенты только подписываются,
// все мутации идут через HTTP API.
type EventType string

const (
	EventRoomCreated         EventType = "room_created"
	EventRoomUpdated         EventType = "room_updated"
	EventRoomDeleted         EventType = "room_deleted"
	EventMemberJoined        EventType = "member_joined"
	EventMemberLeft          EventType = "member_left"
	EventInvitationCreated   EventType = "invitation_created"
	EventInvitationWithdrawn EventType = "invitation_withdrawn"
	EventInvitationRejected  EventType = "invitation_rejected"
	EventUserBlocked         EventType = "user_blocked"
	EventUserUnblocked       EventType = "user_unblocked"
	EventError               EventType = "error"
)

// Event — сообщение сервера клиенту.
// Payload использует типизированные структуры, не map[string]any.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// RoomEventPayload — общее событие изменения комнаты.
type RoomEventPayload struct {
	RoomID  string `json:"room_id"`
	ActorID string `json:"actor_id,omitempty"`
}

// MembershipPayload — вход/выход участника.
type MembershipPayload struct {
	RoomID  string `json:"room_id"`
	UserID  string `json:"user_id"`
	ActorID string `json:"actor_id,omitempty"`
}

// InvitationPayload — приглашение создано, отозвано или отклонено.
type InvitationPayload struct {
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id"`
	ActorID  string `json:"actor_id,omitempty"`
	RoomName string `json:"room_name,omitempty"`
}

// BlockPayload — пользователь заблокирован или разблокирован мастером.
type BlockPayload struct {
	RoomID  string `json:"room_id"`
	UserID  string `json:"user_id"`
	ActorID string `json:"actor_id,omitempty"`
}
