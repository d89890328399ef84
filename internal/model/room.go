package model

// RoomKind — тип комнаты. Заменяет пару взаимоисключающих boolean-флагов
// single/group из старой схемы: enum исключает невалидную комбинацию.
type RoomKind string

const (
	RoomKindSingle RoomKind = "single"
	RoomKindGroup  RoomKind = "group"
)

// AnonymousID — идентификатор неаутентифицированного запроса.
const AnonymousID = "anonymous"

// UserMeta — запись участника в комнате: поля сортировки и счётчик
// непрочитанных. Имена в JSON короткие — формат документа совпадает с
// форматом хранения.
type UserMeta struct {
	Order           int64 `json:"o,omitempty"`
	TimeOrder       int64 `json:"tO,omitempty"`
	SingleOrder     int64 `json:"sO,omitempty"`
	SingleTimeOrder int64 `json:"sTO,omitempty"`
	GroupOrder      int64 `json:"gO,omitempty"`
	GroupTimeOrder  int64 `json:"gTO,omitempty"`
	NewMessageCount int64 `json:"nMC"`
}

// Meta-поля участника (ключи в UserMeta).
const (
	MetaOrder           = "o"
	MetaTimeOrder       = "tO"
	MetaSingleOrder     = "sO"
	MetaSingleTimeOrder = "sTO"
	MetaGroupOrder      = "gO"
	MetaGroupTimeOrder  = "gTO"
	MetaNewMessageCount = "nMC"
)

// MetaValue возвращает значение meta-поля по его wire-имени.
func (m UserMeta) MetaValue(field string) (int64, bool) {
	switch field {
	case MetaOrder:
		return m.Order, true
	case MetaTimeOrder:
		return m.TimeOrder, true
	case MetaSingleOrder:
		return m.SingleOrder, true
	case MetaSingleTimeOrder:
		return m.SingleTimeOrder, true
	case MetaGroupOrder:
		return m.GroupOrder, true
	case MetaGroupTimeOrder:
		return m.GroupTimeOrder, true
	case MetaNewMessageCount:
		return m.NewMessageCount, true
	}
	return 0, false
}

// SetMetaValue устанавливает meta-поле по wire-имени. false — имя неизвестно.
func (m *UserMeta) SetMetaValue(field string, v int64) bool {
	switch field {
	case MetaOrder:
		m.Order = v
	case MetaTimeOrder:
		m.TimeOrder = v
	case MetaSingleOrder:
		m.SingleOrder = v
	case MetaSingleTimeOrder:
		m.SingleTimeOrder = v
	case MetaGroupOrder:
		m.GroupOrder = v
	case MetaGroupTimeOrder:
		m.GroupTimeOrder = v
	case MetaNewMessageCount:
		m.NewMessageCount = v
	default:
		return false
	}
	return true
}

// Room — авторизуемый документ комнаты. Engine получает снимок prior-состояния
// из хранилища; все множества пользователей — настоящие set'ы с O(1) проверкой.
type Room struct {
	ID   string   `json:"id,omitempty"`
	Kind RoomKind `json:"kind"`

	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	IconURL     string `json:"iconUrl,omitempty"`
	Open        bool   `json:"open,omitempty"`

	// Административные флаги (только мастер).
	VerifiedUserOnly          bool   `json:"verifiedUserOnly,omitempty"`
	URLForVerifiedUserOnly    bool   `json:"urlForVerifiedUserOnly,omitempty"`
	UploadForVerifiedUserOnly bool   `json:"uploadForVerifiedUserOnly,omitempty"`
	HasPassword               bool   `json:"hasPassword,omitempty"`
	AllMembersCanInvite       bool   `json:"allMembersCanInvite,omitempty"`
	Gender                    string `json:"gender,omitempty"`
	Domain                    string `json:"domain,omitempty"`

	// CreatedAt — write-once (unix millis); 0 означает «не установлен».
	CreatedAt int64 `json:"createdAt,omitempty"`
	// UpdatedAt — отметка последней активности; пишется любым участником.
	UpdatedAt int64 `json:"updatedAt,omitempty"`

	// Группа полей последнего сообщения: пишется мастером целиком,
	// LastMessageAt — отдельно любым участником.
	LastMessageText    string `json:"lastMessageText,omitempty"`
	LastMessageUID     string `json:"lastMessageUid,omitempty"`
	LastMessageURL     string `json:"lastMessageUrl,omitempty"`
	LastMessageID      string `json:"lastMessageId,omitempty"`
	LastMessageDeleted bool   `json:"lastMessageDeleted,omitempty"`
	LastMessageAt      int64  `json:"lastMessageAt,omitempty"`

	MasterUsers   StringSet `json:"masterUsers,omitempty"`
	InvitedUsers  StringSet `json:"invitedUsers,omitempty"`
	RejectedUsers StringSet `json:"rejectedUsers,omitempty"`
	BlockedUsers  StringSet `json:"blockedUsers,omitempty"`

	// Users — текущее членство: ключи map и есть участники.
	Users map[string]UserMeta `json:"users,omitempty"`
}

// Clone возвращает глубокую копию документа (для apply без мутации prior).
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	cp := *r
	cp.MasterUsers = r.MasterUsers.Clone()
	cp.InvitedUsers = r.InvitedUsers.Clone()
	cp.RejectedUsers = r.RejectedUsers.Clone()
	cp.BlockedUsers = r.BlockedUsers.Clone()
	if r.Users != nil {
		cp.Users = make(map[string]UserMeta, len(r.Users))
		for id, meta := range r.Users {
			cp.Users[id] = meta
		}
	}
	return &cp
}

// IsMember — есть ли пользователь среди ключей users.
func (r *Room) IsMember(userID string) bool {
	_, ok := r.Users[userID]
	return ok
}
