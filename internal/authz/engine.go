package authz

import (
	"net/http"

	"github.com/roomgate/internal/model"
)

// Operation — авторизуемая операция над документом комнаты.
type Operation string

const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpQuery  Operation = "query"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// DenialCode — категория отказа.
type DenialCode string

const (
	// CodeInvalidDiff — патч синтаксически негоден: неизвестное поле,
	// несовпадение типа, конфликтующие операции. Ошибка вызывающего.
	CodeInvalidDiff DenialCode = "invalid_diff"
	// CodeStructuralViolation — патч корректен, но нарушает инвариант
	// жизненного цикла членства.
	CodeStructuralViolation DenialCode = "structural_violation"
	// CodePermissionDenied — у роли нет права на операцию или на поле.
	CodePermissionDenied DenialCode = "permission_denied"
	// CodeScopeViolation — запрос выходит за пределы видимости запросившего.
	CodeScopeViolation DenialCode = "scope_violation"
)

// HTTPStatus — статус ответа для кода отказа.
func (c DenialCode) HTTPStatus() int {
	if c == CodeInvalidDiff {
		return http.StatusBadRequest
	}
	return http.StatusForbidden
}

// Request — один запрос на авторизацию. Prior обязателен для read/update/
// delete, Patch — для create/update, Query — для query.
type Request struct {
	Op          Operation
	RequesterID string
	Prior       *model.Room
	Patch       *Patch
	Query       *QueryPredicate
}

// Decision — вердикт движка. При отказе Code и Reason объясняют причину;
// Role — вычисленная роль запросившего (попадает в лог решения).
type Decision struct {
	Allowed bool       `json:"allowed"`
	Code    DenialCode `json:"code,omitempty"`
	Role    Role       `json:"role"`
	Reason  string     `json:"reason,omitempty"`
}

func allow(role Role) Decision {
	return Decision{Allowed: true, Role: role}
}

func deny(role Role, code DenialCode, reason string) Decision {
	return Decision{Allowed: false, Code: code, Role: role, Reason: reason}
}

// Evaluate — чистая функция решения: ни I/O, ни состояния, ни паник на любом
// входе. Порядок проверок фиксирован: приоритет blocked → валидация патча →
// дифф → инварианты жизненного цикла → матрица прав → scope запроса.
func Evaluate(req Request) Decision {
	switch req.Op {
	case OpCreate:
		return evaluateCreate(req)
	case OpRead:
		return evaluateRead(req)
	case OpQuery:
		return evaluateQuery(req)
	case OpUpdate:
		return evaluateUpdate(req)
	case OpDelete:
		return evaluateDelete(req)
	default:
		return deny(RoleOutsider, CodeInvalidDiff, "unknown operation")
	}
}

func evaluateCreate(req Request) Decision {
	if req.Prior != nil {
		return deny(RoleCreator, CodeInvalidDiff, "document already exists")
	}
	if req.RequesterID == "" || req.RequesterID == model.AnonymousID {
		return deny(RoleOutsider, CodePermissionDenied, "authentication required to create a room")
	}
	if err := req.Patch.Validate(); err != nil {
		return deny(RoleCreator, CodeInvalidDiff, err.Error())
	}
	proposed := Apply(nil, req.Patch)
	if code, reason := checkCreate(req.RequesterID, proposed); code != "" {
		return deny(RoleCreator, code, reason)
	}
	return allow(RoleCreator)
}

func evaluateRead(req Request) Decision {
	if req.Prior == nil {
		return deny(RoleOutsider, CodeInvalidDiff, "read requires a document")
	}
	role := ResolveRole(req.Prior, req.RequesterID)
	switch role {
	case RoleBlocked:
		return deny(role, CodePermissionDenied, "requester is blocked")
	case RoleMaster, RoleMember, RoleInvited, RoleRejected:
		return allow(role)
	}
	if req.Prior.Open {
		return allow(role)
	}
	return deny(role, CodePermissionDenied, "room is not open")
}

func evaluateQuery(req Request) Decision {
	if req.Query == nil {
		return deny(RoleOutsider, CodeInvalidDiff, "query predicate is required")
	}
	if code, reason := checkQueryScope(req.RequesterID, req.Query); code != "" {
		return deny(RoleOutsider, code, reason)
	}
	return allow(RoleOutsider)
}

func evaluateUpdate(req Request) Decision {
	if req.Prior == nil {
		return deny(RoleOutsider, CodeInvalidDiff, "update requires a prior document")
	}
	role := ResolveRole(req.Prior, req.RequesterID)
	// Приоритет blocked абсолютен: проверяется до разбора патча, чтобы
	// заблокированный не снял собственную блокировку тем же патчем.
	if role == RoleBlocked {
		return deny(role, CodePermissionDenied, "requester is blocked")
	}
	if err := req.Patch.Validate(); err != nil {
		return deny(role, CodeInvalidDiff, err.Error())
	}
	if code, reason := checkUserDeletes(req.Prior, req.Patch); code != "" {
		return deny(role, code, reason)
	}
	proposed := Apply(req.Prior, req.Patch)
	d := Analyze(req.Prior, proposed)
	if d.IsEmpty() {
		// Идемпотентный патч состояние не меняет; вреда нет.
		return allow(role)
	}
	if code, reason := checkLifecycle(req.Prior, proposed, req.RequesterID, role, d); code != "" {
		return deny(role, code, reason)
	}
	if code, reason := checkScalarWrites(req.Prior, role, d); code != "" {
		return deny(role, code, reason)
	}
	return allow(role)
}

func evaluateDelete(req Request) Decision {
	if req.Prior == nil {
		return deny(RoleOutsider, CodeInvalidDiff, "delete requires a document")
	}
	role := ResolveRole(req.Prior, req.RequesterID)
	if role == RoleBlocked {
		return deny(role, CodePermissionDenied, "requester is blocked")
	}
	if role != RoleMaster {
		return deny(role, CodePermissionDenied, "only a master may delete the room")
	}
	return allow(role)
}
