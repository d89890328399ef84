package authz

import (
	"fmt"

	"github.com/roomgate/internal/model"
)

// Операторы сравнения в предикатах запроса списка.
const (
	FilterEq       = "=="
	FilterLt       = "<"
	FilterLte      = "<="
	FilterGt       = ">"
	FilterGte      = ">="
	FilterContains = "array-contains"
)

// Filter — один предикат запроса списка комнат.
type Filter struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value,omitempty"`
}

// Order — сортировка результата. Поля сортировки scope не проверяются:
// порядок не раскрывает содержимое чужих документов сверх уже допущенного
// фильтрами.
type Order struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

// QueryPredicate — запрос списка комнат: конъюнкция фильтров плюс сортировка.
type QueryPredicate struct {
	Filters []Filter `json:"filters"`
	Orders  []Order  `json:"orders,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// checkQueryScope проверяет, что каждый фильтр остаётся в видимости
// запросившего: предикаты по users.{uid}.* и по спискам приглашённых/
// отклонивших допустимы только с собственным идентификатором; открытые
// комнаты (open == true) видны всем без ограничений.
func checkQueryScope(requester string, q *QueryPredicate) (DenialCode, string) {
	if len(q.Filters) == 0 {
		return CodeScopeViolation, "query must be constrained to requester scope"
	}
	for _, f := range q.Filters {
		switch {
		case f.Field == FieldOpen:
			if f.Op != FilterEq {
				return CodeScopeViolation, "open supports equality filters only"
			}
			if v, ok := f.Value.(bool); !ok || !v {
				return CodeScopeViolation, "only open == true is queryable"
			}

		case f.Field == FieldInvitedUsers || f.Field == FieldRejectedUsers:
			if f.Op != FilterContains {
				return CodeScopeViolation, fmt.Sprintf("field %q supports array-contains only", f.Field)
			}
			if code, reason := requireOwnID(requester, f); code != "" {
				return code, reason
			}

		default:
			uid, meta, ok := splitUserMetaPath(f.Field)
			if !ok {
				return CodeScopeViolation, fmt.Sprintf("field %q is not queryable", f.Field)
			}
			var probe model.UserMeta
			if _, known := probe.MetaValue(meta); !known {
				return CodeScopeViolation, fmt.Sprintf("unknown meta field %q", meta)
			}
			if requester == "" || requester == model.AnonymousID || uid != requester {
				return CodeScopeViolation, "user meta is queryable for own id only"
			}
		}
	}
	return "", ""
}

func requireOwnID(requester string, f Filter) (DenialCode, string) {
	v, ok := f.Value.(string)
	if !ok {
		return CodeScopeViolation, fmt.Sprintf("field %q expects a user id value", f.Field)
	}
	if requester == "" || requester == model.AnonymousID || v != requester {
		return CodeScopeViolation, fmt.Sprintf("field %q is queryable for own id only", f.Field)
	}
	return "", ""
}
