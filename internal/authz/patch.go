// Package authz — движок авторизации мутаций документа комнаты.
// Чистая детерминированная функция решения: по идентификатору запросившего,
// операции, prior-состоянию документа и предлагаемому патчу возвращает
// Allow или Deny с кодом отказа. Движок не делает I/O и не хранит состояние;
// вызовы безопасны из любого числа горутин.
package authz

import (
	"fmt"
	"strings"

	"github.com/roomgate/internal/model"
)

// Имена полей документа комнаты (wire-формат патча и хранения).
const (
	FieldKind                      = "kind"
	FieldName                      = "name"
	FieldDescription               = "description"
	FieldIconURL                   = "iconUrl"
	FieldOpen                      = "open"
	FieldVerifiedUserOnly          = "verifiedUserOnly"
	FieldURLForVerifiedUserOnly    = "urlForVerifiedUserOnly"
	FieldUploadForVerifiedUserOnly = "uploadForVerifiedUserOnly"
	FieldHasPassword               = "hasPassword"
	FieldAllMembersCanInvite       = "allMembersCanInvite"
	FieldGender                    = "gender"
	FieldDomain                    = "domain"
	FieldCreatedAt                 = "createdAt"
	FieldUpdatedAt                 = "updatedAt"
	FieldLastMessageText           = "lastMessageText"
	FieldLastMessageUID            = "lastMessageUid"
	FieldLastMessageURL            = "lastMessageUrl"
	FieldLastMessageID             = "lastMessageId"
	FieldLastMessageDeleted        = "lastMessageDeleted"
	FieldLastMessageAt             = "lastMessageAt"
	FieldMasterUsers               = "masterUsers"
	FieldInvitedUsers              = "invitedUsers"
	FieldRejectedUsers             = "rejectedUsers"
	FieldBlockedUsers              = "blockedUsers"
	FieldUsers                     = "users"
)

type scalarKind int

const (
	scalarString scalarKind = iota
	scalarBool
	scalarInt
	scalarRoomKind
)

// scalarFields — закрытый реестр скалярных полей; всё вне реестра — InvalidDiff.
var scalarFields = map[string]scalarKind{
	FieldKind:                      scalarRoomKind,
	FieldName:                      scalarString,
	FieldDescription:               scalarString,
	FieldIconURL:                   scalarString,
	FieldOpen:                      scalarBool,
	FieldVerifiedUserOnly:          scalarBool,
	FieldURLForVerifiedUserOnly:    scalarBool,
	FieldUploadForVerifiedUserOnly: scalarBool,
	FieldHasPassword:               scalarBool,
	FieldAllMembersCanInvite:       scalarBool,
	FieldGender:                    scalarString,
	FieldDomain:                    scalarString,
	FieldCreatedAt:                 scalarInt,
	FieldUpdatedAt:                 scalarInt,
	FieldLastMessageText:           scalarString,
	FieldLastMessageUID:            scalarString,
	FieldLastMessageURL:            scalarString,
	FieldLastMessageID:             scalarString,
	FieldLastMessageDeleted:        scalarBool,
	FieldLastMessageAt:             scalarInt,
}

var setFields = map[string]bool{
	FieldMasterUsers:   true,
	FieldInvitedUsers:  true,
	FieldRejectedUsers: true,
	FieldBlockedUsers:  true,
}

// Patch — предлагаемая мутация документа с merge-семантикой: отсутствующие
// поля не трогаются. Set для set-полей принимает полную замену массива;
// AddToSet/RemoveFromSet мутируют множество поэлементно.
type Patch struct {
	Set           map[string]any        `json:"set,omitempty"`
	Delete        []string              `json:"delete,omitempty"`
	AddToSet      map[string][]string   `json:"addToSet,omitempty"`
	RemoveFromSet map[string][]string   `json:"removeFromSet,omitempty"`
	Users         map[string]*UserPatch `json:"users,omitempty"`
}

// UserPatch — мутация одной записи в users: удаление ключа, установка
// meta-полей или инкремент счётчиков. Delete несовместим с Set/Increment.
type UserPatch struct {
	Delete    bool             `json:"delete,omitempty"`
	Set       map[string]int64 `json:"set,omitempty"`
	Increment map[string]int64 `json:"increment,omitempty"`
}

// IsEmpty — патч не содержит ни одной операции.
func (p *Patch) IsEmpty() bool {
	return p == nil ||
		len(p.Set) == 0 && len(p.Delete) == 0 && len(p.AddToSet) == 0 &&
			len(p.RemoveFromSet) == 0 && len(p.Users) == 0
}

// Validate проверяет патч синтаксически: закрытый реестр полей, совпадение
// типов, отсутствие конфликтующих операций. Любое нарушение — InvalidDiff
// (ошибка вызывающей стороны); движок никогда не паникует на плохом входе.
func (p *Patch) Validate() error {
	if p == nil {
		return fmt.Errorf("patch is nil")
	}
	if p.IsEmpty() {
		return fmt.Errorf("patch is empty")
	}
	deleted := make(map[string]bool, len(p.Delete))
	for _, f := range p.Delete {
		if f == FieldUsers {
			return fmt.Errorf("field %q cannot be deleted as a whole", FieldUsers)
		}
		if _, ok := scalarFields[f]; !ok && !setFields[f] {
			return fmt.Errorf("unknown field %q in delete", f)
		}
		if deleted[f] {
			return fmt.Errorf("field %q deleted twice", f)
		}
		deleted[f] = true
	}
	for f, v := range p.Set {
		if deleted[f] {
			return fmt.Errorf("field %q both set and deleted", f)
		}
		if setFields[f] {
			if _, err := toStringSlice(v); err != nil {
				return fmt.Errorf("field %q: %w", f, err)
			}
			continue
		}
		kind, ok := scalarFields[f]
		if !ok {
			return fmt.Errorf("unknown field %q in set", f)
		}
		if _, err := normalizeScalar(kind, v); err != nil {
			return fmt.Errorf("field %q: %w", f, err)
		}
	}
	for f, elems := range p.AddToSet {
		if !setFields[f] {
			return fmt.Errorf("field %q is not a set field", f)
		}
		if deleted[f] {
			return fmt.Errorf("field %q both mutated and deleted", f)
		}
		if _, replaced := p.Set[f]; replaced {
			return fmt.Errorf("field %q both replaced and mutated element-wise", f)
		}
		if len(elems) == 0 {
			return fmt.Errorf("field %q: empty addToSet", f)
		}
	}
	for f, elems := range p.RemoveFromSet {
		if !setFields[f] {
			return fmt.Errorf("field %q is not a set field", f)
		}
		if deleted[f] {
			return fmt.Errorf("field %q both mutated and deleted", f)
		}
		if _, replaced := p.Set[f]; replaced {
			return fmt.Errorf("field %q both replaced and mutated element-wise", f)
		}
		if len(elems) == 0 {
			return fmt.Errorf("field %q: empty removeFromSet", f)
		}
	}
	for uid, up := range p.Users {
		if uid == "" {
			return fmt.Errorf("empty user id in users patch")
		}
		if up == nil {
			return fmt.Errorf("user %q: nil patch entry", uid)
		}
		if up.Delete && (len(up.Set) > 0 || len(up.Increment) > 0) {
			return fmt.Errorf("user %q: delete combined with set/increment", uid)
		}
		if !up.Delete && len(up.Set) == 0 && len(up.Increment) == 0 {
			return fmt.Errorf("user %q: empty patch entry", uid)
		}
		var probe model.UserMeta
		for f := range up.Set {
			if _, ok := probe.MetaValue(f); !ok {
				return fmt.Errorf("user %q: unknown meta field %q", uid, f)
			}
			if _, inc := up.Increment[f]; inc {
				return fmt.Errorf("user %q: meta field %q both set and incremented", uid, f)
			}
		}
		for f := range up.Increment {
			if _, ok := probe.MetaValue(f); !ok {
				return fmt.Errorf("user %q: unknown meta field %q", uid, f)
			}
		}
	}
	return nil
}

// normalizeScalar приводит значение из JSON (float64/int/строка/bool) к
// каноническому типу поля. Несовпадение типа — ошибка InvalidDiff.
func normalizeScalar(kind scalarKind, v any) (any, error) {
	switch kind {
	case scalarString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	case scalarBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		return b, nil
	case scalarInt:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case float64:
			if n != float64(int64(n)) {
				return nil, fmt.Errorf("expected integer, got fractional %v", n)
			}
			return int64(n), nil
		default:
			return nil, fmt.Errorf("expected integer, got %T", v)
		}
	case scalarRoomKind:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		k := model.RoomKind(s)
		if k != model.RoomKindSingle && k != model.RoomKindGroup {
			return nil, fmt.Errorf("unknown room kind %q", s)
		}
		return k, nil
	}
	return nil, fmt.Errorf("unknown scalar kind")
}

func toStringSlice(v any) ([]string, error) {
	switch vv := v.(type) {
	case []string:
		return vv, nil
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("expected string array element, got %T", e)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string array, got %T", v)
	}
}

// Apply строит предлагаемый документ: merge патча поверх prior (prior не
// мутируется). Патч должен быть предварительно провалидирован; Apply
// детерминирован — хранилище применяет ровно тот документ, который видел
// движок при вынесении вердикта.
func Apply(prior *model.Room, p *Patch) *model.Room {
	var next *model.Room
	if prior == nil {
		next = &model.Room{}
	} else {
		next = prior.Clone()
	}
	for _, f := range p.Delete {
		if setFields[f] {
			setRoomSet(next, f, nil)
			continue
		}
		clearScalar(next, f)
	}
	for f, v := range p.Set {
		if setFields[f] {
			elems, _ := toStringSlice(v)
			setRoomSet(next, f, model.NewStringSet(elems...))
			continue
		}
		canon, _ := normalizeScalar(scalarFields[f], v)
		setScalar(next, f, canon)
	}
	for f, elems := range p.AddToSet {
		s := roomSet(next, f)
		if s == nil {
			s = model.NewStringSet()
		}
		for _, e := range elems {
			s.Add(e)
		}
		setRoomSet(next, f, s)
	}
	for f, elems := range p.RemoveFromSet {
		s := roomSet(next, f)
		if s == nil {
			continue
		}
		for _, e := range elems {
			s.Remove(e)
		}
		setRoomSet(next, f, s)
	}
	if len(p.Users) > 0 && next.Users == nil {
		next.Users = make(map[string]model.UserMeta)
	}
	for uid, up := range p.Users {
		if up.Delete {
			delete(next.Users, uid)
			continue
		}
		meta := next.Users[uid]
		for f, v := range up.Set {
			meta.SetMetaValue(f, v)
		}
		for f, d := range up.Increment {
			cur, _ := meta.MetaValue(f)
			meta.SetMetaValue(f, cur+d)
		}
		next.Users[uid] = meta
	}
	return next
}

func roomSet(r *model.Room, field string) model.StringSet {
	switch field {
	case FieldMasterUsers:
		return r.MasterUsers
	case FieldInvitedUsers:
		return r.InvitedUsers
	case FieldRejectedUsers:
		return r.RejectedUsers
	case FieldBlockedUsers:
		return r.BlockedUsers
	}
	return nil
}

func setRoomSet(r *model.Room, field string, s model.StringSet) {
	switch field {
	case FieldMasterUsers:
		r.MasterUsers = s
	case FieldInvitedUsers:
		r.InvitedUsers = s
	case FieldRejectedUsers:
		r.RejectedUsers = s
	case FieldBlockedUsers:
		r.BlockedUsers = s
	}
}

func setScalar(r *model.Room, field string, v any) {
	switch field {
	case FieldKind:
		r.Kind = v.(model.RoomKind)
	case FieldName:
		r.Name = v.(string)
	case FieldDescription:
		r.Description = v.(string)
	case FieldIconURL:
		r.IconURL = v.(string)
	case FieldOpen:
		r.Open = v.(bool)
	case FieldVerifiedUserOnly:
		r.VerifiedUserOnly = v.(bool)
	case FieldURLForVerifiedUserOnly:
		r.URLForVerifiedUserOnly = v.(bool)
	case FieldUploadForVerifiedUserOnly:
		r.UploadForVerifiedUserOnly = v.(bool)
	case FieldHasPassword:
		r.HasPassword = v.(bool)
	case FieldAllMembersCanInvite:
		r.AllMembersCanInvite = v.(bool)
	case FieldGender:
		r.Gender = v.(string)
	case FieldDomain:
		r.Domain = v.(string)
	case FieldCreatedAt:
		r.CreatedAt = v.(int64)
	case FieldUpdatedAt:
		r.UpdatedAt = v.(int64)
	case FieldLastMessageText:
		r.LastMessageText = v.(string)
	case FieldLastMessageUID:
		r.LastMessageUID = v.(string)
	case FieldLastMessageURL:
		r.LastMessageURL = v.(string)
	case FieldLastMessageID:
		r.LastMessageID = v.(string)
	case FieldLastMessageDeleted:
		r.LastMessageDeleted = v.(bool)
	case FieldLastMessageAt:
		r.LastMessageAt = v.(int64)
	}
}

func clearScalar(r *model.Room, field string) {
	switch scalarFields[field] {
	case scalarString:
		setScalar(r, field, "")
	case scalarBool:
		setScalar(r, field, false)
	case scalarInt:
		setScalar(r, field, int64(0))
	case scalarRoomKind:
		r.Kind = ""
	}
}

// scalarValue возвращает текущее значение скалярного поля (для диффа).
func scalarValue(r *model.Room, field string) any {
	switch field {
	case FieldKind:
		return r.Kind
	case FieldName:
		return r.Name
	case FieldDescription:
		return r.Description
	case FieldIconURL:
		return r.IconURL
	case FieldOpen:
		return r.Open
	case FieldVerifiedUserOnly:
		return r.VerifiedUserOnly
	case FieldURLForVerifiedUserOnly:
		return r.URLForVerifiedUserOnly
	case FieldUploadForVerifiedUserOnly:
		return r.UploadForVerifiedUserOnly
	case FieldHasPassword:
		return r.HasPassword
	case FieldAllMembersCanInvite:
		return r.AllMembersCanInvite
	case FieldGender:
		return r.Gender
	case FieldDomain:
		return r.Domain
	case FieldCreatedAt:
		return r.CreatedAt
	case FieldUpdatedAt:
		return r.UpdatedAt
	case FieldLastMessageText:
		return r.LastMessageText
	case FieldLastMessageUID:
		return r.LastMessageUID
	case FieldLastMessageURL:
		return r.LastMessageURL
	case FieldLastMessageID:
		return r.LastMessageID
	case FieldLastMessageDeleted:
		return r.LastMessageDeleted
	case FieldLastMessageAt:
		return r.LastMessageAt
	}
	return nil
}

// isUserMetaPath — путь вида users.{uid}.{meta} (используется в query scope).
func splitUserMetaPath(path string) (uid, meta string, ok bool) {
	rest, found := strings.CutPrefix(path, FieldUsers+".")
	if !found {
		return "", "", false
	}
	uid, meta, found = strings.Cut(rest, ".")
	if !found || uid == "" || meta == "" {
		return "", "", false
	}
	return uid, meta, true
}
