package authz

import (
	"fmt"

	"github.com/roomgate/internal/model"
)

// Классы скалярных полей по праву записи. Всё, что не названо, по умолчанию
// мастерское: матрица — allow-list, незнакомое поле прав не расширяет.
var (
	// memberWritableFields — любой участник (отметка активности).
	memberWritableFields = map[string]bool{
		FieldUpdatedAt:     true,
		FieldLastMessageAt: true,
	}
	// immutableFields — не меняются никем после создания.
	immutableFields = map[string]bool{
		FieldKind: true,
	}
)

// checkScalarWrites — матрица прав на изменённые скалярные поля при update.
func checkScalarWrites(prior *model.Room, role Role, d *Diff) (DenialCode, string) {
	for field := range d.Scalars {
		if immutableFields[field] {
			return CodePermissionDenied, fmt.Sprintf("field %q is immutable", field)
		}
		if field == FieldCreatedAt {
			// write-once: установить может мастер, и только пока поле пусто.
			if prior.CreatedAt != 0 {
				return CodePermissionDenied, "createdAt is write-once"
			}
			if role != RoleMaster {
				return CodePermissionDenied, "createdAt can be set only by a master"
			}
			continue
		}
		if memberWritableFields[field] {
			if !atLeastMember(role) {
				return CodePermissionDenied, fmt.Sprintf("field %q is writable by members only", field)
			}
			continue
		}
		if role != RoleMaster {
			return CodePermissionDenied, fmt.Sprintf("field %q is writable by masters only", field)
		}
	}
	return "", ""
}

// checkCreate — кардинальность создания: ровно один мастер и он же
// единственный участник; single-комната приглашает максимум одного и
// никогда самого создателя.
func checkCreate(requester string, proposed *model.Room) (DenialCode, string) {
	if proposed.Kind != model.RoomKindSingle && proposed.Kind != model.RoomKindGroup {
		return CodeInvalidDiff, "kind is required at creation"
	}
	if proposed.MasterUsers.Len() != 1 || !proposed.MasterUsers.Has(requester) {
		return CodeStructuralViolation, "creator must be the sole master"
	}
	if len(proposed.Users) != 1 || !proposed.IsMember(requester) {
		return CodeStructuralViolation, "creator must be the sole initial member"
	}
	if proposed.InvitedUsers.Has(requester) {
		return CodeStructuralViolation, "creator cannot invite themself"
	}
	if proposed.Kind == model.RoomKindSingle && proposed.InvitedUsers.Len() > 1 {
		return CodeStructuralViolation, "single room allows a single pending invitation"
	}
	for uid := range proposed.InvitedUsers {
		if proposed.BlockedUsers.Has(uid) {
			return CodeStructuralViolation, fmt.Sprintf("cannot invite blocked user %q", uid)
		}
		if proposed.RejectedUsers.Has(uid) {
			return CodeStructuralViolation, fmt.Sprintf("user %q cannot be both invited and rejected", uid)
		}
	}
	return "", ""
}
