package authz

import (
	"fmt"

	"github.com/roomgate/internal/model"
)

// singleRoomCapacity — максимум участников в single-комнате.
const singleRoomCapacity = 2

// checkLifecycle — машина переходов членства. Проверяет, что структурные
// изменения (ключи users и четыре set-поля) соответствуют разрешённым
// переходам для данного актора. Любое нарушение — StructuralViolation.
//
// Инварианты:
//   - вход в users только за себя; мастер не может вписать другого даже
//     приглашённого — приглашение принимает сам пользователь;
//   - выход: участник только за себя, мастер — любое подмножество (kick);
//   - изменение счётчиков несовместимо с изменением состава в одном патче;
//   - blockedUsers и masterUsers меняет только мастер;
//   - отклонение приглашения делает только сам приглашённый;
//   - после записи id не может быть и в invitedUsers, и в rejectedUsers.
func checkLifecycle(prior, proposed *model.Room, requester string, role Role, d *Diff) (DenialCode, string) {
	if d.HasMembershipChange() && len(d.MetaChanged) > 0 {
		return CodeStructuralViolation, "membership change and counter update cannot share a write"
	}

	for _, uid := range d.UsersAdded {
		if uid != requester {
			return CodeStructuralViolation, fmt.Sprintf("user %q can only be added by themself", uid)
		}
		if code, reason := checkJoin(prior, requester); code != "" {
			return code, reason
		}
	}
	if proposed.Kind == model.RoomKindSingle && len(proposed.Users) > singleRoomCapacity {
		return CodeStructuralViolation, "single room cannot have more than two members"
	}

	if len(d.UsersRemoved) > 0 && role != RoleMaster {
		if len(d.UsersRemoved) != 1 || d.UsersRemoved[0] != requester {
			return CodeStructuralViolation, "only a master may remove other members"
		}
	}

	if delta, ok := d.Sets[FieldMasterUsers]; ok {
		if role != RoleMaster {
			return CodeStructuralViolation, "only a master may change masterUsers"
		}
		for _, uid := range delta.Added {
			if !prior.IsMember(uid) {
				return CodeStructuralViolation, fmt.Sprintf("cannot promote %q: not a member", uid)
			}
		}
	}

	if _, ok := d.Sets[FieldBlockedUsers]; ok && role != RoleMaster {
		return CodeStructuralViolation, "only a master may change blockedUsers"
	}

	if delta, ok := d.Sets[FieldInvitedUsers]; ok {
		if code, reason := checkInvites(prior, requester, role, delta); code != "" {
			return code, reason
		}
	}

	if delta, ok := d.Sets[FieldRejectedUsers]; ok {
		for _, uid := range delta.Added {
			if uid != requester {
				return CodeStructuralViolation, "rejection is recorded only by the invited user"
			}
			if !prior.InvitedUsers.Has(requester) {
				return CodeStructuralViolation, "cannot reject an invitation that does not exist"
			}
		}
		for _, uid := range delta.Removed {
			if uid != requester {
				return CodeStructuralViolation, "only the rejected user may clear their rejection"
			}
		}
	}

	// Инвариант после записи: id присутствует максимум в одном из множеств
	// invitedUsers/rejectedUsers. Проверяется на proposed, поэтому запись,
	// которая сама устраняет пересечение, проходит.
	_, invTouched := d.Sets[FieldInvitedUsers]
	_, rejTouched := d.Sets[FieldRejectedUsers]
	if invTouched || rejTouched {
		for uid := range proposed.InvitedUsers {
			if proposed.RejectedUsers.Has(uid) {
				return CodeStructuralViolation, fmt.Sprintf("user %q cannot be both invited and rejected", uid)
			}
		}
	}

	if len(d.MetaChanged) > 0 && !atLeastMember(role) {
		return CodeStructuralViolation, "only members may update user counters"
	}

	return "", ""
}

// checkUserDeletes — цели удаления ключей users должны существовать в prior.
// Merge молча игнорирует delete несуществующего ключа, и в диффе такая цель
// не видна, поэтому проверка идёт по самому патчу: удаление того, кто
// участником не был, структурно некорректно.
func checkUserDeletes(prior *model.Room, patch *Patch) (DenialCode, string) {
	for uid, up := range patch.Users {
		if up != nil && up.Delete && !prior.IsMember(uid) {
			return CodeStructuralViolation, fmt.Sprintf("cannot remove %q: not a member", uid)
		}
	}
	return "", ""
}

// checkJoin — предусловия самостоятельного входа в комнату.
func checkJoin(prior *model.Room, requester string) (DenialCode, string) {
	invited := prior.InvitedUsers.Has(requester)
	returning := prior.RejectedUsers.Has(requester)
	if prior.Kind == model.RoomKindSingle {
		if !invited && !returning {
			return CodeStructuralViolation, "single room is joinable by invitation only"
		}
		return "", ""
	}
	if !prior.Open && !invited && !returning {
		return CodeStructuralViolation, "room is not open and requester is not invited"
	}
	return "", ""
}

// checkInvites — переходы invitedUsers: кто может приглашать и отзывать.
func checkInvites(prior *model.Room, requester string, role Role, delta SetDelta) (DenialCode, string) {
	for _, uid := range delta.Added {
		if uid == requester {
			return CodeStructuralViolation, "cannot invite yourself"
		}
		if prior.BlockedUsers.Has(uid) {
			return CodeStructuralViolation, fmt.Sprintf("cannot invite blocked user %q", uid)
		}
		switch role {
		case RoleMaster:
		case RoleMember:
			if !prior.AllMembersCanInvite && !prior.Open {
				return CodeStructuralViolation, "members of this room may not invite"
			}
		default:
			return CodeStructuralViolation, "only members may invite"
		}
		if prior.Kind == model.RoomKindSingle {
			if role != RoleMaster {
				return CodeStructuralViolation, "single room invitations are master-only"
			}
			if prior.InvitedUsers.Len() > 0 {
				return CodeStructuralViolation, "single room already has a pending invitation"
			}
			if len(prior.Users) >= singleRoomCapacity {
				return CodeStructuralViolation, "single room is full"
			}
			if len(delta.Added) > 1 {
				return CodeStructuralViolation, "single room allows a single pending invitation"
			}
		}
	}
	for _, uid := range delta.Removed {
		if uid != requester && role != RoleMaster {
			return CodeStructuralViolation, "invitation can be withdrawn by its holder or a master"
		}
	}
	return "", ""
}
