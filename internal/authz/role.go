package authz

import "github.com/roomgate/internal/model"

// Role — роль запросившего относительно prior-состояния комнаты.
type Role string

const (
	RoleOutsider Role = "outsider"
	RoleInvited  Role = "invited"
	RoleRejected Role = "rejected"
	RoleBlocked  Role = "blocked"
	RoleMember   Role = "member"
	RoleMaster   Role = "master"
	// RoleCreator — синтетическая роль при создании документа (prior нет).
	RoleCreator Role = "creator"
)

// ResolveRole вычисляет роль по prior-документу. Приоритет при пересечении:
// Blocked > Master > Member > Invited > Rejected > Outsider. Blocked всегда
// побеждает — членство или приглашение заблокированного не значат ничего.
func ResolveRole(prior *model.Room, requesterID string) Role {
	if prior == nil {
		return RoleCreator
	}
	if requesterID == "" || requesterID == model.AnonymousID {
		return RoleOutsider
	}
	switch {
	case prior.BlockedUsers.Has(requesterID):
		return RoleBlocked
	case prior.MasterUsers.Has(requesterID):
		return RoleMaster
	case prior.IsMember(requesterID):
		return RoleMember
	case prior.InvitedUsers.Has(requesterID):
		return RoleInvited
	case prior.RejectedUsers.Has(requesterID):
		return RoleRejected
	default:
		return RoleOutsider
	}
}

// atLeastMember — роль даёт права участника.
func atLeastMember(r Role) bool {
	return r == RoleMember || r == RoleMaster
}
