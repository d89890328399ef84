package authz

import (
	"testing"

	"github.com/roomgate/internal/model"
)

// groupRoom возвращает закрытую групповую комнату: alice — мастер, bob и
// carol — участники, dave приглашён, erin отклонила приглашение, mallory
// заблокирован.
func groupRoom() *model.Room {
	return &model.Room{
		ID:            "room-1",
		Kind:          model.RoomKindGroup,
		Name:          "general",
		CreatedAt:     1000,
		MasterUsers:   model.NewStringSet("alice"),
		InvitedUsers:  model.NewStringSet("dave"),
		RejectedUsers: model.NewStringSet("erin"),
		BlockedUsers:  model.NewStringSet("mallory"),
		Users: map[string]model.UserMeta{
			"alice": {NewMessageCount: 0},
			"bob":   {NewMessageCount: 3},
			"carol": {NewMessageCount: 1},
		},
	}
}

func singleRoom() *model.Room {
	return &model.Room{
		ID:          "single-1",
		Kind:        model.RoomKindSingle,
		CreatedAt:   1000,
		MasterUsers: model.NewStringSet("alice"),
		Users: map[string]model.UserMeta{
			"alice": {},
		},
	}
}

func expectAllow(t *testing.T, d Decision) {
	t.Helper()
	if !d.Allowed {
		t.Fatalf("expected allow, got deny: code=%s reason=%q", d.Code, d.Reason)
	}
}

func expectDeny(t *testing.T, d Decision, code DenialCode) {
	t.Helper()
	if d.Allowed {
		t.Fatalf("expected deny with code %s, got allow (role=%s)", code, d.Role)
	}
	if d.Code != code {
		t.Fatalf("expected code %s, got %s (reason=%q)", code, d.Code, d.Reason)
	}
}

func update(requester string, prior *model.Room, p *Patch) Decision {
	return Evaluate(Request{Op: OpUpdate, RequesterID: requester, Prior: prior, Patch: p})
}

func TestResolveRole(t *testing.T) {
	room := groupRoom()
	room.MasterUsers.Add("mallory") // blocked сильнее master
	cases := []struct {
		requester string
		want      Role
	}{
		{"alice", RoleMaster},
		{"bob", RoleMember},
		{"dave", RoleInvited},
		{"erin", RoleRejected},
		{"mallory", RoleBlocked},
		{"zoe", RoleOutsider},
		{model.AnonymousID, RoleOutsider},
		{"", RoleOutsider},
	}
	for _, tc := range cases {
		if got := ResolveRole(room, tc.requester); got != tc.want {
			t.Errorf("ResolveRole(%q) = %s, want %s", tc.requester, got, tc.want)
		}
	}
	if got := ResolveRole(nil, "alice"); got != RoleCreator {
		t.Errorf("ResolveRole(nil) = %s, want creator", got)
	}
}

func TestCreate(t *testing.T) {
	valid := func() *Patch {
		return &Patch{
			Set: map[string]any{
				FieldKind:        "group",
				FieldName:        "general",
				FieldCreatedAt:   int64(1000),
				FieldMasterUsers: []string{"alice"},
			},
			Users: map[string]*UserPatch{
				"alice": {Set: map[string]int64{model.MetaNewMessageCount: 0}},
			},
		}
	}
	t.Run("valid group", func(t *testing.T) {
		expectAllow(t, Evaluate(Request{Op: OpCreate, RequesterID: "alice", Patch: valid()}))
	})
	t.Run("valid single with one invite", func(t *testing.T) {
		p := valid()
		p.Set[FieldKind] = "single"
		p.Set[FieldInvitedUsers] = []string{"bob"}
		expectAllow(t, Evaluate(Request{Op: OpCreate, RequesterID: "alice", Patch: p}))
	})
	t.Run("anonymous creator", func(t *testing.T) {
		d := Evaluate(Request{Op: OpCreate, RequesterID: model.AnonymousID, Patch: valid()})
		expectDeny(t, d, CodePermissionDenied)
	})
	t.Run("missing kind", func(t *testing.T) {
		p := valid()
		delete(p.Set, FieldKind)
		expectDeny(t, Evaluate(Request{Op: OpCreate, RequesterID: "alice", Patch: p}), CodeInvalidDiff)
	})
	t.Run("two masters", func(t *testing.T) {
		p := valid()
		p.Set[FieldMasterUsers] = []string{"alice", "bob"}
		expectDeny(t, Evaluate(Request{Op: OpCreate, RequesterID: "alice", Patch: p}), CodeStructuralViolation)
	})
	t.Run("master is someone else", func(t *testing.T) {
		p := valid()
		p.Set[FieldMasterUsers] = []string{"bob"}
		expectDeny(t, Evaluate(Request{Op: OpCreate, RequesterID: "alice", Patch: p}), CodeStructuralViolation)
	})
	t.Run("extra initial member", func(t *testing.T) {
		p := valid()
		p.Users["bob"] = &UserPatch{Set: map[string]int64{model.MetaNewMessageCount: 0}}
		expectDeny(t, Evaluate(Request{Op: OpCreate, RequesterID: "alice", Patch: p}), CodeStructuralViolation)
	})
	t.Run("single with two invites", func(t *testing.T) {
		p := valid()
		p.Set[FieldKind] = "single"
		p.Set[FieldInvitedUsers] = []string{"bob", "carol"}
		expectDeny(t, Evaluate(Request{Op: OpCreate, RequesterID: "alice", Patch: p}), CodeStructuralViolation)
	})
	t.Run("creator invites themself", func(t *testing.T) {
		p := valid()
		p.Set[FieldInvitedUsers] = []string{"alice"}
		expectDeny(t, Evaluate(Request{Op: OpCreate, RequesterID: "alice", Patch: p}), CodeStructuralViolation)
	})
	t.Run("invitee also marked rejected", func(t *testing.T) {
		p := valid()
		p.Set[FieldInvitedUsers] = []string{"bob"}
		p.Set[FieldRejectedUsers] = []string{"bob"}
		expectDeny(t, Evaluate(Request{Op: OpCreate, RequesterID: "alice", Patch: p}), CodeStructuralViolation)
	})
	t.Run("prior document present", func(t *testing.T) {
		d := Evaluate(Request{Op: OpCreate, RequesterID: "alice", Prior: groupRoom(), Patch: valid()})
		expectDeny(t, d, CodeInvalidDiff)
	})
}

func TestRead(t *testing.T) {
	closed := groupRoom()
	open := groupRoom()
	open.Open = true
	cases := []struct {
		name      string
		room      *model.Room
		requester string
		allowed   bool
	}{
		{"master", closed, "alice", true},
		{"member", closed, "bob", true},
		{"invited", closed, "dave", true},
		{"rejected", closed, "erin", true},
		{"outsider closed", closed, "zoe", false},
		{"outsider open", open, "zoe", true},
		{"anonymous open", open, model.AnonymousID, true},
		{"anonymous closed", closed, model.AnonymousID, false},
		{"blocked closed", closed, "mallory", false},
		{"blocked open", open, "mallory", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Evaluate(Request{Op: OpRead, RequesterID: tc.requester, Prior: tc.room})
			if tc.allowed {
				expectAllow(t, d)
			} else {
				expectDeny(t, d, CodePermissionDenied)
			}
		})
	}
}

func TestUpdateScalars(t *testing.T) {
	t.Run("master renames", func(t *testing.T) {
		expectAllow(t, update("alice", groupRoom(), &Patch{Set: map[string]any{FieldName: "renamed"}}))
	})
	t.Run("member renames", func(t *testing.T) {
		d := update("bob", groupRoom(), &Patch{Set: map[string]any{FieldName: "renamed"}})
		expectDeny(t, d, CodePermissionDenied)
	})
	t.Run("member bumps updatedAt", func(t *testing.T) {
		expectAllow(t, update("bob", groupRoom(), &Patch{Set: map[string]any{FieldUpdatedAt: int64(2000)}}))
	})
	t.Run("member bumps lastMessageAt", func(t *testing.T) {
		expectAllow(t, update("bob", groupRoom(), &Patch{Set: map[string]any{FieldLastMessageAt: int64(2000)}}))
	})
	t.Run("member writes lastMessage body", func(t *testing.T) {
		d := update("bob", groupRoom(), &Patch{Set: map[string]any{
			FieldLastMessageText: "hi",
			FieldLastMessageUID:  "bob",
			FieldLastMessageAt:   int64(2000),
		}})
		expectDeny(t, d, CodePermissionDenied)
	})
	t.Run("master writes lastMessage body", func(t *testing.T) {
		expectAllow(t, update("alice", groupRoom(), &Patch{Set: map[string]any{
			FieldLastMessageText: "hi",
			FieldLastMessageUID:  "alice",
			FieldLastMessageAt:   int64(2000),
		}}))
	})
	t.Run("invited bumps updatedAt", func(t *testing.T) {
		d := update("dave", groupRoom(), &Patch{Set: map[string]any{FieldUpdatedAt: int64(2000)}})
		expectDeny(t, d, CodePermissionDenied)
	})
	t.Run("master flips admin flags", func(t *testing.T) {
		expectAllow(t, update("alice", groupRoom(), &Patch{Set: map[string]any{
			FieldOpen:                true,
			FieldAllMembersCanInvite: true,
			FieldVerifiedUserOnly:    true,
		}}))
	})
	t.Run("kind is immutable", func(t *testing.T) {
		d := update("alice", groupRoom(), &Patch{Set: map[string]any{FieldKind: "single"}})
		expectDeny(t, d, CodePermissionDenied)
	})
	t.Run("idempotent write changes nothing", func(t *testing.T) {
		expectAllow(t, update("bob", groupRoom(), &Patch{Set: map[string]any{FieldName: "general"}}))
	})
}

func TestCreatedAtWriteOnce(t *testing.T) {
	t.Run("master rewrites existing", func(t *testing.T) {
		d := update("alice", groupRoom(), &Patch{Set: map[string]any{FieldCreatedAt: int64(2000)}})
		expectDeny(t, d, CodePermissionDenied)
	})
	t.Run("master sets while absent", func(t *testing.T) {
		room := groupRoom()
		room.CreatedAt = 0
		expectAllow(t, update("alice", room, &Patch{Set: map[string]any{FieldCreatedAt: int64(2000)}}))
	})
	t.Run("member sets while absent", func(t *testing.T) {
		room := groupRoom()
		room.CreatedAt = 0
		d := update("bob", room, &Patch{Set: map[string]any{FieldCreatedAt: int64(2000)}})
		expectDeny(t, d, CodePermissionDenied)
	})
	t.Run("master deletes existing", func(t *testing.T) {
		d := update("alice", groupRoom(), &Patch{Delete: []string{FieldCreatedAt}})
		expectDeny(t, d, CodePermissionDenied)
	})
}

func joinPatch(uid string) *Patch {
	return &Patch{
		Users: map[string]*UserPatch{
			uid: {Set: map[string]int64{model.MetaNewMessageCount: 0}},
		},
	}
}

func TestJoin(t *testing.T) {
	t.Run("invited joins and clears invite", func(t *testing.T) {
		p := joinPatch("dave")
		p.RemoveFromSet = map[string][]string{FieldInvitedUsers: {"dave"}}
		expectAllow(t, update("dave", groupRoom(), p))
	})
	t.Run("invited joins without clearing invite", func(t *testing.T) {
		expectAllow(t, update("dave", groupRoom(), joinPatch("dave")))
	})
	t.Run("outsider joins closed room", func(t *testing.T) {
		expectDeny(t, update("zoe", groupRoom(), joinPatch("zoe")), CodeStructuralViolation)
	})
	t.Run("outsider joins open room", func(t *testing.T) {
		room := groupRoom()
		room.Open = true
		expectAllow(t, update("zoe", room, joinPatch("zoe")))
	})
	t.Run("rejected returns", func(t *testing.T) {
		p := joinPatch("erin")
		p.RemoveFromSet = map[string][]string{FieldRejectedUsers: {"erin"}}
		expectAllow(t, update("erin", groupRoom(), p))
	})
	t.Run("master adds invited user directly", func(t *testing.T) {
		expectDeny(t, update("alice", groupRoom(), joinPatch("dave")), CodeStructuralViolation)
	})
	t.Run("member adds a friend", func(t *testing.T) {
		expectDeny(t, update("bob", groupRoom(), joinPatch("zoe")), CodeStructuralViolation)
	})
	t.Run("blocked joins open room", func(t *testing.T) {
		room := groupRoom()
		room.Open = true
		expectDeny(t, update("mallory", room, joinPatch("mallory")), CodePermissionDenied)
	})
}

func TestLeave(t *testing.T) {
	leave := func(uids ...string) *Patch {
		p := &Patch{Users: map[string]*UserPatch{}}
		for _, uid := range uids {
			p.Users[uid] = &UserPatch{Delete: true}
		}
		return p
	}
	t.Run("member leaves", func(t *testing.T) {
		expectAllow(t, update("bob", groupRoom(), leave("bob")))
	})
	t.Run("member removes another member", func(t *testing.T) {
		expectDeny(t, update("bob", groupRoom(), leave("carol")), CodeStructuralViolation)
	})
	t.Run("member leaves and drags another out", func(t *testing.T) {
		expectDeny(t, update("bob", groupRoom(), leave("bob", "carol")), CodeStructuralViolation)
	})
	t.Run("master kicks a member", func(t *testing.T) {
		expectAllow(t, update("alice", groupRoom(), leave("carol")))
	})
	t.Run("master removes a never-member", func(t *testing.T) {
		expectDeny(t, update("alice", groupRoom(), leave("zoe")), CodeStructuralViolation)
	})
	t.Run("master kicks a member and a never-member together", func(t *testing.T) {
		expectDeny(t, update("alice", groupRoom(), leave("bob", "zoe")), CodeStructuralViolation)
	})
	t.Run("master leaves and kicks the rest", func(t *testing.T) {
		p := leave("alice", "bob", "carol")
		p.RemoveFromSet = map[string][]string{FieldMasterUsers: {"alice"}}
		expectAllow(t, update("alice", groupRoom(), p))
	})
	t.Run("outsider removes a member", func(t *testing.T) {
		expectDeny(t, update("zoe", groupRoom(), leave("carol")), CodeStructuralViolation)
	})
}

func TestInvitations(t *testing.T) {
	invite := func(uids ...string) *Patch {
		return &Patch{AddToSet: map[string][]string{FieldInvitedUsers: uids}}
	}
	t.Run("master invites", func(t *testing.T) {
		expectAllow(t, update("alice", groupRoom(), invite("zoe")))
	})
	t.Run("member invites while flag off", func(t *testing.T) {
		expectDeny(t, update("bob", groupRoom(), invite("zoe")), CodeStructuralViolation)
	})
	t.Run("member invites with allMembersCanInvite", func(t *testing.T) {
		room := groupRoom()
		room.AllMembersCanInvite = true
		expectAllow(t, update("bob", room, invite("zoe")))
	})
	t.Run("member invites in open room", func(t *testing.T) {
		room := groupRoom()
		room.Open = true
		expectAllow(t, update("bob", room, invite("zoe")))
	})
	t.Run("outsider invites", func(t *testing.T) {
		expectDeny(t, update("zoe", groupRoom(), invite("yuri")), CodeStructuralViolation)
	})
	t.Run("self invite", func(t *testing.T) {
		room := groupRoom()
		room.AllMembersCanInvite = true
		expectDeny(t, update("bob", room, invite("bob")), CodeStructuralViolation)
	})
	t.Run("inviting a blocked user", func(t *testing.T) {
		expectDeny(t, update("alice", groupRoom(), invite("mallory")), CodeStructuralViolation)
	})
	t.Run("inviting a user who rejected", func(t *testing.T) {
		expectDeny(t, update("alice", groupRoom(), invite("erin")), CodeStructuralViolation)
	})
	t.Run("invited user declines quietly", func(t *testing.T) {
		p := &Patch{RemoveFromSet: map[string][]string{FieldInvitedUsers: {"dave"}}}
		expectAllow(t, update("dave", groupRoom(), p))
	})
	t.Run("master withdraws an invitation", func(t *testing.T) {
		p := &Patch{RemoveFromSet: map[string][]string{FieldInvitedUsers: {"dave"}}}
		expectAllow(t, update("alice", groupRoom(), p))
	})
	t.Run("member withdraws someone else's invitation", func(t *testing.T) {
		p := &Patch{RemoveFromSet: map[string][]string{FieldInvitedUsers: {"dave"}}}
		expectDeny(t, update("bob", groupRoom(), p), CodeStructuralViolation)
	})
}

func TestRejection(t *testing.T) {
	t.Run("invited user rejects", func(t *testing.T) {
		p := &Patch{
			RemoveFromSet: map[string][]string{FieldInvitedUsers: {"dave"}},
			AddToSet:      map[string][]string{FieldRejectedUsers: {"dave"}},
		}
		expectAllow(t, update("dave", groupRoom(), p))
	})
	t.Run("rejecting while keeping the invitation", func(t *testing.T) {
		p := &Patch{AddToSet: map[string][]string{FieldRejectedUsers: {"dave"}}}
		expectDeny(t, update("dave", groupRoom(), p), CodeStructuralViolation)
	})
	t.Run("rejecting on behalf of another", func(t *testing.T) {
		p := &Patch{AddToSet: map[string][]string{FieldRejectedUsers: {"dave"}}}
		expectDeny(t, update("alice", groupRoom(), p), CodeStructuralViolation)
	})
	t.Run("rejecting without an invitation", func(t *testing.T) {
		p := &Patch{AddToSet: map[string][]string{FieldRejectedUsers: {"zoe"}}}
		expectDeny(t, update("zoe", groupRoom(), p), CodeStructuralViolation)
	})
	t.Run("master clears a rejection", func(t *testing.T) {
		p := &Patch{RemoveFromSet: map[string][]string{FieldRejectedUsers: {"erin"}}}
		expectDeny(t, update("alice", groupRoom(), p), CodeStructuralViolation)
	})
	t.Run("rejected user clears own rejection", func(t *testing.T) {
		p := &Patch{RemoveFromSet: map[string][]string{FieldRejectedUsers: {"erin"}}}
		expectAllow(t, update("erin", groupRoom(), p))
	})
}

func TestBlockList(t *testing.T) {
	block := func(uid string) *Patch {
		return &Patch{AddToSet: map[string][]string{FieldBlockedUsers: {uid}}}
	}
	t.Run("master blocks", func(t *testing.T) {
		expectAllow(t, update("alice", groupRoom(), block("zoe")))
	})
	t.Run("member blocks", func(t *testing.T) {
		expectDeny(t, update("bob", groupRoom(), block("zoe")), CodeStructuralViolation)
	})
	t.Run("master unblocks", func(t *testing.T) {
		p := &Patch{RemoveFromSet: map[string][]string{FieldBlockedUsers: {"mallory"}}}
		expectAllow(t, update("alice", groupRoom(), p))
	})
	t.Run("blocked user lifts own block", func(t *testing.T) {
		p := &Patch{RemoveFromSet: map[string][]string{FieldBlockedUsers: {"mallory"}}}
		expectDeny(t, update("mallory", groupRoom(), p), CodePermissionDenied)
	})
	t.Run("blocked user joins while lifting block", func(t *testing.T) {
		p := joinPatch("mallory")
		p.RemoveFromSet = map[string][]string{FieldBlockedUsers: {"mallory"}}
		expectDeny(t, update("mallory", groupRoom(), p), CodePermissionDenied)
	})
}

func TestCounters(t *testing.T) {
	t.Run("member increments own counter", func(t *testing.T) {
		p := &Patch{Users: map[string]*UserPatch{
			"bob": {Increment: map[string]int64{model.MetaNewMessageCount: 1}},
		}}
		expectAllow(t, update("bob", groupRoom(), p))
	})
	t.Run("member increments everyone", func(t *testing.T) {
		p := &Patch{Users: map[string]*UserPatch{
			"alice": {Increment: map[string]int64{model.MetaNewMessageCount: 1}},
			"bob":   {Set: map[string]int64{model.MetaNewMessageCount: 0}},
			"carol": {Increment: map[string]int64{model.MetaNewMessageCount: 1}},
		}}
		expectAllow(t, update("bob", groupRoom(), p))
	})
	t.Run("member updates ordering meta", func(t *testing.T) {
		p := &Patch{Users: map[string]*UserPatch{
			"carol": {Set: map[string]int64{model.MetaOrder: 42, model.MetaTimeOrder: 2000}},
		}}
		expectAllow(t, update("bob", groupRoom(), p))
	})
	t.Run("counter update combined with removal", func(t *testing.T) {
		p := &Patch{Users: map[string]*UserPatch{
			"carol": {Increment: map[string]int64{model.MetaNewMessageCount: 1}},
			"bob":   {Delete: true},
		}}
		expectDeny(t, update("bob", groupRoom(), p), CodeStructuralViolation)
	})
	t.Run("invited updates a counter", func(t *testing.T) {
		p := &Patch{Users: map[string]*UserPatch{
			"bob": {Increment: map[string]int64{model.MetaNewMessageCount: 1}},
		}}
		expectDeny(t, update("dave", groupRoom(), p), CodeStructuralViolation)
	})
}

func TestMasterSet(t *testing.T) {
	t.Run("master promotes a member", func(t *testing.T) {
		p := &Patch{AddToSet: map[string][]string{FieldMasterUsers: {"bob"}}}
		expectAllow(t, update("alice", groupRoom(), p))
	})
	t.Run("master promotes an outsider", func(t *testing.T) {
		p := &Patch{AddToSet: map[string][]string{FieldMasterUsers: {"zoe"}}}
		expectDeny(t, update("alice", groupRoom(), p), CodeStructuralViolation)
	})
	t.Run("member promotes themself", func(t *testing.T) {
		p := &Patch{AddToSet: map[string][]string{FieldMasterUsers: {"bob"}}}
		expectDeny(t, update("bob", groupRoom(), p), CodeStructuralViolation)
	})
	t.Run("master demotes another master", func(t *testing.T) {
		room := groupRoom()
		room.MasterUsers.Add("bob")
		p := &Patch{RemoveFromSet: map[string][]string{FieldMasterUsers: {"bob"}}}
		expectAllow(t, update("alice", room, p))
	})
}

func TestSingleRoom(t *testing.T) {
	t.Run("master invites into empty slot", func(t *testing.T) {
		p := &Patch{AddToSet: map[string][]string{FieldInvitedUsers: {"bob"}}}
		expectAllow(t, update("alice", singleRoom(), p))
	})
	t.Run("invite while one is pending", func(t *testing.T) {
		room := singleRoom()
		room.InvitedUsers = model.NewStringSet("bob")
		p := &Patch{AddToSet: map[string][]string{FieldInvitedUsers: {"carol"}}}
		expectDeny(t, update("alice", room, p), CodeStructuralViolation)
	})
	t.Run("invite into a full room", func(t *testing.T) {
		room := singleRoom()
		room.Users["bob"] = model.UserMeta{}
		p := &Patch{AddToSet: map[string][]string{FieldInvitedUsers: {"carol"}}}
		expectDeny(t, update("alice", room, p), CodeStructuralViolation)
	})
	t.Run("member invites even with flag", func(t *testing.T) {
		room := singleRoom()
		room.Users["bob"] = model.UserMeta{}
		room.AllMembersCanInvite = true
		p := &Patch{AddToSet: map[string][]string{FieldInvitedUsers: {"carol"}}}
		expectDeny(t, update("bob", room, p), CodeStructuralViolation)
	})
	t.Run("invited joins", func(t *testing.T) {
		room := singleRoom()
		room.InvitedUsers = model.NewStringSet("bob")
		p := joinPatch("bob")
		p.RemoveFromSet = map[string][]string{FieldInvitedUsers: {"bob"}}
		expectAllow(t, update("bob", room, p))
	})
	t.Run("outsider joins without invitation", func(t *testing.T) {
		room := singleRoom()
		room.Open = true // даже открытая single-комната только по приглашению
		expectDeny(t, update("bob", room, joinPatch("bob")), CodeStructuralViolation)
	})
	t.Run("third member over capacity", func(t *testing.T) {
		room := singleRoom()
		room.Users["bob"] = model.UserMeta{}
		room.InvitedUsers = model.NewStringSet("carol")
		expectDeny(t, update("carol", room, joinPatch("carol")), CodeStructuralViolation)
	})
}

func TestDelete(t *testing.T) {
	cases := []struct {
		name      string
		requester string
		allowed   bool
	}{
		{"master", "alice", true},
		{"member", "bob", false},
		{"invited", "dave", false},
		{"outsider", "zoe", false},
		{"blocked", "mallory", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Evaluate(Request{Op: OpDelete, RequesterID: tc.requester, Prior: groupRoom()})
			if tc.allowed {
				expectAllow(t, d)
			} else {
				expectDeny(t, d, CodePermissionDenied)
			}
		})
	}
}

func TestInvalidInput(t *testing.T) {
	cases := []struct {
		name string
		req  Request
	}{
		{"unknown operation", Request{Op: "rename", RequesterID: "alice", Prior: groupRoom()}},
		{"read without document", Request{Op: OpRead, RequesterID: "alice"}},
		{"update without document", Request{Op: OpUpdate, RequesterID: "alice", Patch: &Patch{Set: map[string]any{FieldName: "x"}}}},
		{"update without patch", Request{Op: OpUpdate, RequesterID: "alice", Prior: groupRoom()}},
		{"query without predicate", Request{Op: OpQuery, RequesterID: "alice"}},
		{"unknown field", Request{Op: OpUpdate, RequesterID: "alice", Prior: groupRoom(),
			Patch: &Patch{Set: map[string]any{"color": "red"}}}},
		{"type mismatch", Request{Op: OpUpdate, RequesterID: "alice", Prior: groupRoom(),
			Patch: &Patch{Set: map[string]any{FieldOpen: "yes"}}}},
		{"empty patch", Request{Op: OpUpdate, RequesterID: "alice", Prior: groupRoom(), Patch: &Patch{}}},
		{"set and delete conflict", Request{Op: OpUpdate, RequesterID: "alice", Prior: groupRoom(),
			Patch: &Patch{Set: map[string]any{FieldName: "x"}, Delete: []string{FieldName}}}},
		{"unknown meta field", Request{Op: OpUpdate, RequesterID: "bob", Prior: groupRoom(),
			Patch: &Patch{Users: map[string]*UserPatch{"bob": {Increment: map[string]int64{"xyz": 1}}}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expectDeny(t, Evaluate(tc.req), CodeInvalidDiff)
		})
	}
}
