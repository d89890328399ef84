package authz

import (
	"testing"

	"github.com/roomgate/internal/model"
)

func TestPatchValidate(t *testing.T) {
	cases := []struct {
		name    string
		patch   *Patch
		wantErr bool
	}{
		{"nil patch", nil, true},
		{"empty patch", &Patch{}, true},
		{"scalar set", &Patch{Set: map[string]any{FieldName: "x"}}, false},
		{"int from json number", &Patch{Set: map[string]any{FieldUpdatedAt: float64(1000)}}, false},
		{"fractional number", &Patch{Set: map[string]any{FieldUpdatedAt: 1000.5}}, true},
		{"bad kind value", &Patch{Set: map[string]any{FieldKind: "broadcast"}}, true},
		{"set replace from json", &Patch{Set: map[string]any{FieldInvitedUsers: []any{"a", "b"}}}, false},
		{"set replace bad element", &Patch{Set: map[string]any{FieldInvitedUsers: []any{"a", 1}}}, true},
		{"delete users wholesale", &Patch{Delete: []string{FieldUsers}}, true},
		{"delete unknown field", &Patch{Delete: []string{"color"}}, true},
		{"addToSet on scalar", &Patch{AddToSet: map[string][]string{FieldName: {"x"}}}, true},
		{"addToSet empty", &Patch{AddToSet: map[string][]string{FieldInvitedUsers: {}}}, true},
		{"replace and addToSet conflict", &Patch{
			Set:      map[string]any{FieldInvitedUsers: []string{"a"}},
			AddToSet: map[string][]string{FieldInvitedUsers: {"b"}},
		}, true},
		{"user delete with increment", &Patch{Users: map[string]*UserPatch{
			"a": {Delete: true, Increment: map[string]int64{model.MetaNewMessageCount: 1}},
		}}, true},
		{"user empty entry", &Patch{Users: map[string]*UserPatch{"a": {}}}, true},
		{"user set and increment same field", &Patch{Users: map[string]*UserPatch{
			"a": {Set: map[string]int64{model.MetaOrder: 1}, Increment: map[string]int64{model.MetaOrder: 1}},
		}}, true},
		{"empty user id", &Patch{Users: map[string]*UserPatch{"": {Delete: true}}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.patch.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestApply(t *testing.T) {
	prior := groupRoom()
	p := &Patch{
		Set:           map[string]any{FieldName: "renamed", FieldOpen: true, FieldUpdatedAt: int64(2000)},
		Delete:        []string{FieldDescription},
		AddToSet:      map[string][]string{FieldInvitedUsers: {"zoe"}},
		RemoveFromSet: map[string][]string{FieldRejectedUsers: {"erin"}},
		Users: map[string]*UserPatch{
			"bob":   {Increment: map[string]int64{model.MetaNewMessageCount: 2}},
			"carol": {Delete: true},
		},
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	next := Apply(prior, p)

	if next.Name != "renamed" || !next.Open || next.UpdatedAt != 2000 {
		t.Errorf("scalar merge failed: %+v", next)
	}
	if !next.InvitedUsers.Has("zoe") || !next.InvitedUsers.Has("dave") {
		t.Errorf("addToSet must union, got %v", next.InvitedUsers.Elems())
	}
	if next.RejectedUsers.Has("erin") {
		t.Error("removeFromSet did not remove erin")
	}
	if got := next.Users["bob"].NewMessageCount; got != 5 {
		t.Errorf("increment: got %d, want 5", got)
	}
	if _, ok := next.Users["carol"]; ok {
		t.Error("user delete did not remove carol")
	}

	// prior must stay untouched
	if prior.Name != "general" || prior.Open || prior.Users["bob"].NewMessageCount != 3 {
		t.Errorf("prior was mutated: %+v", prior)
	}
	if !prior.RejectedUsers.Has("erin") {
		t.Error("prior set was mutated")
	}
}

func TestApplyOnNilSets(t *testing.T) {
	room := &model.Room{Kind: model.RoomKindGroup, Users: map[string]model.UserMeta{"alice": {}}}
	p := &Patch{AddToSet: map[string][]string{FieldBlockedUsers: {"zoe"}}}
	next := Apply(room, p)
	if !next.BlockedUsers.Has("zoe") {
		t.Error("addToSet on nil set must create the set")
	}
	p = &Patch{RemoveFromSet: map[string][]string{FieldBlockedUsers: {"zoe"}}}
	if next := Apply(room, p); next.BlockedUsers.Len() != 0 {
		t.Error("removeFromSet on nil set must be a no-op")
	}
}

func TestAnalyze(t *testing.T) {
	prior := groupRoom()
	p := &Patch{
		Set:      map[string]any{FieldName: "renamed"},
		AddToSet: map[string][]string{FieldInvitedUsers: {"zoe"}},
		Users: map[string]*UserPatch{
			"bob":   {Increment: map[string]int64{model.MetaNewMessageCount: 1}},
			"carol": {Delete: true},
			"zoe":   {Set: map[string]int64{model.MetaNewMessageCount: 0}},
		},
	}
	d := Analyze(prior, Apply(prior, p))
	if !d.ScalarChanged(FieldName) {
		t.Error("name change not detected")
	}
	if delta := d.Sets[FieldInvitedUsers]; len(delta.Added) != 1 || delta.Added[0] != "zoe" {
		t.Errorf("invited delta = %+v", delta)
	}
	if len(d.UsersAdded) != 1 || d.UsersAdded[0] != "zoe" {
		t.Errorf("UsersAdded = %v", d.UsersAdded)
	}
	if len(d.UsersRemoved) != 1 || d.UsersRemoved[0] != "carol" {
		t.Errorf("UsersRemoved = %v", d.UsersRemoved)
	}
	if len(d.MetaChanged) != 1 || d.MetaChanged[0] != "bob" {
		t.Errorf("MetaChanged = %v", d.MetaChanged)
	}

	// a value-identical write yields an empty diff
	same := &Patch{Set: map[string]any{FieldName: "general", FieldCreatedAt: int64(1000)}}
	if d := Analyze(prior, Apply(prior, same)); !d.IsEmpty() {
		t.Errorf("identical write must produce empty diff, got %+v", d)
	}
}
