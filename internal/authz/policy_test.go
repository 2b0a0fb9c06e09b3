package authz

import (
	"errors"
	"testing"

	"github.com/Israelshecktar/IMS/internal/domain/users"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		role  users.Role
		op    Operation
		allow bool
	}{
		{users.RoleAdmin, OpAdd, true},
		{users.RoleAdmin, OpDelete, true},
		{users.RoleAdmin, OpWithdraw, true},
		{users.RoleMember, OpAdd, false},
		{users.RoleMember, OpUpdate, false},
		{users.RoleMember, OpDelete, false},
		{users.RoleMember, OpScan, false},
		{users.RoleMember, OpUsers, false},
		{users.RoleAdmin, OpUsers, true},
		{users.RoleMember, OpWithdraw, true},
		{users.RoleMember, OpRead, true},
		{users.RoleMember, OpReport, true},
		{users.RoleNone, OpRead, false},
		{users.RoleNone, OpWithdraw, false},
		{users.RoleAdmin, Operation("drop_table"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.op), func(t *testing.T) {
			err := p.Authorize(tt.role, tt.op)
			if tt.allow && err != nil {
				t.Fatalf("expected allow, got %v", err)
			}
			if !tt.allow && !errors.Is(err, ErrForbidden) {
				t.Fatalf("expected ErrForbidden, got %v", err)
			}
		})
	}
}

func TestDirectoryAdminWins(t *testing.T) {
	d := users.NewDirectory([]int64{1}, []int64{1, 2})

	if got := d.Resolve(users.Telegram{ID: 1}).Role; got != users.RoleAdmin {
		t.Errorf("id 1 role = %q", got)
	}
	if got := d.Resolve(users.Telegram{ID: 2}).Role; got != users.RoleMember {
		t.Errorf("id 2 role = %q", got)
	}
	if got := d.Resolve(users.Telegram{ID: 3}).Role; got != users.RoleNone {
		t.Errorf("id 3 role = %q", got)
	}
}

func TestDirectoryListRemembersUsernames(t *testing.T) {
	d := users.NewDirectory([]int64{7}, []int64{3})
	d.Resolve(users.Telegram{ID: 3, Username: "ops"})
	d.Resolve(users.Telegram{ID: 9, Username: "stranger"})

	got := d.List()
	want := []users.User{
		{TelegramID: 3, Username: "ops", Role: users.RoleMember},
		{TelegramID: 7, Role: users.RoleAdmin},
	}
	if len(got) != len(want) {
		t.Fatalf("List = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}
