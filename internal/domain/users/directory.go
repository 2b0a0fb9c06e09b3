package users

import (
	"slices"
	"sync"
)

// Directory maps Telegram ids to roles. Admin wins when an id is in both lists.
type Directory struct {
	roles map[int64]Role

	mu        sync.Mutex
	usernames map[int64]string
}

func NewDirectory(adminIDs, memberIDs []int64) *Directory {
	d := &Directory{
		roles:     make(map[int64]Role, len(adminIDs)+len(memberIDs)),
		usernames: make(map[int64]string),
	}
	for _, id := range memberIDs {
		d.roles[id] = RoleMember
	}
	for _, id := range adminIDs {
		d.roles[id] = RoleAdmin
	}
	return d
}

// Resolve returns the user for tg; unknown ids get RoleNone.
// The username of a known user is remembered for List.
func (d *Directory) Resolve(tg Telegram) User {
	role := d.roles[tg.ID]
	if role != RoleNone && tg.Username != "" {
		d.mu.Lock()
		d.usernames[tg.ID] = tg.Username
		d.mu.Unlock()
	}
	return User{TelegramID: tg.ID, Username: tg.Username, Role: role}
}

// List returns every configured user ordered by Telegram id.
func (d *Directory) List() []User {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]User, 0, len(d.roles))
	for id, role := range d.roles {
		out = append(out, User{TelegramID: id, Username: d.usernames[id], Role: role})
	}
	slices.SortFunc(out, func(a, b User) int {
		switch {
		case a.TelegramID < b.TelegramID:
			return -1
		case a.TelegramID > b.TelegramID:
			return 1
		}
		return 0
	})
	return out
}
