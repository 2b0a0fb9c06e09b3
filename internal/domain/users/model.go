package users

type Role string

const (
	RoleNone   Role = ""
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

type User struct {
	TelegramID int64
	Username   string
	Role       Role
}

type Telegram struct {
	ID       int64
	Username string
}
