package entity

type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleFaculty UserRole = "faculty"
	RoleStudent UserRole = "student"
)

type UserLoginData struct {
	ID    string
	Email string
	Role  UserRole
}

func (u UserLoginData) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u UserLoginData) CanMarkAttendance() bool {
	return u.Role == RoleAdmin || u.Role == RoleFaculty
}
