// Package identity models users, their roles and the per-login session.
package identity

import (
	"strings"

	"github.com/edupredict/student-insight/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROLE
// ══════════════════════════════════════════════════════════════════════════════

// RoleName is the persisted form of a role.
type RoleName string

const (
	RoleAdmin   RoleName = "admin"
	RoleTeacher RoleName = "teacher"
	RoleStudent RoleName = "student"
)

// Role is a closed variant: only Admin, Teacher and Student implement it.
// Use MatchRole to dispatch on it; the compiler then requires a branch per role.
type Role interface {
	Name() RoleName
	sealed()
}

// Admin manages the roster.
type Admin struct{}

// Teacher sees the roster and receives high-risk alerts.
type Teacher struct{}

// Student sees only their own record.
type Student struct{}

func (Admin) Name() RoleName   { return RoleAdmin }
func (Teacher) Name() RoleName { return RoleTeacher }
func (Student) Name() RoleName { return RoleStudent }

func (Admin) sealed()   {}
func (Teacher) sealed() {}
func (Student) sealed() {}

// RoleMatcher holds one branch per role.
type RoleMatcher[T any] struct {
	Admin   func(Admin) T
	Teacher func(Teacher) T
	Student func(Student) T
}

// MatchRole calls the branch for r. Every branch must be set.
func MatchRole[T any](r Role, m RoleMatcher[T]) T {
	switch v := r.(type) {
	case Admin:
		return m.Admin(v)
	case Teacher:
		return m.Teacher(v)
	case Student:
		return m.Student(v)
	}
	// unreachable: Role is sealed
	panic("identity: unknown role variant")
}

// ParseRole converts a stored role name into its variant.
func ParseRole(name string) (Role, error) {
	switch RoleName(strings.ToLower(strings.TrimSpace(name))) {
	case RoleAdmin:
		return Admin{}, nil
	case RoleTeacher:
		return Teacher{}, nil
	case RoleStudent:
		return Student{}, nil
	}
	return nil, shared.ErrInvalidRole
}

// CanManageRoster reports whether the role may add, edit, delete, import and
// export records.
func CanManageRoster(r Role) bool {
	return MatchRole(r, RoleMatcher[bool]{
		Admin:   func(Admin) bool { return true },
		Teacher: func(Teacher) bool { return true },
		Student: func(Student) bool { return false },
	})
}

// CanViewRoster reports whether the role may see other students.
func CanViewRoster(r Role) bool {
	return CanManageRoster(r)
}
