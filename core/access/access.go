// Package access decides what an authenticated caller may do with attendance data.
// Admins and teachers mark and view everything; parents only view their own children.
// The attendance store and aggregator never call it: they trust their callers.
package access

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/user"
)

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleTeacher Role = "TEACHER"
	RoleParent  Role = "PARENT"
)

var ErrNoRole = errors.New("user has no attendance role")

// Resolver lists the students a parent may see.
type Resolver interface {
	ChildrenOf(ctx context.Context, parentID string) ([]string, error)
}

// Identity is the capability set of a caller.
type Identity struct {
	UserID     string
	Role       Role
	StudentIDs map[string]struct{} // PARENT only
}

// RoleOf picks the highest attendance role of usr.
func RoleOf(usr user.User) (Role, bool) {
	switch {
	case usr.IsAdmin():
		return RoleAdmin, true
	case usr.IsTeacher():
		return RoleTeacher, true
	case usr.IsParent():
		return RoleParent, true
	}
	return "", false
}

// NewIdentity builds the Identity of usr, resolving a parent's children through resolver.
func NewIdentity(ctx context.Context, usr user.User, resolver Resolver) (Identity, error) {
	role, ok := RoleOf(usr)
	if !ok {
		return Identity{}, ErrNoRole
	}
	id := Identity{UserID: usr.ID, Role: role}
	if role != RoleParent {
		return id, nil
	}

	children, err := resolver.ChildrenOf(ctx, usr.ID)
	if err != nil {
		return Identity{}, errors.Wrap(err, "resolving children")
	}
	id.StudentIDs = make(map[string]struct{}, len(children))
	for _, sid := range children {
		id.StudentIDs[sid] = struct{}{}
	}
	return id, nil
}

func (id Identity) isStaff() bool {
	return id.Role == RoleAdmin || id.Role == RoleTeacher
}

func (id Identity) CanMark() bool          { return id.isStaff() }
func (id Identity) CanDelete() bool        { return id.Role == RoleAdmin }
func (id Identity) CanManageRoster() bool  { return id.Role == RoleAdmin }
func (id Identity) CanManageSettings() bool { return id.Role == RoleAdmin }
func (id Identity) CanViewClass() bool     { return id.isStaff() }
func (id Identity) CanViewSchool() bool    { return id.isStaff() }

// CanViewStudent reports whether the caller may read studentID's attendance.
func (id Identity) CanViewStudent(studentID string) bool {
	if id.isStaff() {
		return true
	}
	if id.Role == RoleParent {
		_, ok := id.StudentIDs[studentID]
		return ok
	}
	return false
}

// Children lists the students visible to a parent.
func (id Identity) Children() []string {
	ids := make([]string, 0, len(id.StudentIDs))
	for sid := range id.StudentIDs {
		ids = append(ids, sid)
	}
	return ids
}
