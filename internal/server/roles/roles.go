// Package roles defines the project role hierarchy and the single rule used
// to compare roles. Lower values are more privileged.
package roles

import "fmt"

type Role int

const (
	None Role = iota
	Admin
	Manager
	Analyst
	Developer
	Viewer
)

var names = map[Role]string{
	Admin:     "Admin",
	Manager:   "Manager",
	Analyst:   "Analyst",
	Developer: "Developer",
	Viewer:    "Viewer",
}

// Top is the role a project creator always holds.
const Top = Admin

func (r Role) Valid() bool {
	_, ok := names[r]
	return ok
}

func (r Role) String() string {
	if n, ok := names[r]; ok {
		return n
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Allows reports whether a member holding actual may perform an action that
// requires required. It is the only place roles are compared for access:
// a role passes every check that asks for itself or anything weaker.
func Allows(actual, required Role) bool {
	if !actual.Valid() || !required.Valid() {
		return false
	}
	return actual <= required
}

// Outranks reports whether r is strictly more privileged than other.
// Member management uses it: a caller may only grant or touch roles
// it outranks.
func Outranks(r, other Role) bool {
	if !r.Valid() || !other.Valid() {
		return false
	}
	return r < other
}
