package auth

import "strings"

// Role is an API access level. Higher roles include the lower ones.
type Role string

const (
	// RoleViewer reads history, estimates, the ledger and the PDF report.
	RoleViewer Role = "viewer"
	// RoleOperator may also trigger pipeline runs.
	RoleOperator Role = "operator"
	// RoleAdmin may also download the full workbook.
	RoleAdmin Role = "admin"
)

var roleRanks = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// NormalizeRole parses a role claim, ignoring case and surrounding space.
func NormalizeRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := roleRanks[role]; !ok {
		return "", false
	}
	return role, true
}

// RoleAtLeast reports whether role satisfies required. Unknown roles satisfy nothing.
func RoleAtLeast(role Role, required Role) bool {
	rank, ok := roleRanks[role]
	return ok && rank >= roleRanks[required]
}
