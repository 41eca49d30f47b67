package auth

const (
	PermSubjectsRead   = "subjects.read"
	PermSubjectsWrite  = "subjects.write"
	PermKPIRead        = "kpi.read"
	PermKPIWrite       = "kpi.write"
	PermMonthlyRead    = "monthly.read"
	PermMonthlyCompute = "monthly.compute"
	PermMonthlyLock    = "monthly.lock"
	PermFundsRead      = "funds.read"
	PermFundsWrite     = "funds.write"
	PermReportsRead    = "reports.read"
	PermAuditRead      = "audit.read"
)

var DefaultPermissions = []string{
	PermSubjectsRead,
	PermSubjectsWrite,
	PermKPIRead,
	PermKPIWrite,
	PermMonthlyRead,
	PermMonthlyCompute,
	PermMonthlyLock,
	PermFundsRead,
	PermFundsWrite,
	PermReportsRead,
	PermAuditRead,
}

var RolePermissions = map[string][]string{
	RoleHRAdmin: DefaultPermissions,
	RoleMarker: {
		PermSubjectsRead,
		PermKPIRead,
		PermKPIWrite,
		PermMonthlyRead,
	},
	RoleViewer: {
		PermSubjectsRead,
		PermKPIRead,
		PermMonthlyRead,
		PermFundsRead,
		PermReportsRead,
	},
}

// RoleAllows reports whether the static role table grants permission.
func RoleAllows(role, permission string) bool {
	for _, perm := range RolePermissions[role] {
		if perm == permission {
			return true
		}
	}
	return false
}
