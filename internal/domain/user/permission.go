package user

import "slices"

type Permission string

const (
	// Time entries
	PermissionTimeEntryCreateOwn Permission = "time_entry.create_own"
	PermissionTimeEntryViewOwn   Permission = "time_entry.view_own"
	PermissionTimeEntryViewAll   Permission = "time_entry.view_all"
	PermissionTimeEntryApprove   Permission = "time_entry.approve"

	// Payroll runs
	PermissionPayrollView   Permission = "payroll.view"
	PermissionPayrollManage Permission = "payroll.manage"

	// Rate tables
	PermissionRateTableView   Permission = "rate_table.view"
	PermissionRateTableManage Permission = "rate_table.manage"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermissionTimeEntryCreateOwn,
		PermissionTimeEntryViewOwn,
		PermissionTimeEntryViewAll,
		PermissionTimeEntryApprove,
		PermissionPayrollView,
		PermissionPayrollManage,
		PermissionRateTableView,
		PermissionRateTableManage,
	},
	RoleManager: {
		PermissionTimeEntryCreateOwn,
		PermissionTimeEntryViewOwn,
		PermissionTimeEntryViewAll,
		PermissionTimeEntryApprove,
		PermissionPayrollView,
		PermissionRateTableView,
	},
	RoleEmployee: {
		PermissionTimeEntryCreateOwn,
		PermissionTimeEntryViewOwn,
	},
}

func HasPermission(role Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}
	return slices.Contains(permissions, permission)
}
