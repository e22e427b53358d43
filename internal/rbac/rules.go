package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"progress:read-own",
		"progress:write-own",
		"assessment:start",
		"assessment:save",
		"assessment:submit",
		"proctor:report",
		"experience:report",
	},
	"teacher": {
		"progress:read-own",
		"progress:read-all",
		"assessment:review",
		"attempt:view-all",
	},
	"admin": {
		"*", // everything, including gate bypass
	},
}
