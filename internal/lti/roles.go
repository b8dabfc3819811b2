package lti

// Role is the coarse classification of a launching user derived from the
// IMS role vocabulary.
type Role int

const (
	// RoleLearner is the default classification.
	RoleLearner Role = iota
	// RoleStaff covers instructors and content developers.
	RoleStaff
	// RoleAdmin covers system and institution administrators.
	RoleAdmin
)

// String implements fmt.Stringer.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleStaff:
		return "staff"
	default:
		return "learner"
	}
}

// Privileged reports whether the role takes the manual account-binding path.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleStaff
}

// adminRoles is the fixed vocabulary of administrator role URIs.
var adminRoles = map[string]struct{}{ //nolint:gochecknoglobals
	"https://purl.imsglobal.org/vocab/lis/v2/system/person#Administrator":      {},
	"https://purl.imsglobal.org/vocab/lis/v2/institution/person#Administrator": {},
}

// staffRoles is the fixed vocabulary of staff role URIs, including the
// deprecated simple names some platforms still send.
var staffRoles = map[string]struct{}{ //nolint:gochecknoglobals
	"https://purl.imsglobal.org/vocab/lis/v2/membership#Instructor":        {},
	"https://purl.imsglobal.org/vocab/lis/v2/membership#ContentDeveloper":  {},
	"https://purl.imsglobal.org/vocab/lis/v2/institution/person#Instructor": {},
	"Instructor":       {},
	"ContentDeveloper": {},
}

// ClassifyRoles maps the roles claim onto the tagged Role classification.
// Admin URIs win over staff URIs; anything else is a learner.
func ClassifyRoles(roles []string) Role {
	out := RoleLearner

	for _, r := range roles {
		if _, ok := adminRoles[r]; ok {
			return RoleAdmin
		}

		if _, ok := staffRoles[r]; ok {
			out = RoleStaff
		}
	}

	return out
}
