package lti

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRoles(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  Role
	}{
		{
			name: "no roles defaults to learner",
			want: RoleLearner,
		},
		{
			name:  "learner",
			roles: []string{"https://purl.imsglobal.org/vocab/lis/v2/membership#Learner"},
			want:  RoleLearner,
		},
		{
			name:  "instructor",
			roles: []string{"https://purl.imsglobal.org/vocab/lis/v2/membership#Instructor"},
			want:  RoleStaff,
		},
		{
			name:  "content developer",
			roles: []string{"https://purl.imsglobal.org/vocab/lis/v2/membership#ContentDeveloper"},
			want:  RoleStaff,
		},
		{
			name:  "deprecated simple name",
			roles: []string{"Instructor"},
			want:  RoleStaff,
		},
		{
			name:  "system administrator",
			roles: []string{"https://purl.imsglobal.org/vocab/lis/v2/system/person#Administrator"},
			want:  RoleAdmin,
		},
		{
			name: "admin wins over staff",
			roles: []string{
				"https://purl.imsglobal.org/vocab/lis/v2/membership#Instructor",
				"https://purl.imsglobal.org/vocab/lis/v2/institution/person#Administrator",
			},
			want: RoleAdmin,
		},
		{
			name:  "unknown role is ignored",
			roles: []string{"https://example.org/roles#Wizard"},
			want:  RoleLearner,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRoles(tt.roles))
		})
	}
}

func TestRolePrivileged(t *testing.T) {
	assert.False(t, RoleLearner.Privileged())
	assert.True(t, RoleStaff.Privileged())
	assert.True(t, RoleAdmin.Privileged())
}
