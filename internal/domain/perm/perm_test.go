package perm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRolesLevel(t *testing.T) {
	r := NewRoles([]string{"overlord"}, []string{"staff", "tech"})

	assert.Equal(t, Participant, r.Level(nil))
	assert.Equal(t, Staff, r.Level([]string{"x", "tech"}))
	assert.Equal(t, Admin, r.Level([]string{"staff", "overlord"}))

	assert.True(t, r.Check([]string{"overlord"}, Staff))
	assert.False(t, r.Check([]string{"staff"}, Admin))
	assert.True(t, r.Check(nil, Participant))
}

func TestPermissionOrder(t *testing.T) {
	assert.True(t, Admin.AtLeast(Staff))
	assert.True(t, Staff.AtLeast(Participant))
	assert.False(t, Participant.AtLeast(Staff))
	assert.Equal(t, "admin", Admin.String())
	assert.Equal(t, "none", None.String())
}
