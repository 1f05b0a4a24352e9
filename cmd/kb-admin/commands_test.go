package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "migrate")
	assert.Contains(t, names, "create-user")

	create, _, err := root.Find([]string{"create-user"})
	require.NoError(t, err)
	for _, flag := range []string{"username", "password", "name", "role", "supervisor-type"} {
		assert.NotNil(t, create.Flags().Lookup(flag), flag)
	}
	assert.Equal(t, "admin", create.Flags().Lookup("role").DefValue)
}

func TestCreateUserFlagsRequest(t *testing.T) {
	req, err := createUserFlags{username: " alice ", password: "password123", role: "Supervisor", supervisorType: "ibml"}.request()
	require.NoError(t, err)
	assert.Equal(t, "alice", req.Username)
	assert.Equal(t, "alice", req.DisplayName)
	assert.Equal(t, "supervisor", req.Role)
	require.NotNil(t, req.SupervisorType)
	assert.Equal(t, "ibml", *req.SupervisorType)

	_, err = createUserFlags{username: "alice", role: "admin"}.request()
	assert.Error(t, err)

	_, err = createUserFlags{username: "alice", password: "password123", role: "owner"}.request()
	assert.Error(t, err)
}
