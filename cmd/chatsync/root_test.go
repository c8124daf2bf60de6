package main

import (
	"bytes"
	"strings"
	"testing"

	"chatsync/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCommand(t *testing.T) {
	t.Setenv("BRIDGE_SECRET", "s3cret")
	t.Setenv("CHAT_USERNAME", "alice")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"token", "--ttl", "1h"})
	require.NoError(t, root.Execute())

	claims, err := services.ValidateBridgeToken("s3cret", strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims["username"])
}

func TestTokenCommandRequiresSecret(t *testing.T) {
	t.Setenv("BRIDGE_SECRET", "")
	t.Setenv("CHAT_USERNAME", "alice")

	root := newRootCmd()
	root.SetArgs([]string{"token"})
	assert.Error(t, root.Execute())
}

func TestVersionTemplate(t *testing.T) {
	assert.Equal(t, "chatsync dev\n", versionTemplate())
}
