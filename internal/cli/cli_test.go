package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/lead-dispatch/internal/auth"
	"github.com/spec-kit/lead-dispatch/internal/domain"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootHasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range NewRootCmd("").Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"migrate", "sweep", "stats", "token", "settings"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "cli-secret")
	t.Setenv("LOG_LEVEL", "error")

	out, err := run(t, "token", "--broker", "ext-1")
	require.NoError(t, err)
	claims, err := auth.NewTokenManager("cli-secret", 60).ParseToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ext-1", claims.Subject)
	assert.Equal(t, domain.SubjectTypeBroker, claims.SubjectType)

	_, err = run(t, "token", "--broker", "a", "--operator", "b")
	assert.Error(t, err)
}

func TestSettingsCommands(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_ADDR", mr.Addr())
	t.Setenv("LOG_LEVEL", "error")

	out, err := run(t, "settings", "set", "external_sla_minutes", "7")
	require.NoError(t, err)
	assert.Equal(t, "external_sla_minutes=7\n", out)

	out, err = run(t, "settings", "get")
	require.NoError(t, err)
	assert.Contains(t, out, "external_sla_minutes=7")
	assert.Contains(t, out, "max_external_attempts=3")

	_, err = run(t, "settings", "set", "nope", "1")
	assert.Error(t, err)
	_, err = run(t, "settings", "set", "external_sla_minutes", "-1")
	assert.Error(t, err)
}

func TestMigrateRequiresDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("LOG_LEVEL", "error")
	_, err := run(t, "migrate")
	assert.Error(t, err)
}
