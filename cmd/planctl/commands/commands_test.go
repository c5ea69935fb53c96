package commands

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentcal/api/internal/auth"
	"contentcal/api/internal/content"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGeneratePrintsPlan(t *testing.T) {
	out, err := execute(t, "generate", "--keywords", "coffee,espresso", "--types", "blog,email", "--start", "2025-03-03", "--seed", "7")
	require.NoError(t, err)

	var plan content.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	require.Len(t, plan, 12)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), plan[0].DueDate.UTC())
	for _, item := range plan {
		assert.True(t, item.IsProvisional())
		assert.Contains(t, []content.ContentType{content.TypeBlog, content.TypeEmail}, item.ContentType)
	}
}

func TestGenerateSeedIsReproducible(t *testing.T) {
	args := []string{"generate", "--keywords", "launch,pricing,roadmap", "--start", "2025-03-03", "--seed", "42"}
	first, err := execute(t, args...)
	require.NoError(t, err)
	second, err := execute(t, args...)
	require.NoError(t, err)

	var a, b content.Plan
	require.NoError(t, json.Unmarshal([]byte(first), &a))
	require.NoError(t, json.Unmarshal([]byte(second), &b))
	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].Title, b[i].Title)
		assert.Equal(t, a[i].Keywords, b[i].Keywords)
	}
}

func TestGenerateRejectsBadInput(t *testing.T) {
	_, err := execute(t, "generate", "--keywords", "coffee", "--start", "03/03/2025")
	assert.ErrorContains(t, err, "--start must be YYYY-MM-DD")

	_, err = execute(t, "generate", "--keywords", "coffee", "--types", "podcast")
	assert.ErrorIs(t, err, content.ErrValidation)

	_, err = execute(t, "generate")
	assert.ErrorContains(t, err, "keywords")
}

func TestTokenIssuesVerifiableToken(t *testing.T) {
	t.Setenv("CONTENTCAL_JWT_SECRET", "cli-secret")
	out, err := execute(t, "token", "--user", "user-9", "--ttl", "5m")
	require.NoError(t, err)

	claims, err := auth.ParseToken([]byte("cli-secret"), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "user-9", claims.UserID())
}

func TestRootListsCommands(t *testing.T) {
	out, err := execute(t)
	require.NoError(t, err)
	for _, name := range []string{"generate", "migrate", "sweep-locks", "reindex", "notify", "token"} {
		assert.Contains(t, out, name)
	}
}
