package wire

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/triage/internal/config"
	"github.com/example/triage/internal/core/escalation"
	"github.com/example/triage/internal/core/patterns"
	"github.com/example/triage/internal/ports/primary"
)

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.DB.Path = ":memory:"
	return cfg
}

func TestNew_EndToEnd(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, 1, c.Notifier.Len())

	a := c.Triage.Analyze(ctx, primary.AnalyzeRequest{
		Text:   "I'm going to kill myself tonight, I have pills ready",
		UserID: "user-1",
	})
	require.Equal(t, patterns.SeverityEmergency, a.Severity)

	esc := c.Escalations.InitiateCrisisEscalation(ctx, primary.InitiateRequest{
		Assessment: a,
		UserID:     "user-1",
		User:       primary.UserContext{Region: "US", Language: "en"},
	})
	assert.Equal(t, escalation.TierEmergencyServices, esc.Tier)

	stored, err := c.Escalations.ListEscalations(ctx, primary.EscalationFilters{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, esc.ID, stored[0].ID)

	assert.Equal(t, int64(1), c.Escalations.GetEscalationMetrics().Total)
	assert.NotNil(t, c.Exporter.Handler())
}

func TestNew_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.Redis.Addr = mr.Addr()

	c, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, c.Notifier.Len())
	require.NoError(t, c.Close())
}

func TestNew_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.Redis.Addr = mr.Addr()
	mr.Close()

	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNew_BadDataFiles(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("crisis: [unterminated\n"), 0644))

	cfg := memoryConfig()
	cfg.Patterns.File = bad
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)

	cfg = memoryConfig()
	cfg.Contacts.File = filepath.Join(dir, "absent.yaml")
	_, err = New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestDefault_BuildsOnce(t *testing.T) {
	ctx := context.Background()
	first, err := Default(ctx, memoryConfig(), nil)
	require.NoError(t, err)
	second, err := Default(ctx, nil, nil)
	require.NoError(t, err)
	assert.Same(t, first, second)

	require.NoError(t, Shutdown())
	assert.NoError(t, Shutdown())
}
