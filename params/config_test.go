package params

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_MatchesBaseline(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "ait-devnet", cfg.ChainID)
	assert.Equal(t, 2, cfg.BlockTimeSeconds)
	assert.Equal(t, "memory", cfg.MempoolBackend)
	assert.True(t, cfg.SyncValidateSignatures)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("CHAIN_ID", "custom-chain")
	t.Setenv("BLOCK_TIME_SECONDS", "5")
	t.Setenv("TRUSTED_PROPOSERS", "a, b ,c")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "custom-chain", cfg.ChainID)
	assert.Equal(t, 5, cfg.BlockTimeSeconds)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.TrustedProposers)
}

func TestLoad_MalformedIntEnvIsIgnored(t *testing.T) {
	t.Setenv("BLOCK_TIME_SECONDS", "not-a-number")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().BlockTimeSeconds, cfg.BlockTimeSeconds)
}

func TestLoad_TOMLOverlayThenEnvWins(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "config-*.toml")
	require.NoError(t, err)
	_, err = f.WriteString("chain_id = \"from-toml\"\nblock_time_seconds = 7\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	t.Setenv("BLOCK_TIME_SECONDS", "9")

	cfg, err := Load(f.Name())
	require.NoError(t, err)
	assert.Equal(t, "from-toml", cfg.ChainID)
	assert.Equal(t, 9, cfg.BlockTimeSeconds, "env var must win over the TOML overlay")
}
