package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
keypair_path: /home/liq/keypair.json
liquidator_account: 11111111111111111111111111111111
rpc_url: https://rpc.example.com
yellowstone_endpoint: wss://yellowstone.example.com
marginfi_program_id: 22222222222222222222222222222222
marginfi_group_address: 33333333333333333333333333333333
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 0.01, cfg.DustThresholdUSD)
	assert.Equal(t, 1.0, cfg.MaxSOLBalance)
	assert.Equal(t, 250, cfg.SlippageBps)
	assert.Equal(t, uint64(10_000), cfg.ComputeUnitPriceUL)
	assert.Equal(t, "https://quote-api.jup.ag/v6", cfg.JupSwapAPIURL)
	assert.ElementsMatch(t, []string{
		"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB",
	}, cfg.PreferredMints)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML+"\nslippage_bps: 500\nmax_sol_balance: 2.5\n"))
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.SlippageBps)
	assert.Equal(t, 2.5, cfg.MaxSOLBalance)
}

func TestValidateCollectsAllMissingRequiredFields(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keypair_path is required")
	assert.Contains(t, err.Error(), "liquidator_account is required")
	assert.Contains(t, err.Error(), "rpc_url is required")
	assert.Contains(t, err.Error(), "yellowstone_endpoint is required")
	assert.Contains(t, err.Error(), "marginfi_program_id is required")
	assert.Contains(t, err.Error(), "marginfi_group_address is required")
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}
