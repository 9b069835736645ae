package liquidator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/marginfi-liquidator/internal/config"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/fixedpoint"
)

func validConfig() *config.Config {
	return &config.Config{
		MarginfiProgramID: "MFv2hWf31Z9kbCa1snEPYctwafyhdvnV7FZnsebVacA",
		MarginfiGroup:     "4qp6Fx6tnZkY5Wropq9wUYgtFxXKwE6viZxFHg3rdAG8",
		LiquidatorAccount: "11111111111111111111111111111111",
		SwapMint:          "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		PreferredMints: []string{
			"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB",
		},
		DustThresholdUSD: 0.01,
	}
}

func TestNewRejectsInvalidProgramID(t *testing.T) {
	cfg := validConfig()
	cfg.MarginfiProgramID = "not-a-pubkey"
	_, err := New(Deps{Config: cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marginfi_program_id")
}

func TestNewRejectsInvalidPreferredMint(t *testing.T) {
	cfg := validConfig()
	cfg.PreferredMints = []string{"garbage"}
	_, err := New(Deps{Config: cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preferred mint")
}

func TestNewSucceedsWithValidConfig(t *testing.T) {
	p, err := New(Deps{Config: validConfig()})
	require.NoError(t, err)
	assert.NotNil(t, p.log)
	assert.Len(t, p.preferredMints, 2)
	assert.True(t, p.dustThresholdUSD.Equal(fixedpoint.MustFromString("0.01")))
}
