package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, 0.10, cfg.Payments.FeeRate)
	assert.Equal(t, "mainnet", cfg.Payments.Network)
	assert.NotEmpty(t, cfg.Payments.FacilitatorURL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PLATFORM_FEE_RATE", "0.25")
	t.Setenv("X402_NETWORK", "testnet")
	t.Setenv("X402_PAY_TO_EVM", "0xPLATFORM")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 0.25, cfg.Payments.FeeRate)
	assert.Equal(t, "testnet", cfg.Payments.Network)
	assert.Equal(t, "0xPLATFORM", cfg.Payments.WalletEVM)
}

func TestLoadRejectsBadFeeRate(t *testing.T) {
	for _, raw := range []string{"abc", "-0.1", "1.5"} {
		t.Setenv("PLATFORM_FEE_RATE", raw)
		_, err := Load()
		assert.Error(t, err, raw)
	}
}

func TestNetworkID(t *testing.T) {
	mainnet := PaymentsConfig{Network: "mainnet"}
	assert.Equal(t, "base", mainnet.NetworkID("evm"))
	assert.Equal(t, "solana", mainnet.NetworkID("solana"))

	testnet := PaymentsConfig{Network: "testnet"}
	assert.Equal(t, "base-sepolia", testnet.NetworkID("evm"))
	assert.Equal(t, "solana-devnet", testnet.NetworkID("solana"))
}
