// Package config defines the liquidator bot's configuration. Config is
// loaded from a YAML file whose keys include every key of spec §6's table
// plus operational extras (RPC rate limit, reconciliation interval, Redis
// and ClickHouse settings), with defaults applied for everything but the
// required fields.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration record (spec §6).
type Config struct {
	KeypairPath        string   `mapstructure:"keypair_path"`
	LiquidatorAccount  string   `mapstructure:"liquidator_account"`
	DustThresholdUSD   float64  `mapstructure:"token_account_dust_threshold"`
	MaxSOLBalance      float64  `mapstructure:"max_sol_balance"`
	PreferredMints     []string `mapstructure:"preferred_mints"`
	SwapMint           string   `mapstructure:"swap_mint"`
	JupSwapAPIURL      string   `mapstructure:"jup_swap_api_url"`
	SlippageBps        int      `mapstructure:"slippage_bps"`
	ComputeUnitPriceUL uint64   `mapstructure:"compute_unit_price_micro_lamports"`
	RPCURL             string   `mapstructure:"rpc_url"`
	RPCRequestsPerSec  float64  `mapstructure:"rpc_requests_per_second"`
	YellowstoneURL     string   `mapstructure:"yellowstone_endpoint"`
	YellowstoneXToken  string   `mapstructure:"yellowstone_x_token"`
	MarginfiProgramID  string   `mapstructure:"marginfi_program_id"`
	MarginfiGroup      string   `mapstructure:"marginfi_group_address"`

	// ReconciliationInterval bounds the periodic RPC reconciliation poller
	// (spec §1, §5) that runs alongside the streaming feed.
	ReconciliationInterval time.Duration `mapstructure:"reconciliation_interval"`

	// RedisAddr backs the kill-switch flag store (internal/flags). Empty
	// disables it: a missing kill switch must never itself stop the bot
	// from operating.
	RedisAddr string `mapstructure:"redis_addr"`

	// ClickHouse* back the telemetry sink (internal/telemetry). Empty
	// ClickHouseAddr disables it entirely; telemetry failures never
	// affect the liquidation decision path either way.
	ClickHouseAddr     string `mapstructure:"clickhouse_addr"`
	ClickHouseDatabase string `mapstructure:"clickhouse_database"`
	ClickHouseUsername string `mapstructure:"clickhouse_username"`
	ClickHousePassword string `mapstructure:"clickhouse_password"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("token_account_dust_threshold", 0.01)
	v.SetDefault("max_sol_balance", 1.0)
	v.SetDefault("preferred_mints", []string{
		"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", // USDC
		"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", // USDT
	})
	v.SetDefault("swap_mint", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	v.SetDefault("jup_swap_api_url", "https://quote-api.jup.ag/v6")
	v.SetDefault("slippage_bps", 250)
	v.SetDefault("compute_unit_price_micro_lamports", 10_000)
	v.SetDefault("reconciliation_interval", 60*time.Second)
	v.SetDefault("rpc_requests_per_second", 10.0)
	v.SetDefault("clickhouse_database", "liquidator")
}

// Load reads config from a YAML (or JSON/TOML) file at path, applying
// spec §6's defaults for every optional field and allowing env-var
// overrides prefixed LIQ_ (e.g. LIQ_RPC_URL).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("LIQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &cfg, nil
}

// Validate checks every required field, collecting all violations rather
// than stopping at the first (spec §7's setup-error class: "missing
// liquidator account, unreadable keypair, unreachable RPC, unknown swap
// mint" are all fatal at startup).
func (c *Config) Validate() error {
	var problems []string

	if c.KeypairPath == "" {
		problems = append(problems, "keypair_path is required")
	}
	if c.LiquidatorAccount == "" {
		problems = append(problems, "liquidator_account is required")
	}
	if c.RPCURL == "" {
		problems = append(problems, "rpc_url is required")
	}
	if c.YellowstoneURL == "" {
		problems = append(problems, "yellowstone_endpoint is required")
	}
	if c.MarginfiProgramID == "" {
		problems = append(problems, "marginfi_program_id is required")
	}
	if c.MarginfiGroup == "" {
		problems = append(problems, "marginfi_group_address is required")
	}
	if c.SwapMint == "" {
		problems = append(problems, "swap_mint is required")
	}
	if c.DustThresholdUSD < 0 {
		problems = append(problems, "token_account_dust_threshold must be >= 0")
	}
	if c.MaxSOLBalance < 0 {
		problems = append(problems, "max_sol_balance must be >= 0")
	}
	if c.SlippageBps <= 0 {
		problems = append(problems, "slippage_bps must be > 0")
	}
	if len(c.PreferredMints) == 0 {
		problems = append(problems, "preferred_mints must not be empty")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}
