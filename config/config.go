package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
)

type Config struct {
	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	AdminChatID      int64  `mapstructure:"ADMIN_CHAT_ID"`
	DB_URL           string `mapstructure:"DB_URL"`

	SolanaRPCURL        string `mapstructure:"SOLANA_RPC_URL"`
	TreasuryAddress     string `mapstructure:"TREASURY_ADDRESS"`
	TreasuryPrivateKey  string `mapstructure:"TREASURY_PRIVATE_KEY"`
	USDTMint            string `mapstructure:"USDT_MINT"`
	TreasuryUSDTAccount string `mapstructure:"TREASURY_USDT_ACCOUNT"`

	AutoApprovalLimitUSD   float64 `mapstructure:"AUTO_APPROVAL_LIMIT_USD"`
	ManualApprovalLimitUSD float64 `mapstructure:"MANUAL_APPROVAL_LIMIT_USD"`
	ApprovalExpiryHours    int     `mapstructure:"APPROVAL_EXPIRY_HOURS"`
	MultiSigApprovals      int     `mapstructure:"MULTI_SIG_APPROVALS"`

	DailyLimitSOL     float64 `mapstructure:"DAILY_LIMIT_SOL"`
	DailyLimitUSDT    float64 `mapstructure:"DAILY_LIMIT_USDT"`
	MinWithdrawalSOL  float64 `mapstructure:"MIN_WITHDRAWAL_SOL"`
	MinWithdrawalUSDT float64 `mapstructure:"MIN_WITHDRAWAL_USDT"`
	NetworkFeeSOL     float64 `mapstructure:"NETWORK_FEE_SOL"`
	NetworkFeeUSDT    float64 `mapstructure:"NETWORK_FEE_USDT"`

	RequiredConfirmations uint64 `mapstructure:"REQUIRED_CONFIRMATIONS"`
	RateTTLSeconds        int    `mapstructure:"RATE_TTL_SECONDS"`
	BroadcastTimeoutSec   int    `mapstructure:"BROADCAST_TIMEOUT_SECONDS"`

	BettingWindowSeconds int `mapstructure:"BETTING_WINDOW_SECONDS"`
	RoundCooldownSeconds int `mapstructure:"ROUND_COOLDOWN_SECONDS"`
}

func LoadConfig(path string) (config Config, err error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return config, fmt.Errorf("failed to resolve config path: %w", err)
	}

	viper.AddConfigPath(filepath.Dir(absPath))
	viper.SetConfigName(filepath.Base(absPath))
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return config, fmt.Errorf("failed to read config: %w", err)
	}

	if err := viper.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return config, nil
}

func setDefaults() {
	viper.SetDefault("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	viper.SetDefault("USDT_MINT", "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")

	viper.SetDefault("AUTO_APPROVAL_LIMIT_USD", 100.0)
	viper.SetDefault("MANUAL_APPROVAL_LIMIT_USD", 1000.0)
	viper.SetDefault("APPROVAL_EXPIRY_HOURS", 24)
	viper.SetDefault("MULTI_SIG_APPROVALS", 2)

	viper.SetDefault("DAILY_LIMIT_SOL", 50.0)
	viper.SetDefault("DAILY_LIMIT_USDT", 5000.0)
	viper.SetDefault("MIN_WITHDRAWAL_SOL", 0.01)
	viper.SetDefault("MIN_WITHDRAWAL_USDT", 5.0)
	viper.SetDefault("NETWORK_FEE_SOL", 0.000005)
	viper.SetDefault("NETWORK_FEE_USDT", 0.001)

	viper.SetDefault("REQUIRED_CONFIRMATIONS", 32)
	viper.SetDefault("RATE_TTL_SECONDS", 60)
	viper.SetDefault("BROADCAST_TIMEOUT_SECONDS", 30)

	viper.SetDefault("BETTING_WINDOW_SECONDS", 10)
	viper.SetDefault("ROUND_COOLDOWN_SECONDS", 5)
}
