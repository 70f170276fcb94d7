package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken string
	AdminIDs      []int64
	ReviewsChatID int64

	CommandPrefix  string
	ReviewImageURL string
	LedgerFile     string
	InputTimeout   time.Duration

	BTCAddress string
	ETHAddress string
	LTCAddress string

	HTTPPort int
}

// Load reads configuration from the environment, with a .env file as
// convenience. Only the bot token is mandatory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: no .env file loaded")
	}

	cfg := &Config{
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		CommandPrefix:  getEnvOrDefault("COMMAND_PREFIX", "!"),
		ReviewImageURL: os.Getenv("REVIEW_IMAGE_URL"),
		LedgerFile:     getEnvOrDefault("LEDGER_FILE", "deal_data.json"),
		InputTimeout:   60 * time.Second,
		BTCAddress:     os.Getenv("BTC_ADDRESS"),
		ETHAddress:     os.Getenv("ETH_ADDRESS"),
		LTCAddress:     os.Getenv("LTC_ADDRESS"),
		HTTPPort:       8080,
	}

	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN must be set")
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.HTTPPort = p
	}

	if raw := os.Getenv("INPUT_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid INPUT_TIMEOUT %q: %w", raw, err)
		}
		cfg.InputTimeout = d
	}

	if raw := os.Getenv("REVIEWS_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid REVIEWS_CHAT_ID %q: %w", raw, err)
		}
		cfg.ReviewsChatID = id
	}

	ids, err := ParseAdminIDs(os.Getenv("STORE_ADMIN_IDS"))
	if err != nil {
		return nil, err
	}
	cfg.AdminIDs = ids

	return cfg, nil
}

// ParseAdminIDs parses a comma-separated list of Telegram user IDs.
// The admin set is static configuration; there is no runtime mutation.
func ParseAdminIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin ID %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
