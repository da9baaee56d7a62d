package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	JWTSecret string
	AppSecret string
	TokenTTL  int // hours

	DB     DBConfig
	Ledger LedgerConfig

	FaceModelURL       string
	IdentityAPIKey     string
	IdentityTemplateID string
	IdentityEnv        string
	OffRampAddress     string
	OffRampDestTag     int
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type LedgerConfig struct {
	ConfigPath   string
	Channel      string
	Contract     string
	MSPID        string
	CertPath     string
	KeyPath      string
	Network      string  // mainnet, testnet, devnet
	USDRate      float64 // USD per native ledger token
	SubmitWaitS  int     // seconds to wait for a submitted transfer
}

func Load() *Config {
	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	return &Config{
		Port:      getEnv("PORT", "8080"),
		JWTSecret: getEnv("JWT_SECRET", "jwt-dev"),
		AppSecret: getEnv("APP_SECRET", "dev-secret"),
		TokenTTL:  GetEnvInt("ACCESS_TOKEN_EXPIRE_HOURS", 24),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "aidledger"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Ledger: LedgerConfig{
			ConfigPath:  getEnv("LEDGER_CONFIG", "connection-profile.yaml"),
			Channel:     getEnv("LEDGER_CHANNEL", "aid-main-channel"),
			Contract:    getEnv("LEDGER_CONTRACT", "aid-core"),
			MSPID:       getEnv("MSP_ID", "ReliefRootMSP"),
			CertPath:    getEnv("CERT_PATH", ""),
			KeyPath:     getEnv("KEY_PATH", ""),
			Network:     strings.ToUpper(getEnv("LEDGER_NETWORK", "TESTNET")),
			USDRate:     getEnvFloat("LEDGER_USD_RATE", 2.0),
			SubmitWaitS: GetEnvInt("LEDGER_SUBMIT_WAIT_S", 20),
		},
		FaceModelURL:       getEnv("FACE_MODEL_URL", ""),
		IdentityAPIKey:     getEnv("IDENTITY_API_KEY", ""),
		IdentityTemplateID: getEnv("IDENTITY_TEMPLATE_ID", ""),
		IdentityEnv:        getEnv("IDENTITY_ENV", "sandbox"),
		OffRampAddress:     getEnv("OFFRAMP_DEPOSIT_ADDRESS", ""),
		OffRampDestTag:     GetEnvInt("OFFRAMP_DEST_TAG", 0),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func GetEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}
