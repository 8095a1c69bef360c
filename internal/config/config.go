package config

import (
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config holds all configuration values
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Operator  OperatorConfig
	Ledger    LedgerConfig
	Paymaster PaymasterMonitorConfig
	Client    ClientConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

// IsSQLite reports whether the ledger runs on an embedded sqlite file.
func (c DatabaseConfig) IsSQLite() bool {
	return strings.EqualFold(c.Driver, "sqlite")
}

// RedisConfig holds Redis configuration. An empty URL disables the
// idempotency store and the nonce cache.
type RedisConfig struct {
	URL      string
	PASSWORD string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret       string
	AccessExpiry time.Duration
}

// OperatorConfig holds the single admin login.
type OperatorConfig struct {
	Username     string
	PasswordHash string
}

// LedgerConfig holds the hosted chain parameters.
type LedgerConfig struct {
	ChainID        int64
	FeeCollector   common.Address
	FactoryAddress common.Address
	LimitWindow    time.Duration
	GasPrice       *big.Int
	GasPerPubdata  int64
}

// PaymasterMonitorConfig drives the paymaster balance job.
type PaymasterMonitorConfig struct {
	Interval   time.Duration
	LowBalance *big.Int
}

// ClientConfig is read by the sender CLI.
type ClientConfig struct {
	RPCURL     string
	PrivateKey string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvAsInt("DB_PORT", 5432),
			User:       getEnv("DB_USER", "postgres"),
			Password:   getEnv("DB_PASSWORD", "postgres"),
			DBName:     getEnv("DB_NAME", "aawallet"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("DB_SQLITE_PATH", "aa-wallet.db"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			PASSWORD: getEnv("REDIS_PASSWORD", ""),
		},
		JWT: JWTConfig{
			Secret:       getEnv("JWT_SECRET", "change-this-in-production"),
			AccessExpiry: getEnvAsDuration("JWT_ACCESS_EXPIRY", time.Hour),
		},
		Operator: OperatorConfig{
			Username:     getEnv("OPERATOR_USERNAME", "operator"),
			PasswordHash: getEnv("OPERATOR_PASSWORD_HASH", ""),
		},
		Ledger: LedgerConfig{
			ChainID:        int64(getEnvAsInt("LEDGER_CHAIN_ID", 270)),
			FeeCollector:   getEnvAsAddress("LEDGER_FEE_COLLECTOR", common.HexToAddress("0x0000000000000000000000000000000000008001")),
			FactoryAddress: getEnvAsAddress("LEDGER_FACTORY_ADDRESS", common.HexToAddress("0x0000000000000000000000000000000000008006")),
			LimitWindow:    getEnvAsDuration("LEDGER_LIMIT_WINDOW", 24*time.Hour),
			GasPrice:       getEnvAsBigInt("LEDGER_GAS_PRICE", big.NewInt(250_000_000)),
			GasPerPubdata:  int64(getEnvAsInt("LEDGER_GAS_PER_PUBDATA", 50000)),
		},
		Paymaster: PaymasterMonitorConfig{
			Interval:   getEnvAsDuration("PAYMASTER_MONITOR_INTERVAL", time.Minute),
			LowBalance: getEnvAsBigInt("PAYMASTER_LOW_BALANCE", big.NewInt(1_000_000_000_000_000)),
		},
		Client: ClientConfig{
			RPCURL:     getEnv("RPC_URL", "http://localhost:8080/rpc"),
			PrivateKey: getEnv("PRIVATE_KEY", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsBigInt(key string, defaultValue *big.Int) *big.Int {
	if value := os.Getenv(key); value != "" {
		if v, ok := new(big.Int).SetString(value, 10); ok && v.Sign() >= 0 {
			return v
		}
	}
	return defaultValue
}

func getEnvAsAddress(key string, defaultValue common.Address) common.Address {
	if value := os.Getenv(key); common.IsHexAddress(value) {
		return common.HexToAddress(value)
	}
	return defaultValue
}
