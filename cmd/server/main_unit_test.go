package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"aa-wallet.backend/internal/config"
	plog "aa-wallet.backend/pkg/logger"
	"aa-wallet.backend/pkg/redis"
)

func withMainHooks(t *testing.T) {
	t.Helper()
	origLoadDotenv := loadDotenv
	origLoadCfg := loadCfg
	origInitLog := initLog
	origInitRedis := initRedis
	origOpenDB := openDB
	origMigrate := migrate
	origRunServer := runServer

	t.Cleanup(func() {
		loadDotenv = origLoadDotenv
		loadCfg = origLoadCfg
		initLog = origInitLog
		initRedis = origInitRedis
		openDB = origOpenDB
		migrate = origMigrate
		runServer = origRunServer
	})

	loadDotenv = func(...string) error { return nil }
	initLog = plog.Init
}

func baseTestConfig() *config.Config {
	cfg := config.Load()
	cfg.Server = config.ServerConfig{Port: "18080", Env: "development"}
	cfg.Database = config.DatabaseConfig{Driver: "sqlite", SQLitePath: ":memory:"}
	cfg.Redis = config.RedisConfig{}
	cfg.JWT = config.JWTConfig{Secret: "secret", AccessExpiry: 15 * time.Minute}
	cfg.Paymaster.Interval = time.Hour
	return cfg
}

func memoryDB(name string) func(config.DatabaseConfig) (*gorm.DB, error) {
	return func(config.DatabaseConfig) (*gorm.DB, error) {
		return gorm.Open(sqlite.Open(fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())), &gorm.Config{})
	}
}

func TestRunMainProcess_RedisInitError(t *testing.T) {
	withMainHooks(t)

	loadCfg = func() *config.Config {
		cfg := baseTestConfig()
		cfg.Redis.URL = "redis://localhost:6379"
		return cfg
	}
	initRedis = func(string, string) error { return errors.New("redis down") }

	require.Error(t, runMainProcess())
}

func TestRunMainProcess_RedisDisabledSkipsInit(t *testing.T) {
	withMainHooks(t)

	loadCfg = baseTestConfig
	initRedis = func(string, string) error {
		t.Fatal("redis must not be initialized without REDIS_URL")
		return nil
	}
	openDB = memoryDB("main_no_redis")
	runServer = func(context.Context, *gin.Engine, string) error { return nil }

	require.NoError(t, runMainProcess())
}

func TestRunMainProcess_DBOpenError(t *testing.T) {
	withMainHooks(t)

	loadCfg = baseTestConfig
	openDB = func(config.DatabaseConfig) (*gorm.DB, error) { return nil, errors.New("db open failed") }

	require.Error(t, runMainProcess())
}

func TestRunMainProcess_MigrateError(t *testing.T) {
	withMainHooks(t)

	loadCfg = baseTestConfig
	openDB = memoryDB("main_migrate_err")
	migrate = func(*gorm.DB) error { return errors.New("migrate failed") }

	err := runMainProcess()
	require.Error(t, err)
	require.Contains(t, err.Error(), "migrate")
}

func TestRunMainProcess_ServerRunError(t *testing.T) {
	withMainHooks(t)

	loadCfg = baseTestConfig
	openDB = memoryDB("main_server_err")
	runServer = func(context.Context, *gin.Engine, string) error { return errors.New("listen failed") }

	require.Error(t, runMainProcess())
}

func TestRunMainProcess_SuccessPathWithRedis(t *testing.T) {
	withMainHooks(t)

	srv := miniredis.RunT(t)
	loadCfg = func() *config.Config {
		cfg := baseTestConfig()
		cfg.Redis.URL = "redis://" + srv.Addr()
		return cfg
	}
	initRedis = redis.Init
	openDB = memoryDB("main_success")

	var routes gin.RoutesInfo
	runServer = func(ctx context.Context, r *gin.Engine, port string) error {
		require.NotNil(t, ctx)
		require.Equal(t, "18080", port)
		routes = r.Routes()
		return nil
	}

	require.NoError(t, runMainProcess())
	require.NotEmpty(t, routes)
}

func TestOpenDB_SQLite(t *testing.T) {
	db, err := openDB(config.DatabaseConfig{Driver: "sqlite", SQLitePath: "file:open_db_sqlite?mode=memory&cache=shared"})
	require.NoError(t, err)
	require.NoError(t, migrate(db))
	sqlDB, err := getStdDB(db)
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return fmt.Sprint(port)
}

func TestServeHTTP_ShutsDownWhenContextEnds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	port := freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveHTTP(ctx, r, port) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:" + port + "/ping")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server kept running after shutdown")
	}

	_, err := http.Get("http://127.0.0.1:" + port + "/ping")
	require.Error(t, err)
}

func TestServeHTTP_ListenError(t *testing.T) {
	err := serveHTTP(context.Background(), gin.New(), "invalid-port")
	require.Error(t, err)
}
