package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

// 容器在包内所有测试间共享，进程退出时由 testcontainers 的 reaper 回收

var (
	pgOnce sync.Once
	pgDSN  string
	pgErr  error

	redisOnce sync.Once
	redisAddr string
	redisErr  error
)

// setupTestDB returns a gorm handle on a fresh schema of a shared Postgres container. Tests are
// skipped under -short or when Docker is unavailable.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres test in short mode")
	}

	pgOnce.Do(func() {
		ctx := context.Background()
		container, err := postgres.Run(ctx, "postgres:16-alpine",
			postgres.WithDatabase("arena"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			pgErr = err
			return
		}
		pgDSN, pgErr = container.ConnectionString(ctx, "sslmode=disable")
	})
	if pgErr != nil {
		t.Skipf("postgres container unavailable: %v", pgErr)
	}

	admin, err := OpenDB(pgDSN)
	require.NoError(t, err)
	adminSQL, err := admin.DB()
	require.NoError(t, err)

	// 每个测试独立 schema，通过 DSN 的 search_path 作用到池中所有连接
	schema := fmt.Sprintf("t_%d", time.Now().UnixNano())
	require.NoError(t, admin.Exec("CREATE SCHEMA "+schema).Error)

	db, err := OpenDB(pgDSN + "&search_path=" + schema)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
		admin.Exec("DROP SCHEMA " + schema + " CASCADE")
		adminSQL.Close()
	})
	return db
}

// setupTestRedis returns a client on a shared Redis container, flushed before use.
func setupTestRedis(t *testing.T) *RedisClient {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis test in short mode")
	}

	redisOnce.Do(func() {
		ctx := context.Background()
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "redis:7-alpine",
				ExposedPorts: []string{"6379/tcp"},
				WaitingFor:   wait.ForLog("Ready to accept connections"),
			},
			Started: true,
		})
		if err != nil {
			redisErr = err
			return
		}
		redisAddr, redisErr = container.Endpoint(ctx, "")
	})
	if redisErr != nil {
		t.Skipf("redis container unavailable: %v", redisErr)
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	require.NoError(t, rdb.FlushDB(context.Background()).Err())
	t.Cleanup(func() { rdb.Close() })
	return NewRedisClientFrom(rdb)
}
