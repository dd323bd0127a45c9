//go:build integration

package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"paynotify/internal/infrastructure/database"
)

const (
	postgresImage          = "postgres:16-alpine"
	postgresUser           = "notifier"
	postgresPassword       = "secret"
	postgresDatabase       = "paynotify"
	postgresStartupTimeout = 2 * time.Minute
)

// StartPostgres runs a migrated Postgres container for the test and skips the
// test when docker is unavailable.
func StartPostgres(t *testing.T, ctx context.Context) *sql.DB {
	t.Helper()

	port := nat.Port("5432/tcp")
	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{string(port)},
		Env: map[string]string{
			"POSTGRES_USER":     postgresUser,
			"POSTGRES_PASSWORD": postgresPassword,
			"POSTGRES_DB":       postgresDatabase,
		},
		WaitingFor: wait.ForSQL(port, "postgres", func(host string, port nat.Port) string {
			return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
				host, port.Port(), postgresUser, postgresPassword, postgresDatabase)
		}).WithStartupTimeout(postgresStartupTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("resolve host: %v", err)
	}
	mappedPort, err := container.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("resolve port: %v", err)
	}
	portNumber, err := strconv.Atoi(mappedPort.Port())
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	cfg := database.DBConfig{
		Host:     host,
		Port:     portNumber,
		User:     postgresUser,
		Password: postgresPassword,
		DBName:   postgresDatabase,
		SSLMode:  "disable",
	}
	if err := database.RunMigrations(MigrationsDir(t), cfg, zaptest.NewLogger(t)); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	db, err := database.NewPostgresDB(ctx, cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func MigrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("resolve caller")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}
