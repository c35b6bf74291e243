//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskmanager/apiserver/config"
	"github.com/taskmanager/apiserver/internal/db"
	"github.com/taskmanager/apiserver/internal/server"
)

const (
	serverPort    = 18080
	adminPassword = "Adm1n!e2e-pass"
	userPassword  = "Secr3t!pass"
)

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	setEnv()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestAccountAndTaskLifecycle(t *testing.T) {
	suffix := time.Now().UnixNano()
	alice := fmt.Sprintf("alice_%d", suffix)
	bob := fmt.Sprintf("bob_%d", suffix)

	aliceToken := registerAndLogin(t, alice)
	bobToken := registerAndLogin(t, bob)

	var me struct {
		Username    string   `json:"username"`
		Permissions []string `json:"permissions"`
	}
	status := call(t, http.MethodGet, "/auth/me", nil, aliceToken, &me)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, alice, me.Username)
	assert.ElementsMatch(t, []string{"READ_PRIVILEGES", "ROLE_BASIC"}, me.Permissions)

	var task struct {
		ID    int    `json:"id"`
		Owner string `json:"owner"`
		Title string `json:"title"`
		State string `json:"state"`
	}
	status = call(t, http.MethodPost, "/tasks", map[string]string{"title": "Write report"}, aliceToken, &task)
	require.Equal(t, http.StatusCreated, status)
	require.NotZero(t, task.ID)
	assert.Equal(t, alice, task.Owner)
	assert.Equal(t, "PENDING", task.State)

	taskPath := fmt.Sprintf("/tasks/%d", task.ID)
	assert.Equal(t, http.StatusForbidden, call(t, http.MethodGet, taskPath, nil, bobToken, nil))
	assert.Equal(t, http.StatusUnauthorized, call(t, http.MethodGet, taskPath, nil, "", nil))

	adminToken := login(t, "admin", adminPassword)
	assert.Equal(t, http.StatusOK, call(t, http.MethodGet, taskPath, nil, adminToken, nil))
	assert.Equal(t, http.StatusForbidden, call(t, http.MethodGet, "/roles", nil, aliceToken, nil))
	assert.Equal(t, http.StatusOK, call(t, http.MethodGet, "/roles", nil, adminToken, nil))

	assert.Equal(t, http.StatusNoContent, call(t, http.MethodDelete, taskPath, nil, aliceToken, nil))
	assert.Equal(t, http.StatusNotFound, call(t, http.MethodGet, taskPath, nil, aliceToken, nil))
}

func TestDuplicateRegistration(t *testing.T) {
	username := fmt.Sprintf("carol_%d", time.Now().UnixNano())
	registerAndLogin(t, username)

	var result struct {
		ErrorCount    int      `json:"errorCount"`
		ErrorMessages []string `json:"errorMessages"`
	}
	status := call(t, http.MethodPost, "/auth/register", registration(username), "", &result)
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 1, result.ErrorCount)
	assert.Equal(t, []string{"User already registered!"}, result.ErrorMessages)
}

func registration(username string) map[string]any {
	return map[string]any{
		"username": username,
		"email":    username + "@example.com",
		"password": userPassword,
		"age":      30,
	}
}

func registerAndLogin(t *testing.T, username string) string {
	t.Helper()
	status := call(t, http.MethodPost, "/auth/register", registration(username), "", nil)
	require.Equal(t, http.StatusCreated, status)
	return login(t, username, userPassword)
}

func login(t *testing.T, username, password string) string {
	t.Helper()
	var parsed struct {
		Token string `json:"token"`
	}
	status := call(t, http.MethodPost, "/auth/login", map[string]string{"username": username, "password": password}, "", &parsed)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, parsed.Token)
	return parsed.Token
}

func call(t *testing.T, method, path string, body any, token string, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, out), strings.TrimSpace(string(data)))
	}
	return resp.StatusCode
}

func setEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("STORE_BACKEND", "postgres")
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "taskmanager")
	_ = os.Setenv("DB_PASSWORD", "password")
	_ = os.Setenv("DB_NAME", "taskmanager_db")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("ADMIN_PASSWORD", adminPassword)
	_ = os.Setenv("MQ_BACKEND", "memory")
}

func waitForPostgres(ctx context.Context) error {
	conn, err := sql.Open("postgres", db.PostgresURL(config.LoadConfig()))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return errors.New("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")

	migrator, err := migrate.New(migrationsURL, db.PostgresURL(config.LoadConfig()))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func startServer(ctx context.Context) (*server.Server, error) {
	srv, err := server.New(ctx, config.LoadConfig())
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
