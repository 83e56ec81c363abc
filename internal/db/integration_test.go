//go:build integration

package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/crewdesk/internal/config"
	"github.com/zulandar/crewdesk/internal/kv"
	"gorm.io/gorm"
)

// testDoltServer manages a Dolt SQL server lifecycle for integration tests.
type testDoltServer struct {
	Port int
	Dir  string
	cmd  *exec.Cmd
}

// startDoltServer initializes a Dolt repo in a temp directory and starts
// dolt sql-server on a free port. The server is automatically stopped
// when the test completes.
func startDoltServer(t *testing.T) *testDoltServer {
	t.Helper()

	dir := t.TempDir()

	// Configure dolt identity for the temp repo
	for _, kv := range [][2]string{
		{"user.name", "Test Runner"},
		{"user.email", "test@crewdesk.dev"},
	} {
		cfg := exec.Command("dolt", "config", "--global", "--add", kv[0], kv[1])
		cfg.Dir = dir
		cfg.CombinedOutput() // ignore errors if already set
	}

	// Initialize dolt repo
	init := exec.Command("dolt", "init")
	init.Dir = dir
	if out, err := init.CombinedOutput(); err != nil {
		t.Fatalf("dolt init: %s\n%s", err, out)
	}

	port := freePort(t)

	cmd := exec.Command("dolt", "sql-server",
		"--port", fmt.Sprintf("%d", port),
		"--host", "127.0.0.1",
	)
	cmd.Dir = dir

	if err := cmd.Start(); err != nil {
		t.Fatalf("dolt sql-server start: %v", err)
	}

	srv := &testDoltServer{Port: port, Dir: dir, cmd: cmd}

	t.Cleanup(func() {
		srv.cmd.Process.Kill()
		srv.cmd.Wait()
	})

	waitForServer(t, port)
	return srv
}

// freePort finds an available TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

// waitForServer polls until the Dolt server accepts TCP connections.
func waitForServer(t *testing.T, port int) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("dolt sql-server not ready on port %d after 10s", port)
}

// migratedDB starts a server, creates name and migrates it.
func migratedDB(t *testing.T, name string) (*testDoltServer, *gorm.DB) {
	t.Helper()
	srv := startDoltServer(t)
	adminDB, err := ConnectAdmin("root", "127.0.0.1", srv.Port)
	if err != nil {
		t.Fatalf("ConnectAdmin: %v", err)
	}
	if err := CreateDatabase(adminDB, name); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	db, err := Connect("root", "127.0.0.1", srv.Port, name)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return srv, db
}

func TestIntegration_ConnectAdmin(t *testing.T) {
	srv := startDoltServer(t)
	db, err := ConnectAdmin("root", "127.0.0.1", srv.Port)
	if err != nil {
		t.Fatalf("ConnectAdmin: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestIntegration_OpenMySQL(t *testing.T) {
	srv := startDoltServer(t)
	adminDB, err := ConnectAdmin("root", "127.0.0.1", srv.Port)
	if err != nil {
		t.Fatalf("ConnectAdmin: %v", err)
	}
	if err := CreateDatabase(adminDB, "crewdesk_open"); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}

	db, err := Open(config.DatabaseConfig{
		Driver: "mysql", Host: "127.0.0.1", Port: srv.Port, Name: "crewdesk_open", User: "root",
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		t.Fatalf("ping new database: %v", err)
	}
}

func TestIntegration_AutoMigrate(t *testing.T) {
	_, db := migratedDB(t, "crewdesk_migrate")

	var tables []string
	if err := db.Raw("SHOW TABLES").Scan(&tables).Error; err != nil {
		t.Fatalf("SHOW TABLES: %v", err)
	}
	tableSet := make(map[string]bool)
	for _, tbl := range tables {
		tableSet[tbl] = true
	}
	for _, expected := range []string{"kv_entries", "agent_messages"} {
		if !tableSet[expected] {
			t.Errorf("expected table %q not found; got tables: %v", expected, tables)
		}
	}

	type columnInfo struct {
		Field string `gorm:"column:Field"`
	}
	var cols []columnInfo
	if err := db.Raw("DESCRIBE agent_messages").Scan(&cols).Error; err != nil {
		t.Fatalf("DESCRIBE agent_messages: %v", err)
	}
	colSet := make(map[string]bool)
	for _, c := range cols {
		colSet[c.Field] = true
	}
	for _, col := range []string{"message_id", "collaboration_id", "session_id", "from_agent", "to_agent", "body", "type", "priority", "scheduled_at"} {
		if !colSet[col] {
			t.Errorf("agent_messages table missing column %q", col)
		}
	}
}

func TestIntegration_Idempotent(t *testing.T) {
	_, db := migratedDB(t, "crewdesk_idem")
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("second AutoMigrate: %v", err)
	}
}

func TestIntegration_GormStoreRoundTrip(t *testing.T) {
	_, db := migratedDB(t, "crewdesk_kv")
	ctx := context.Background()
	store, err := kv.NewGormStore(kv.GormStoreOpts{DB: db, MaxValueBytes: 64})
	if err != nil {
		t.Fatalf("NewGormStore: %v", err)
	}

	if err := store.Set(ctx, "chat-sessions", `[{"id":"default"}]`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := store.Get(ctx, "chat-sessions")
	if err != nil || got != `[{"id":"default"}]` {
		t.Errorf("Get = %q, %v", got, err)
	}
	if err := store.Set(ctx, "chat-sessions", strings.Repeat("x", 65)); !errors.Is(err, kv.ErrQuotaExceeded) {
		t.Errorf("oversized Set err = %v, want ErrQuotaExceeded", err)
	}
	if err := store.Remove(ctx, "chat-sessions"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := store.Get(ctx, "chat-sessions"); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("Get after Remove err = %v, want ErrNotFound", err)
	}
}

func closedGormDB(t *testing.T) *gorm.DB {
	t.Helper()
	_, db := migratedDB(t, "crewdesk_closed")
	sqlDB, _ := db.DB()
	sqlDB.Close()
	return db
}

func TestIntegration_AutoMigrate_Error(t *testing.T) {
	db := closedGormDB(t)
	err := AutoMigrate(db)
	if err == nil {
		t.Fatal("expected error from AutoMigrate with closed DB")
	}
	if !strings.Contains(err.Error(), "db: auto-migrate") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db: auto-migrate")
	}
}

func TestIntegration_CreateDatabase_Error(t *testing.T) {
	db := closedGormDB(t)
	err := CreateDatabase(db, "crewdesk_nope")
	if err == nil || !strings.Contains(err.Error(), "db: create database") {
		t.Errorf("err = %v", err)
	}
}
