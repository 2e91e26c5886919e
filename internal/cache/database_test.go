package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-order-backend/internal/config"
	"github.com/tbourn/go-order-backend/internal/domain"
	"github.com/tbourn/go-order-backend/internal/repo"
)

func newCacheDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestDatabase_GetSetSweep(t *testing.T) {
	d := NewDatabase(newCacheDB(t))
	now := time.Now().UTC()
	d.now = func() time.Time { return now }
	ctx := context.Background()

	if _, ok, err := d.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("miss = (%v, %v)", ok, err)
	}
	if err := d.SetWithTTL(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, ok, err := d.Get(ctx, "k"); !ok || err != nil || v != "v" {
		t.Fatalf("get = (%q, %v, %v)", v, ok, err)
	}
	if err := d.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := d.Get(ctx, "k"); ok {
		t.Fatalf("expired entry must be a miss")
	}
	n, err := d.Sweep(ctx)
	if err != nil || n != 1 {
		t.Fatalf("sweep = (%d, %v)", n, err)
	}
}

func TestDatabase_RunSweeperStopsOnCancel(t *testing.T) {
	d := NewDatabase(newCacheDB(t))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		d.RunSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("sweeper did not stop after cancel")
	}
}

func TestDatabase_StoreFailuresBecomeCacheKinds(t *testing.T) {
	db := newCacheDB(t)
	d := NewDatabase(db)
	ctx := context.Background()

	if err := db.Migrator().DropTable(&domain.IdempotencyEntry{}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, _, err := d.Get(ctx, "k"); domain.KindOf(err) != domain.KindCacheQueryFailed {
		t.Fatalf("missing table = %v; want cache query failure", domain.KindOf(err))
	}

	sqlDB, _ := db.DB()
	_ = sqlDB.Close()
	if err := d.SetWithTTL(ctx, "k", "v", time.Second); domain.KindOf(err) != domain.KindCacheUnavailable {
		t.Fatalf("closed pool = %v; want cache unavailable", domain.KindOf(err))
	}
}

func TestNew_SelectsBackend(t *testing.T) {
	db := newCacheDB(t)

	s, err := New(config.CacheConfig{Backend: config.CacheMemory, MemorySize: 4}, nil)
	if _, ok := s.(*Memory); err != nil || !ok {
		t.Fatalf("memory backend = (%T, %v)", s, err)
	}
	s, err = New(config.CacheConfig{Backend: config.CacheDatabase}, db)
	if _, ok := s.(*Database); err != nil || !ok {
		t.Fatalf("database backend = (%T, %v)", s, err)
	}
	s, err = New(config.CacheConfig{Backend: config.CacheRedis, RedisURL: "redis://localhost:6379/0"}, nil)
	if _, ok := s.(*Redis); err != nil || !ok {
		t.Fatalf("redis backend = (%T, %v)", s, err)
	}
	_ = s.Close()

	if _, err := New(config.CacheConfig{Backend: config.CacheDatabase}, nil); err == nil {
		t.Fatalf("database backend without db should fail")
	}
	if _, err := New(config.CacheConfig{Backend: "memcached"}, nil); err == nil {
		t.Fatalf("unknown backend should fail")
	}
}
