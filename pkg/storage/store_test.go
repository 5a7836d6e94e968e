package storage

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(hr, bo int) Entry {
	return Entry{HeartRate: hr, BloodOxygen: bo, Status: "Normal", Recommendation: "ok"}
}

// storeContract exercises behavior every Store must share.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	empty, err := s.Recent(ctx, 20)
	require.NoError(t, err)
	assert.Empty(t, empty)

	r1, err := s.Append(ctx, entry(70, 98))
	require.NoError(t, err)
	r2, err := s.Append(ctx, entry(110, 96))
	require.NoError(t, err)
	r3, err := s.Append(ctx, Entry{HeartRate: 72, BloodOxygen: 88, Status: "Anomaly Detected!", Recommendation: "rest"})
	require.NoError(t, err)

	assert.Less(t, r1.ID, r2.ID)
	assert.Less(t, r2.ID, r3.ID)
	assert.False(t, r3.Timestamp.IsZero())

	recent, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, r3.ID, recent[0].ID)
	assert.Equal(t, r2.ID, recent[1].ID)

	chrono := Reverse(recent)
	assert.Equal(t, []int{110, 72}, []int{chrono[0].HeartRate, chrono[1].HeartRate})
	assert.Equal(t, "Anomaly Detected!", chrono[1].Status)
	assert.Equal(t, "rest", chrono[1].Recommendation)
	assert.WithinDuration(t, r3.Timestamp, chrono[1].Timestamp, time.Millisecond)

	all, err := s.Recent(ctx, 20)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = s.Append(ctx, Entry{Recommendation: strings.Repeat("x", MaxRecommendationLen+1)})
	assert.ErrorIs(t, err, ErrRecommendationTooLong)

	after, err := s.Recent(ctx, 20)
	require.NoError(t, err)
	assert.Len(t, after, 3, "rejected append must not leave a partial row")

	_, err = s.Recent(ctx, -1)
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemory())
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Init(context.Background()))

	storeContract(t, s)
}

func TestSQLiteStoreReopen(t *testing.T) {
	path := t.TempDir() + "/readings.db"
	ctx := context.Background()

	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Init(ctx))
	_, err = s.Append(ctx, entry(80, 97))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Init(ctx))

	recent, err := s.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 80, recent[0].HeartRate)
}

func TestSQLiteAppendRollsBack(t *testing.T) {
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Init(ctx))

	ctxCancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Append(ctxCancelled, entry(70, 98))
	require.Error(t, err)

	recent, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("VITALGUARD_TEST_REDIS")
	if addr == "" {
		t.Skip("VITALGUARD_TEST_REDIS not set")
	}
	s, err := NewRedis(addr, 100)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.client.Del(ctx, redisSeqKey, redisListKey).Err())

	storeContract(t, s)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("VITALGUARD_TEST_POSTGRES")
	if dsn == "" {
		t.Skip("VITALGUARD_TEST_POSTGRES not set")
	}
	s, err := NewPostgres(dsn)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Init(ctx))
	_, err = s.DB().ExecContext(ctx, "TRUNCATE health_readings RESTART IDENTITY")
	require.NoError(t, err)

	storeContract(t, s)
}

func TestNew(t *testing.T) {
	tests := []struct {
		driver  string
		wantErr bool
	}{
		{driver: ""},
		{driver: "memory"},
		{driver: "sqlite"},
		{driver: "postgres"},
		{driver: "redis"},
		{driver: "mongo", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			s, err := New(Config{Driver: tt.driver, DSN: dsnFor(t, tt.driver)})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, s.Close())
		})
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), Config{Driver: "sqlite", DSN: ":memory:"}, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Append(context.Background(), entry(75, 98))
	assert.NoError(t, err)
}

func TestOpenGivesUp(t *testing.T) {
	cfg := Config{
		Driver:         "sqlite",
		DSN:            t.TempDir() + "/missing/dir/readings.db",
		ConnectTimeout: 200 * time.Millisecond,
	}
	_, err := Open(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func dsnFor(t *testing.T, driver string) string {
	if driver == "sqlite" {
		return t.TempDir() + "/new.db"
	}
	return ""
}
