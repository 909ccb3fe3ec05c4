package matchcache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solhealth/match-booking/internal/solhealth"
)

func sampleResult() *solhealth.MatchResult {
	return &solhealth.MatchResult{
		Client: &solhealth.ClientRecord{ID: "c1", ResponseID: "resp-1", Email: "client@example.com", State: "NY"},
		Therapists: []solhealth.TherapistMatch{
			{
				Therapist: solhealth.Therapist{
					ID:            "t1",
					Name:          "Dana Reyes",
					Email:         "dana@example.com",
					CalendarEmail: "dana.cal@example.com",
					States:        []string{"NY", "NJ"},
				},
				Score:               0.92,
				MatchedSpecialities: []string{"Anxiety"},
			},
		},
	}
}

func TestRedisStore_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb, 10*time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "resp-1", sampleResult()))
	assert.Equal(t, 10*time.Minute, mr.TTL("match:page:resp-1"))

	got, err := store.Get(ctx, "resp-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sampleResult(), got)

	tm, ok := got.FindTherapist("t1")
	require.True(t, ok)
	assert.Equal(t, "dana.cal@example.com", tm.Therapist.BookingEmail())
}

func TestRedisStore_MissAndExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb, time.Minute)
	ctx := context.Background()

	got, err := store.Get(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Put(ctx, "resp-1", sampleResult()))
	mr.FastForward(2 * time.Minute)
	got, err = store.Get(ctx, "resp-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_DeleteAndValidation(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb, 0)
	ctx := context.Background()

	assert.Error(t, store.Put(ctx, " ", sampleResult()))

	require.NoError(t, store.Put(ctx, "resp-1", sampleResult()))
	require.NoError(t, store.Delete(ctx, "resp-1"))
	assert.False(t, mr.Exists("match:page:resp-1"))
}

func TestMemoryStore_RoundTripAndExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "resp-1", sampleResult()))
	got, err := store.Get(ctx, "resp-1")
	require.NoError(t, err)
	assert.Equal(t, sampleResult(), got)

	now = now.Add(2 * time.Minute)
	got, err = store.Get(ctx, "resp-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_NilDeletes(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "resp-1", sampleResult()))
	require.NoError(t, store.Put(ctx, "resp-1", nil))
	got, err := store.Get(ctx, "resp-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
