package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-backend/internal/domain"
	"github.com/tbourn/go-order-backend/internal/services/mocks"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newMockedService(t *testing.T) (*OrderService, *mocks.MockOrderRepo, *mocks.MockIdempotencyCache) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockOrderRepo(ctrl)
	cache := mocks.NewMockIdempotencyCache(ctrl)
	svc := NewOrderService(nil, repo, cache)
	svc.Now = func() time.Time { return fixedNow }
	return svc, repo, cache
}

func ptr(v int64) *int64 { return &v }

func TestCacheKey(t *testing.T) {
	require.Equal(t, "1_10_abc", CacheKey(1, 10, "abc"))
	require.Equal(t, "12_3_a_b", CacheKey(12, 3, "a_b"))
}

func TestValidateToken(t *testing.T) {
	cases := []struct {
		name  string
		token string
		ok    bool
	}{
		{"simple", "retry-1", true},
		{"spaces and symbols", "a b~!", true},
		{"max length", strings.Repeat("k", MaxTokenLen), true},
		{"empty", "", false},
		{"only spaces", "   ", false},
		{"leading space", " k", true},
		{"too long", strings.Repeat("k", MaxTokenLen+1), false},
		{"control char", "a\nb", false},
		{"del", "a\x7f", false},
		{"non ascii", "héllo", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateToken(tc.token)
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrBadToken)
			}
		})
	}
}

func TestCreate_NoTokenSkipsCache(t *testing.T) {
	svc, repo, _ := newMockedService(t)
	ready := fixedNow.Add(DefaultReadyDelay)

	repo.EXPECT().InsertOrder(gomock.Any(), gomock.Any(), int64(1), int64(10), ready).Return(int64(5), nil)

	o, replayed, err := svc.Create(context.Background(), 1, 10, "")
	require.NoError(t, err)
	require.False(t, replayed)
	require.Equal(t, domain.Order{ID: 5, TableID: 1, DishID: 10, ReadyTime: ready}, *o)
}

func TestCreate_MissInsertsAndRemembers(t *testing.T) {
	svc, repo, cache := newMockedService(t)
	ready := fixedNow.Add(DefaultReadyDelay)

	gomock.InOrder(
		cache.EXPECT().Get(gomock.Any(), "1_10_K").Return("", false, nil),
		repo.EXPECT().InsertOrder(gomock.Any(), gomock.Any(), int64(1), int64(10), ready).Return(int64(5), nil),
		cache.EXPECT().SetWithTTL(gomock.Any(), "1_10_K", gomock.Any(), DefaultCacheTTL).
			DoAndReturn(func(_ context.Context, _, value string, _ time.Duration) error {
				var got map[string]int64
				require.NoError(t, json.Unmarshal([]byte(value), &got))
				require.Equal(t, map[string]int64{"id": 5, "dish_id": 10, "ready_time": ready.Unix()}, got)
				return nil
			}),
	)

	o, replayed, err := svc.Create(context.Background(), 1, 10, "K")
	require.NoError(t, err)
	require.False(t, replayed)
	require.Equal(t, int64(5), o.ID)
}

func TestCreate_HitSkipsStore(t *testing.T) {
	svc, _, cache := newMockedService(t)
	ready := fixedNow.Add(DefaultReadyDelay)

	cache.EXPECT().Get(gomock.Any(), "1_10_K").
		Return(`{"id":5,"dish_id":10,"ready_time":`+jsonInt(ready.Unix())+`}`, true, nil)

	o, replayed, err := svc.Create(context.Background(), 1, 10, "K")
	require.NoError(t, err)
	require.True(t, replayed)
	require.Equal(t, int64(5), o.ID)
	require.Equal(t, int64(1), o.TableID)
	require.Equal(t, int64(10), o.DishID)
	require.True(t, ready.Equal(o.ReadyTime))
}

func TestCreate_CacheReadFailureIsMiss(t *testing.T) {
	svc, repo, cache := newMockedService(t)

	cache.EXPECT().Get(gomock.Any(), gomock.Any()).
		Return("", false, domain.E(domain.KindCacheUnavailable, "cache.Get", errors.New("dial tcp: refused")))
	repo.EXPECT().InsertOrder(gomock.Any(), gomock.Any(), int64(2), int64(3), gomock.Any()).Return(int64(9), nil)
	cache.EXPECT().SetWithTTL(gomock.Any(), "2_3_tok", gomock.Any(), gomock.Any()).Return(nil)

	o, replayed, err := svc.Create(context.Background(), 2, 3, "tok")
	require.NoError(t, err)
	require.False(t, replayed)
	require.Equal(t, int64(9), o.ID)
}

func TestCreate_UndecodableEntryIsMiss(t *testing.T) {
	svc, repo, cache := newMockedService(t)

	cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return("not json", true, nil)
	repo.EXPECT().InsertOrder(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(4), nil)
	cache.EXPECT().SetWithTTL(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	o, _, err := svc.Create(context.Background(), 2, 3, "tok")
	require.NoError(t, err)
	require.Equal(t, int64(4), o.ID)
}

func TestCreate_CacheWriteFailureIsSwallowed(t *testing.T) {
	svc, repo, cache := newMockedService(t)

	cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return("", false, nil)
	repo.EXPECT().InsertOrder(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(7), nil)
	cache.EXPECT().SetWithTTL(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(domain.E(domain.KindCacheQueryFailed, "cache.SetWithTTL", errors.New("OOM")))

	o, replayed, err := svc.Create(context.Background(), 1, 1, "tok")
	require.NoError(t, err)
	require.False(t, replayed)
	require.Equal(t, int64(7), o.ID)
}

func TestCreate_StoreFailureSkipsCacheWrite(t *testing.T) {
	svc, repo, cache := newMockedService(t)
	storeErr := domain.E(domain.KindStoreUnavailable, "repo.InsertOrder", errors.New("connection refused"))

	cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return("", false, nil)
	repo.EXPECT().InsertOrder(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(0), storeErr)

	o, _, err := svc.Create(context.Background(), 1, 1, "tok")
	require.Nil(t, o)
	require.Equal(t, domain.KindStoreUnavailable, domain.KindOf(err))
}

func TestCreate_BadTokenRejectedBeforeAnyCall(t *testing.T) {
	svc, _, _ := newMockedService(t)

	_, _, err := svc.Create(context.Background(), 1, 1, strings.Repeat("x", MaxTokenLen+1))
	require.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
	require.ErrorIs(t, err, ErrBadToken)

	_, _, err = svc.Create(context.Background(), 1, 1, "tab\there")
	require.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestCreate_NilCacheAlwaysInserts(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockOrderRepo(ctrl)
	svc := NewOrderService(nil, repo, nil)
	svc.ReadyDelay = time.Minute
	svc.Now = func() time.Time { return fixedNow }

	repo.EXPECT().InsertOrder(gomock.Any(), gomock.Any(), int64(1), int64(1), fixedNow.Add(time.Minute)).Return(int64(1), nil)
	repo.EXPECT().InsertOrder(gomock.Any(), gomock.Any(), int64(1), int64(1), fixedNow.Add(time.Minute)).Return(int64(2), nil)

	a, _, err := svc.Create(context.Background(), 1, 1, "same")
	require.NoError(t, err)
	b, _, err := svc.Create(context.Background(), 1, 1, "same")
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)
}

func TestGet_PassesThrough(t *testing.T) {
	svc, repo, _ := newMockedService(t)
	want := &domain.Order{ID: 3, TableID: 1, DishID: 2}

	repo.EXPECT().GetOrder(gomock.Any(), gomock.Any(), int64(1), int64(3)).Return(want, nil)
	repo.EXPECT().GetOrder(gomock.Any(), gomock.Any(), int64(1), int64(4)).
		Return(nil, domain.E(domain.KindNotFound, "repo.GetOrder", domain.ErrNotFound))

	got, err := svc.Get(context.Background(), 1, 3)
	require.NoError(t, err)
	require.Same(t, want, got)

	_, err = svc.Get(context.Background(), 1, 4)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestList_RejectsNegativeCursor(t *testing.T) {
	svc, _, _ := newMockedService(t)

	_, err := svc.List(context.Background(), 1, ptr(-1), nil)
	require.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
	require.ErrorIs(t, err, ErrBadCursor)

	_, err = svc.List(context.Background(), 1, nil, ptr(-5))
	require.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestList_ZeroLimitIsEmptyWithoutQuery(t *testing.T) {
	svc, _, _ := newMockedService(t)

	out, err := svc.List(context.Background(), 1, ptr(0), ptr(0))
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Empty(t, out)
}

func TestList_ClampsToMaxListLimit(t *testing.T) {
	svc, repo, _ := newMockedService(t)
	svc.MaxListLimit = 50

	var seen []*int64
	repo.EXPECT().ListOrders(gomock.Any(), gomock.Any(), int64(1), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ *gorm.DB, _ int64, _ *int64, limit *int64) ([]domain.Order, error) {
			seen = append(seen, limit)
			return []domain.Order{}, nil
		}).Times(3)

	_, err := svc.List(context.Background(), 1, nil, nil)
	require.NoError(t, err)
	_, err = svc.List(context.Background(), 1, nil, ptr(500))
	require.NoError(t, err)
	_, err = svc.List(context.Background(), 1, nil, ptr(20))
	require.NoError(t, err)

	require.Len(t, seen, 3)
	require.Equal(t, int64(50), *seen[0])
	require.Equal(t, int64(50), *seen[1])
	require.Equal(t, int64(20), *seen[2])
}

func TestList_UnboundedWhenNoCap(t *testing.T) {
	svc, repo, _ := newMockedService(t)

	repo.EXPECT().ListOrders(gomock.Any(), gomock.Any(), int64(1), gomock.Nil(), gomock.Nil()).
		Return([]domain.Order{{ID: 1}}, nil)

	out, err := svc.List(context.Background(), 1, nil, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestDelete_RowsAffected(t *testing.T) {
	cases := []struct {
		name     string
		affected int64
		deleted  *bool
		wantKind domain.ErrorKind
	}{
		{name: "one row", affected: 1},
		{name: "already deleted", affected: 0, deleted: boolp(true)},
		{name: "never existed", affected: 0, deleted: boolp(false), wantKind: domain.KindNotFound},
		{name: "two rows", affected: 2, wantKind: domain.KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, _ := newMockedService(t)
			repo.EXPECT().MarkOrderDeleted(gomock.Any(), gomock.Any(), int64(1), int64(2)).Return(tc.affected, nil)
			if tc.deleted != nil {
				repo.EXPECT().OrderDeleted(gomock.Any(), gomock.Any(), int64(1), int64(2)).Return(*tc.deleted, nil)
			}

			err := svc.Delete(context.Background(), 1, 2)
			if tc.wantKind == domain.KindUnknown {
				require.NoError(t, err)
				return
			}
			require.Equal(t, tc.wantKind, domain.KindOf(err))
		})
	}
}

func TestDelete_StoreErrorPropagates(t *testing.T) {
	svc, repo, _ := newMockedService(t)
	repo.EXPECT().MarkOrderDeleted(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(int64(0), domain.E(domain.KindStoreQueryFailed, "repo.MarkOrderDeleted", errors.New("boom")))

	err := svc.Delete(context.Background(), 1, 2)
	require.Equal(t, domain.KindStoreQueryFailed, domain.KindOf(err))
}

func TestListVersion(t *testing.T) {
	svc, repo, _ := newMockedService(t)
	repo.EXPECT().OrdersStats(gomock.Any(), gomock.Any(), int64(4)).Return(int64(2), int64(9), nil)

	v, err := svc.ListVersion(context.Background(), 4)
	require.NoError(t, err)
	require.Equal(t, "4:2:9", v)
}

func boolp(b bool) *bool { return &b }

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
