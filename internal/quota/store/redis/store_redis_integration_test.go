//go:build integration

package redis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	redisstore "cardmill/internal/quota/store/redis"
	"cardmill/pkg/domain"
	"cardmill/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *redisstore.Store
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = redisstore.New(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestGetMissingReturnsZero() {
	count, err := s.store.Get(context.Background(), domain.MustParseDate("2023-12-27"))
	s.Require().NoError(err)
	s.Equal(0, count)
}

func (s *RedisStoreSuite) TestSetAndGet() {
	ctx := context.Background()
	date := domain.MustParseDate("2023-12-27")

	s.Require().NoError(s.store.Set(ctx, date, 2))

	count, err := s.store.Get(ctx, date)
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *RedisStoreSuite) TestSumUpToIsInclusive() {
	ctx := context.Background()

	s.Require().NoError(s.store.Set(ctx, domain.MustParseDate("2023-12-19"), 72))
	s.Require().NoError(s.store.Set(ctx, domain.MustParseDate("2023-12-25"), 40))
	s.Require().NoError(s.store.Set(ctx, domain.MustParseDate("2023-12-28"), 5))

	sum, err := s.store.SumUpTo(ctx, domain.MustParseDate("2023-12-25"))
	s.Require().NoError(err)
	s.Equal(112, sum)
}

func (s *RedisStoreSuite) TestListSortedByDate() {
	ctx := context.Background()

	s.Require().NoError(s.store.Set(ctx, domain.MustParseDate("2023-12-28"), 5))
	s.Require().NoError(s.store.Set(ctx, domain.MustParseDate("2023-12-19"), 72))

	records, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(domain.MustParseDate("2023-12-19"), records[0].Date)
	s.Equal(domain.MustParseDate("2023-12-28"), records[1].Date)
}
