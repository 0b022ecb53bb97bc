//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"cardmill/internal/quota/store/postgres"
	"cardmill/pkg/domain"
	"cardmill/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())

	store, err := postgres.New(s.pg.DB)
	s.Require().NoError(err)
	s.store = store
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.pg.TruncateTables(context.Background(), "api_usage")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestGetMissingReturnsZero() {
	count, err := s.store.Get(context.Background(), domain.MustParseDate("2023-12-27"))
	s.Require().NoError(err)
	s.Equal(0, count)
}

func (s *PostgresStoreSuite) TestSetUpsertsAndGetReads() {
	ctx := context.Background()
	date := domain.MustParseDate("2023-12-27")

	s.Require().NoError(s.store.Set(ctx, date, 1))
	s.Require().NoError(s.store.Set(ctx, date, 2))

	count, err := s.store.Get(ctx, date)
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *PostgresStoreSuite) TestSumUpToIsInclusive() {
	ctx := context.Background()

	s.Require().NoError(s.store.Set(ctx, domain.MustParseDate("2023-12-19"), 72))
	s.Require().NoError(s.store.Set(ctx, domain.MustParseDate("2023-12-25"), 40))
	s.Require().NoError(s.store.Set(ctx, domain.MustParseDate("2023-12-28"), 5))

	sum, err := s.store.SumUpTo(ctx, domain.MustParseDate("2023-12-25"))
	s.Require().NoError(err)
	s.Equal(112, sum)

	sum, err = s.store.SumUpTo(ctx, domain.MustParseDate("2023-12-01"))
	s.Require().NoError(err)
	s.Equal(0, sum)
}

func (s *PostgresStoreSuite) TestListSortedByDate() {
	ctx := context.Background()

	s.Require().NoError(s.store.Set(ctx, domain.MustParseDate("2023-12-28"), 5))
	s.Require().NoError(s.store.Set(ctx, domain.MustParseDate("2023-12-19"), 72))

	records, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(domain.MustParseDate("2023-12-19"), records[0].Date)
	s.Equal(domain.MustParseDate("2023-12-28"), records[1].Date)
}
