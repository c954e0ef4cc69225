package rediscache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"agriport/internal/models"
)

type CacheTestSuite struct {
	suite.Suite
	db    *redis.Client
	mock  redismock.ClientMock
	cache *Cache
}

func (s *CacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.db = db
	s.mock = mock
	s.cache = New(db, "basin@10", Options{KeyPrefix: "test", TTL: time.Hour})
}

func (s *CacheTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
}

func (s *CacheTestSuite) TestGetBatch_Hits() {
	s.mock.ExpectHMGet("test:dist:basin@10:1", "10", "20").SetVal([]interface{}{"12.5", nil})
	s.mock.ExpectHMGet("test:dist:basin@10:2", "10", "20").SetVal([]interface{}{"40", "7.25"})

	got, err := s.cache.GetBatch(context.Background(), []int64{1, 2}, []int64{10, 20})

	s.NoError(err)
	s.Equal(map[models.PairKey]float64{
		{GridPointID: 1, PortID: 10}: 12.5,
		{GridPointID: 2, PortID: 10}: 40,
		{GridPointID: 2, PortID: 20}: 7.25,
	}, got)
}

func (s *CacheTestSuite) TestGetBatch_MalformedValueSkipped() {
	s.mock.ExpectHMGet("test:dist:basin@10:1", "10").SetVal([]interface{}{"not-a-number"})

	got, err := s.cache.GetBatch(context.Background(), []int64{1}, []int64{10})

	s.NoError(err)
	s.Empty(got)
}

func (s *CacheTestSuite) TestGetBatch_Error() {
	s.mock.ExpectHMGet("test:dist:basin@10:1", "10").SetErr(errors.New("connection refused"))

	_, err := s.cache.GetBatch(context.Background(), []int64{1}, []int64{10})

	s.Error(err)
}

func (s *CacheTestSuite) TestGetBatch_Empty() {
	got, err := s.cache.GetBatch(context.Background(), nil, []int64{10})

	s.NoError(err)
	s.Empty(got)
}

func (s *CacheTestSuite) TestSetBatch() {
	s.mock.ExpectHSet("test:dist:basin@10:1", "10", "12.5", "20", "30").SetVal(2)
	s.mock.ExpectExpire("test:dist:basin@10:1", time.Hour).SetVal(true)
	s.mock.ExpectHSet("test:dist:basin@10:2", "10", "8").SetVal(1)
	s.mock.ExpectExpire("test:dist:basin@10:2", time.Hour).SetVal(true)

	err := s.cache.SetBatch(context.Background(), []models.DistanceRecord{
		{GridPointID: 1, PortID: 10, DistanceKm: models.Known(12.5)},
		{GridPointID: 2, PortID: 10, DistanceKm: models.Known(8)},
		{GridPointID: 2, PortID: 20, DistanceKm: models.Unreachable()},
		{GridPointID: 1, PortID: 20, DistanceKm: models.Known(30)},
	})

	s.NoError(err)
}

func (s *CacheTestSuite) TestSetBatch_OnlyUnreachable() {
	err := s.cache.SetBatch(context.Background(), []models.DistanceRecord{
		{GridPointID: 1, PortID: 10, DistanceKm: models.Unreachable()},
	})

	s.NoError(err)
}

func (s *CacheTestSuite) TestSetBatch_Error() {
	s.mock.ExpectHSet("test:dist:basin@10:1", "10", "1").SetErr(errors.New("READONLY"))

	noTTL := New(s.db, "basin@10", Options{KeyPrefix: "test"})
	err := noTTL.SetBatch(context.Background(), []models.DistanceRecord{
		{GridPointID: 1, PortID: 10, DistanceKm: models.Known(1)},
	})

	s.Error(err)
}

func (s *CacheTestSuite) TestClear() {
	s.mock.ExpectScan(0, "test:dist:basin@10:*", scanCount).SetVal([]string{"test:dist:basin@10:1", "test:dist:basin@10:2"}, 42)
	s.mock.ExpectDel("test:dist:basin@10:1", "test:dist:basin@10:2").SetVal(2)
	s.mock.ExpectScan(42, "test:dist:basin@10:*", scanCount).SetVal([]string{}, 0)

	s.NoError(s.cache.Clear(context.Background()))
}

func (s *CacheTestSuite) TestClear_ScanError() {
	s.mock.ExpectScan(0, "test:dist:basin@10:*", scanCount).SetErr(errors.New("timeout"))

	s.Error(s.cache.Clear(context.Background()))
}

func TestCacheTestSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func TestNew_Defaults(t *testing.T) {
	db, _ := redismock.NewClientMock()
	c := New(db, "g@1", Options{})

	assert.Equal(t, "agriport:dist:g@1:7", c.key(7))
	assert.Zero(t, c.ttl)
	assert.NotNil(t, c.logger)
}
