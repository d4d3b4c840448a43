package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type BreakerSuite struct {
	suite.Suite
	now time.Time
}

func TestBreakerSuite(t *testing.T) {
	suite.Run(t, new(BreakerSuite))
}

func (s *BreakerSuite) SetupTest() {
	s.now = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *BreakerSuite) newBreaker() *Breaker {
	return New("checkr",
		WithFailureThreshold(3),
		WithCooldown(time.Minute),
		WithNow(func() time.Time { return s.now }),
	)
}

func (s *BreakerSuite) TestOpensAfterThreshold() {
	b := s.newBreaker()

	s.False(b.RecordFailure().Opened)
	s.False(b.RecordFailure().Opened)
	s.True(b.RecordFailure().Opened)
	s.Equal(StateOpen, b.State())
	s.False(b.Allow())
}

func (s *BreakerSuite) TestSuccessResetsFailureCount() {
	b := s.newBreaker()
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()

	s.Equal(StateClosed, b.State())
	s.True(b.Allow())
}

func (s *BreakerSuite) TestHalfOpenAllowsSingleProbe() {
	b := s.newBreaker()
	for range 3 {
		b.RecordFailure()
	}

	s.now = s.now.Add(time.Minute)
	s.Equal(StateHalfOpen, b.State())
	s.True(b.Allow())
	s.False(b.Allow(), "second caller must wait for the probe result")

	s.Run("probe success closes", func() {
		s.True(b.RecordSuccess().Closed)
		s.Equal(StateClosed, b.State())
	})
}

func (s *BreakerSuite) TestFailedProbeReopens() {
	b := s.newBreaker()
	for range 3 {
		b.RecordFailure()
	}
	s.now = s.now.Add(2 * time.Minute)
	s.True(b.Allow())

	b.RecordFailure()
	s.Equal(StateOpen, b.State())
	s.False(b.Allow())
}

func (s *BreakerSuite) TestStateString() {
	s.Equal("closed", StateClosed.String())
	s.Equal("open", StateOpen.String())
	s.Equal("half_open", StateHalfOpen.String())
}
