package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type AgeSuite struct {
	suite.Suite
}

func TestAgeSuite(t *testing.T) {
	suite.Run(t, new(AgeSuite))
}

func (s *AgeSuite) TestIsAdult() {
	birth := time.Date(2000, 1, 15, 0, 0, 0, 0, time.UTC)

	s.Run("birthday itself counts", func() {
		s.True(IsAdult(birth, time.Date(2018, 1, 15, 0, 0, 0, 0, time.UTC)))
	})

	s.Run("one second before the birthday does not", func() {
		s.False(IsAdult(birth, time.Date(2018, 1, 14, 23, 59, 59, 0, time.UTC)))
	})

	s.Run("leap day births become adults on March 1", func() {
		leap := time.Date(2000, 2, 29, 0, 0, 0, 0, time.UTC)
		s.False(IsAdult(leap, time.Date(2018, 2, 28, 0, 0, 0, 0, time.UTC)))
		s.True(IsAdult(leap, time.Date(2018, 3, 1, 0, 0, 0, 0, time.UTC)))
	})

	s.Run("zones are normalized to UTC", func() {
		pst := time.FixedZone("PST", -8*60*60)
		local := time.Date(2000, 1, 15, 0, 0, 0, 0, pst)
		s.True(IsAdult(local, time.Date(2018, 1, 15, 8, 0, 0, 0, time.UTC)))
	})
}
