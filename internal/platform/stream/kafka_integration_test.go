//go:build integration

package stream_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tessera/internal/platform/stream"
	"tessera/pkg/testutil/containers"
)

type KafkaLogSuite struct {
	suite.Suite
	broker string
}

func TestKafkaLogSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaLogSuite))
}

func (s *KafkaLogSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.broker = mgr.GetRedpanda(s.T()).Broker
}

// newLog connects a fresh log on its own topic so tests cannot observe each
// other's entries.
func (s *KafkaLogSuite) newLog(name string) *stream.KafkaLog {
	topic := fmt.Sprintf("%s-%d", name, time.Now().UnixNano())
	log, err := stream.NewKafkaLog([]string{s.broker}, "tessera-test", topic,
		stream.WithFetchMaxWait(250*time.Millisecond),
	)
	s.Require().NoError(err)
	s.T().Cleanup(log.Close)
	return log
}

func (s *KafkaLogSuite) TestAppendConfirmsDensePositions() {
	ctx := context.Background()
	log := s.newLog("dense")

	for i := 0; i < 5; i++ {
		pos, err := log.Append(ctx, []byte("holder-1"), []byte(fmt.Sprintf("entry-%d", i)))
		s.Require().NoError(err)
		s.Equal(stream.Position(i), pos)
	}
}

func (s *KafkaLogSuite) TestSubscribeReplaysThenFollows() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	log := s.newLog("follow")

	for _, v := range []string{"first", "second"} {
		_, err := log.Append(ctx, nil, []byte(v))
		s.Require().NoError(err)
	}

	received := make(chan stream.Entry, 8)
	subCtx, stop := context.WithCancel(ctx)
	defer stop()
	done := make(chan error, 1)
	go func() {
		done <- log.Subscribe(subCtx, stream.PositionStart, stream.HandlerFunc(func(_ context.Context, e stream.Entry) error {
			received <- e
			return nil
		}))
	}()

	// Replayed history arrives in order.
	s.Equal("first", string(s.waitEntry(received).Value))
	s.Equal("second", string(s.waitEntry(received).Value))

	// Live appends keep flowing to the same subscriber.
	_, err := log.Append(ctx, nil, []byte("third"))
	s.Require().NoError(err)
	e := s.waitEntry(received)
	s.Equal("third", string(e.Value))
	s.Equal(stream.Position(2), e.Position)

	stop()
	select {
	case err := <-done:
		s.Require().ErrorIs(err, context.Canceled)
	case <-time.After(10 * time.Second):
		s.FailNow("subscriber did not stop after cancel")
	}
}

func (s *KafkaLogSuite) TestSubscribeFromPosition() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	log := s.newLog("resume")

	for _, v := range []string{"a", "b", "c"} {
		_, err := log.Append(ctx, nil, []byte(v))
		s.Require().NoError(err)
	}

	received := make(chan stream.Entry, 8)
	subCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = log.Subscribe(subCtx, stream.Position(2), stream.HandlerFunc(func(_ context.Context, e stream.Entry) error {
			received <- e
			return nil
		}))
	}()

	e := s.waitEntry(received)
	s.Equal(stream.Position(2), e.Position)
	s.Equal("c", string(e.Value))
}

func (s *KafkaLogSuite) TestKeyAndTimestampSurviveTheWire() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	log := s.newLog("payload")

	before := time.Now().Add(-time.Minute)
	_, err := log.Append(ctx, []byte("holder-9"), []byte(`{"amount":100}`))
	s.Require().NoError(err)

	received := make(chan stream.Entry, 1)
	subCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = log.Subscribe(subCtx, stream.PositionStart, stream.HandlerFunc(func(_ context.Context, e stream.Entry) error {
			received <- e
			return nil
		}))
	}()

	e := s.waitEntry(received)
	s.Equal("holder-9", string(e.Key))
	s.JSONEq(`{"amount":100}`, string(e.Value))
	s.True(e.Timestamp.After(before))
}

func (s *KafkaLogSuite) TestPing() {
	log := s.newLog("ping")
	s.NoError(log.Ping(context.Background()))
}

func (s *KafkaLogSuite) waitEntry(ch <-chan stream.Entry) stream.Entry {
	s.T().Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(30 * time.Second):
		s.FailNow("timed out waiting for entry")
		return stream.Entry{}
	}
}
