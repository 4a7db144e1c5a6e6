//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"docflow/internal/document/events"
	"docflow/internal/document/models"
	id "docflow/pkg/domain"
	"docflow/pkg/testutil/containers"
)

type KafkaSuite struct {
	suite.Suite
	brokers   []string
	publisher *events.Kafka
}

func TestKafkaSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSuite))
}

func (s *KafkaSuite) SetupSuite() {
	rp := containers.GetManager().GetRedpanda(s.T())
	s.brokers = rp.Brokers

	publisher, err := events.NewKafka(s.brokers, "docflow.test-events")
	s.Require().NoError(err)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.Require().NoError(publisher.EnsureTopic(ctx, 1, 1))
	s.Require().NoError(publisher.EnsureTopic(ctx, 1, 1), "existing topic is accepted")
	s.publisher = publisher
}

func (s *KafkaSuite) TearDownSuite() {
	if s.publisher != nil {
		s.publisher.Close()
	}
}

func (s *KafkaSuite) TestPublishedEventIsKeyedByDocument() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	doc := &models.Document{ID: id.NewDocumentID(), DocType: models.DocTypeForm, DocNo: "BM-001/2025", Status: models.StatusDraft}
	event := models.NewEvent(models.EventCreated, doc, "clerk", 0, time.Now().UTC())
	s.Require().NoError(s.publisher.Publish(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.brokers...),
		kgo.ConsumeTopics("docflow.test-events"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	for {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(ctx.Err(), "event not consumed before deadline")
		var found *kgo.Record
		fetches.EachRecord(func(r *kgo.Record) {
			if string(r.Key) == doc.ID.String() {
				found = r
			}
		})
		if found == nil {
			continue
		}
		var got models.Event
		s.Require().NoError(json.Unmarshal(found.Value, &got))
		s.Equal(event.ID, got.ID)
		s.Equal(models.EventCreated, got.Type)
		s.Equal("BM-001/2025", got.DocNo)
		return
	}
}
