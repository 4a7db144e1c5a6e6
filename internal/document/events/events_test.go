package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow/internal/document/models"
	id "docflow/pkg/domain"
)

func sampleEvent() models.Event {
	doc := &models.Document{
		ID:      id.NewDocumentID(),
		DocType: models.DocTypeNotice,
		DocNo:   "TB-004/2025",
		Status:  models.StatusPending,
	}
	return models.NewEvent(models.EventSubmitted, doc, "clerk", 3, time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC))
}

func TestEncode(t *testing.T) {
	event := sampleEvent()
	raw, err := Encode(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "document.submitted", decoded["type"])
	assert.Equal(t, event.DocumentID.String(), decoded["document_id"])
	assert.Equal(t, "TB-004/2025", decoded["doc_no"])
	assert.Equal(t, "pending", decoded["status"])
	assert.EqualValues(t, 3, decoded["version_number"])
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	event := sampleEvent()

	require.NoError(t, NewLog(logger).Publish(context.Background(), event))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "document event", entry["msg"])
	assert.Equal(t, "document.submitted", entry["event"])
	assert.Equal(t, event.DocumentID.String(), entry["document_id"])
	assert.Equal(t, "clerk", entry["actor_id"])
}

func TestNewKafkaRequiresBrokers(t *testing.T) {
	_, err := NewKafka(nil, "")
	require.Error(t, err)
}
