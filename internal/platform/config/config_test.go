package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(env.Options{Prefix: "DOCFLOW_", Environment: map[string]string{}})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadHeaderTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, SequenceStore, cfg.Storage.SequenceBackend)
	assert.Equal(t, 5*time.Second, cfg.Storage.TxTimeout)
	assert.Equal(t, 3, cfg.Storage.ConflictRetries)
	assert.Equal(t, "docflow.document-events", cfg.Kafka.Topic)
	assert.Equal(t, 15*time.Minute, cfg.Blob.URLTTL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, PolicyAllowAll, cfg.Policy.Mode)
	assert.False(t, cfg.Policy.DraftOnlyEdits)
}

func TestLoadFromEnvironment(t *testing.T) {
	cfg, err := load(env.Options{Prefix: "DOCFLOW_", Environment: map[string]string{
		"DOCFLOW_STORAGE_BACKEND":  "postgres",
		"DOCFLOW_DATABASE_URL":     "postgres://docflow@localhost/docflow",
		"DOCFLOW_POSTGRES_DRIVER":  "postgres",
		"DOCFLOW_SEQUENCE_BACKEND": "redis",
		"DOCFLOW_REDIS_URL":        "redis://localhost:6379/0",
		"DOCFLOW_KAFKA_BROKERS":    "a:9092, b:9092,,a:9092",
		"DOCFLOW_TX_TIMEOUT":       "2s",
		"DOCFLOW_POLICY":           "static",
		"DOCFLOW_DRAFT_ONLY_EDITS": "true",
	}})
	require.NoError(t, err)

	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, "postgres", cfg.Storage.PostgresDriver)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Second, cfg.Storage.TxTimeout)
	assert.Equal(t, PolicyStatic, cfg.Policy.Mode)
	assert.True(t, cfg.Policy.DraftOnlyEdits)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "postgres without url",
			env:     map[string]string{"DOCFLOW_STORAGE_BACKEND": "postgres"},
			wantErr: "DATABASE_URL is required",
		},
		{
			name:    "unknown backend",
			env:     map[string]string{"DOCFLOW_STORAGE_BACKEND": "mongo"},
			wantErr: `unknown storage backend "mongo"`,
		},
		{
			name:    "redis sequences without url",
			env:     map[string]string{"DOCFLOW_SEQUENCE_BACKEND": "redis"},
			wantErr: "REDIS_URL is required",
		},
		{
			name:    "minio without credentials",
			env:     map[string]string{"DOCFLOW_MINIO_ENDPOINT": "localhost:9000"},
			wantErr: "MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required",
		},
		{
			name:    "zero retries",
			env:     map[string]string{"DOCFLOW_CONFLICT_RETRIES": "0"},
			wantErr: "CONFLICT_RETRIES must be at least 1",
		},
		{
			name:    "unknown policy",
			env:     map[string]string{"DOCFLOW_POLICY": "rbac"},
			wantErr: `unknown policy "rbac"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(env.Options{Prefix: "DOCFLOW_", Environment: tt.env})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
