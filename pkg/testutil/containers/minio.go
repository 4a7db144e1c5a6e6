//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	MinioAccessKey = "docflow"
	MinioSecretKey = "docflow-secret"
)

// MinioContainer wraps an S3-compatible MinIO server.
type MinioContainer struct {
	Container testcontainers.Container
	Endpoint  string
}

// NewMinioContainer starts MinIO from the generic container API; there is
// no dedicated module for it in the testcontainers version we pin.
func NewMinioContainer(t *testing.T) *MinioContainer {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:RELEASE.2024-08-17T01-24-54Z",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     MinioAccessKey,
				"MINIO_ROOT_PASSWORD": MinioSecretKey,
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start minio container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get minio host: %v", err)
	}
	port, err := container.MappedPort(ctx, "9000/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get minio port: %v", err)
	}

	return &MinioContainer{
		Container: container,
		Endpoint:  fmt.Sprintf("%s:%s", host, port.Port()),
	}
}
