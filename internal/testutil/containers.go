package testutil

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestMinIO describes a running MinIO container.
type TestMinIO struct {
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewTestMinIO starts a MinIO container for S3 tests.
// The container is automatically cleaned up when the test finishes.
func NewTestMinIO(t *testing.T) *TestMinIO {
	t.Helper()

	const (
		accessKey = "portaltest"
		secretKey = "portaltest-secret"
	)

	container := startContainer(t, testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     accessKey,
			"MINIO_ROOT_PASSWORD": secretKey,
		},
		Cmd: []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/live").
			WithPort("9000/tcp").
			WithStartupTimeout(60 * time.Second),
	})

	host, err := container.Host(context.Background())
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	mapped, err := container.MappedPort(context.Background(), "9000/tcp")
	if err != nil {
		t.Fatalf("Failed to get mapped port: %v", err)
	}
	endpoint := net.JoinHostPort(host, mapped.Port())

	return &TestMinIO{
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
	}
}

// NewTestRedis starts a Redis container and returns its host:port address.
// The container is automatically cleaned up when the test finishes.
func NewTestRedis(t *testing.T) string {
	t.Helper()

	container := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(60 * time.Second),
	})

	host, err := container.Host(context.Background())
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	mapped, err := container.MappedPort(context.Background(), "6379/tcp")
	if err != nil {
		t.Fatalf("Failed to get mapped port: %v", err)
	}

	return net.JoinHostPort(host, mapped.Port())
}

func startContainer(t *testing.T, req testcontainers.ContainerRequest) testcontainers.Container {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start %s container: %v", req.Image, err)
	}

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	})

	return container
}
