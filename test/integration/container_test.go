//go:build integration

package integration

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const defaultPostgresImage = "postgres:16-alpine"

// pgContainer is a disposable PostgreSQL started through the docker CLI.
// Data lives on tmpfs and fsync is off: nothing here needs to survive.
type pgContainer struct {
	id  string
	url string
}

func startPostgresContainer(ctx context.Context) (*pgContainer, error) {
	image := os.Getenv("HMS_TEST_POSTGRES_IMAGE")
	if image == "" {
		image = defaultPostgresImage
	}

	out, err := exec.CommandContext(ctx, "docker", "run", "-d", "--rm",
		"--label", "hms.integration=true",
		"-p", "127.0.0.1::5432",
		"--tmpfs", "/var/lib/postgresql/data",
		"-e", "POSTGRES_USER=hms",
		"-e", "POSTGRES_PASSWORD=hms",
		"-e", "POSTGRES_DB=hmstest",
		image,
		"-c", "fsync=off",
		"-c", "max_connections=50",
	).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("docker run %s: %w\n%s", image, err, out)
	}
	c := &pgContainer{id: strings.TrimSpace(string(out))}

	addr, err := c.hostAddr(ctx)
	if err != nil {
		c.stop()
		return nil, err
	}
	c.url = fmt.Sprintf("postgres://hms:hms@%s/hmstest?sslmode=disable", addr)

	if err := waitForPostgres(ctx, c.url, 30*time.Second); err != nil {
		c.stop()
		return nil, err
	}
	return c, nil
}

// hostAddr asks docker which host port it bound to 5432.
func (c *pgContainer) hostAddr(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "docker", "port", c.id, "5432/tcp").Output()
	if err != nil {
		return "", fmt.Errorf("docker port: %w", err)
	}
	line := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	if _, _, err := net.SplitHostPort(line); err != nil {
		return "", fmt.Errorf("unexpected docker port output %q", line)
	}
	return line, nil
}

func (c *pgContainer) stop() {
	_ = exec.Command("docker", "stop", "-t", "1", c.id).Run()
}

// waitForPostgres retries a connection until the server accepts queries.
// The entrypoint restarts postgres once after initdb, so a single
// successful ping right after startup is not enough; require a query.
func waitForPostgres(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for {
		conn, err := pgx.Connect(ctx, url)
		if err == nil {
			var one int
			err = conn.QueryRow(ctx, `SELECT 1`).Scan(&one)
			_ = conn.Close(ctx)
			if err == nil {
				return nil
			}
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres not ready after %s: %w", timeout, lastErr)
		case <-time.After(250 * time.Millisecond):
		}
	}
}
