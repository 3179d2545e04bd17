//go:build !nodocker
// +build !nodocker

package logsource

import (
	"bufio"
	"context"
	"io"
	"log"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"gopkg.in/alecthomas/kingpin.v2"
)

// DockerClient is the subset of client.Client this source needs,
// narrowed to keep DockerLogSource testable against a fake.
type DockerClient interface {
	io.Closer
	ContainerLogs(context.Context, string, types.ContainerLogsOptions) (io.ReadCloser, error)
}

// DockerLogSource reads lines from a running container's combined
// stdout/stderr log stream — the Postfix/Amavis/DKIM-milter container
// when the whole mail stack runs containerized.
type DockerLogSource struct {
	client      DockerClient
	containerID string
	reader      *bufio.Reader
	stream      io.Closer
}

// NewDockerLogSource starts following containerID's logs from the
// current tail.
func NewDockerLogSource(ctx context.Context, c DockerClient, containerID string) (*DockerLogSource, error) {
	r, err := c.ContainerLogs(ctx, containerID, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Tail:       "0",
	})
	if err != nil {
		return nil, err
	}

	return &DockerLogSource{
		client:      c,
		containerID: containerID,
		reader:      bufio.NewReader(r),
		stream:      r,
	}, nil
}

func (s *DockerLogSource) Close() error {
	if s.stream != nil {
		s.stream.Close()
	}
	return s.client.Close()
}

func (s *DockerLogSource) Path() string {
	return "docker:" + s.containerID
}

// Read strips the 8-byte multiplexed-stream header Docker prefixes
// every line with when stdout/stderr are not TTY-attached, same as
// the Docker API's own documented frame format.
func (s *DockerLogSource) Read(ctx context.Context) (string, error) {
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	if len(line) > 8 {
		line = line[8:]
	}
	return strings.TrimSpace(line), nil
}

type dockerFactory struct {
	containerID string
}

func (*dockerFactory) Name() string { return "docker" }

func (f *dockerFactory) Init(app *kingpin.Application) {
	app.Flag("docker.container.id", "ID/name of the mail-stack Docker container to read logs from. DOCKER_HOST selects the daemon; see https://pkg.go.dev/github.com/docker/docker/client#NewEnvClient.").StringVar(&f.containerID)
}

func (f *dockerFactory) New(ctx context.Context) (Closer, error) {
	if f.containerID == "" {
		return nil, nil
	}
	log.Println("logsource: reading log events from Docker container", f.containerID)
	c, err := client.NewEnvClient()
	if err != nil {
		return nil, err
	}
	return NewDockerLogSource(ctx, c, f.containerID)
}

func init() {
	Default.Register(&dockerFactory{})
}
