package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/platinummonkey/plugingate/pkg/process"
	"github.com/sirupsen/logrus"
)

// DefaultDockerImage is the base image the binary is mounted into. The
// binary must be statically linked or compatible with the image's libc.
const DefaultDockerImage = "debian:bookworm-slim"

// Paths inside the container
const (
	containerBinary = "/gate/plugin"
	containerInput  = "/gate/input"
)

// DockerRunner runs the binary in a container with networking disabled
type DockerRunner struct {
	Image  string
	logger logrus.FieldLogger

	mu         sync.Mutex
	client     *client.Client
	probed     bool
	imageCache map[string]bool // Track pulled images
}

// NewDockerRunner creates a Docker runner. The daemon is not contacted
// until Available is called.
func NewDockerRunner(imageRef string, logger logrus.FieldLogger) *DockerRunner {
	if imageRef == "" {
		imageRef = DefaultDockerImage
	}
	return &DockerRunner{
		Image:      imageRef,
		logger:     logger,
		imageCache: make(map[string]bool),
	}
}

func (r *DockerRunner) Name() string { return StrategyDocker }

// Available connects to the daemon from the environment and pings it
func (r *DockerRunner) Available(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.probed {
		return r.client != nil
	}
	r.probed = true

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		r.logger.Debugf("%v: %v", ErrDockerNotAvailable, err)
		return false
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		r.logger.Debugf("%v: %v", ErrDockerNotAvailable, err)
		cli.Close()
		return false
	}

	r.client = cli
	return true
}

// Run mounts the binary and its input read-only and runs it with the
// container's network mode set to none
func (r *DockerRunner) Run(ctx context.Context, req *Request) (*Result, error) {
	if !r.Available(ctx) {
		return nil, ErrDockerNotAvailable
	}

	result := &Result{Strategy: r.Name()}
	startTime := time.Now()
	defer func() {
		result.Duration = time.Since(startTime)
	}()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if err := r.PullImage(ctx, r.Image); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImagePullFailed, err)
	}

	binary, err := filepath.Abs(req.BinaryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve binary path: %w", err)
	}

	inputDir, err := os.MkdirTemp("", "plugingate-sandbox-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create input directory: %w", err)
	}
	defer os.RemoveAll(inputDir)

	inputFile := filepath.Join(inputDir, "input")
	if err := os.WriteFile(inputFile, req.Input, 0644); err != nil {
		return nil, fmt.Errorf("failed to write sandbox input: %w", err)
	}

	config, hostConfig := r.containerConfig(binary, inputFile)
	resp, err := r.client.ContainerCreate(ctx, config, hostConfig, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("%w: create failed: %v", ErrContainerFailed, err)
	}
	defer r.remove(resp.ID)

	if err := r.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("%w: start failed: %v", ErrContainerFailed, err)
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	statusCh, errCh := r.client.ContainerWait(execCtx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			if execCtx.Err() != nil {
				result.ExitCode = -1
				return result, fmt.Errorf("%w after %s", ErrTimeout, timeout)
			}
			return nil, fmt.Errorf("%w: wait failed: %v", ErrContainerFailed, err)
		}
	case status := <-statusCh:
		result.ExitCode = int(status.StatusCode)
	case <-execCtx.Done():
		result.ExitCode = -1
		return result, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}

	logs, err := r.client.ContainerLogs(ctx, resp.ID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err == nil {
		stdout := process.NewLimitedBuffer(process.DefaultOutputLimit, nil)
		stderr := process.NewLimitedBuffer(process.DefaultOutputLimit, nil)
		if _, err := stdcopy.StdCopy(stdout, stderr, logs); err != nil {
			r.logger.Debugf("Failed to demultiplex container logs: %v", err)
		}
		logs.Close()
		result.Stdout = stdout.Bytes()
		result.Stderr = stderr.Bytes()
		if stdout.Exceeded() || stderr.Exceeded() {
			return result, fmt.Errorf("%w: container wrote more than %d bytes", ErrOutputLimit, process.DefaultOutputLimit)
		}
	}

	if result.ExitCode != 0 {
		return result, fmt.Errorf("%w: exit code %d", ErrNonZeroExit, result.ExitCode)
	}
	return result, nil
}

// PullImage ensures the image is available locally
func (r *DockerRunner) PullImage(ctx context.Context, imageRef string) error {
	if r.imageCache[imageRef] {
		return nil
	}

	if _, err := r.client.ImageInspect(ctx, imageRef); err == nil {
		r.imageCache[imageRef] = true
		return nil
	}

	pullCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	reader, err := r.client.ImagePull(pullCtx, imageRef, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %v", imageRef, err)
	}
	defer reader.Close()

	// Read pull output to completion
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to pull image %s: %v", imageRef, err)
	}

	r.imageCache[imageRef] = true
	return nil
}

// Close releases the daemon connection
func (r *DockerRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *DockerRunner) containerConfig(binary, inputFile string) (*container.Config, *container.HostConfig) {
	config := &container.Config{
		Image:           r.Image,
		Cmd:             []string{"/bin/sh", "-c", containerBinary + " < " + containerInput},
		WorkingDir:      "/gate",
		AttachStdout:    true,
		AttachStderr:    true,
		NetworkDisabled: true,
	}

	hostConfig := &container.HostConfig{
		NetworkMode: "none",
		Binds: []string{
			fmt.Sprintf("%s:%s:ro", binary, containerBinary),
			fmt.Sprintf("%s:%s:ro", inputFile, containerInput),
		},
		ReadonlyRootfs: true,
		AutoRemove:     false, // Removed after logs are read
	}
	return config, hostConfig
}

func (r *DockerRunner) remove(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := r.client.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	}); err != nil {
		r.logger.Debugf("Failed to remove container %s: %v", containerID, err)
	}
}
