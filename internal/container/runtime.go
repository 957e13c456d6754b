// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container runs the external document conversion tools (pandoc,
// LibreOffice) either from the local PATH or inside a docker/podman
// container with the working directory mounted.
package container

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/pdiddy/legal-ingest/pkg/types"
)

const (
	binDocker = "docker"
	binPodman = "podman"

	// mountPoint is where the working directory appears inside a container.
	mountPoint = "/data"
)

// Tool names an external program and the image that provides it.
type Tool struct {
	// Bin is the executable name, e.g. "pandoc".
	Bin string

	// Image is the container image used in container mode.
	Image string
}

// Runner runs a tool with args inside workDir and returns its stdout. Args
// naming files must be relative to workDir.
type Runner interface {
	Run(ctx context.Context, tool Tool, workDir string, args ...string) ([]byte, error)
}

// Runtime provides container operations: checking availability, verifying
// images, and running containers.
type Runtime interface {
	// Name returns the runtime name ("docker" or "podman").
	Name() string

	// Available reports whether the runtime binary exists on PATH and
	// responds to an info command.
	Available() bool

	// ImageExists checks whether the named image exists locally.
	ImageExists(image string) error

	// Exec runs entrypoint from image with workDir mounted at /data as the
	// container's working directory.
	Exec(ctx context.Context, image, entrypoint, workDir string, args ...string) ([]byte, error)
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(name string, args ...string) error
	Output(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) RunSilent(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

func (o *osExecutor) Output(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// runtime implements Runtime for a specific container binary. Both Docker
// and Podman share the same logic; they differ only in binary name and the
// subcommand used to check image existence.
type runtime struct {
	bin           string
	imageCheckCmd []string // e.g. ["image", "inspect"] for docker
	exec          executor
}

func (r *runtime) Name() string { return r.bin }

func (r *runtime) Available() bool {
	if _, err := r.exec.LookPath(r.bin); err != nil {
		return false
	}
	return r.exec.RunSilent(r.bin, "info") == nil
}

func (r *runtime) ImageExists(image string) error {
	args := make([]string, 0, len(r.imageCheckCmd)+1)
	args = append(args, r.imageCheckCmd...)
	args = append(args, image)

	if err := r.exec.RunSilent(r.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, r.bin, err)
	}
	return nil
}

func (r *runtime) Exec(ctx context.Context, image, entrypoint, workDir string, args ...string) ([]byte, error) {
	full := []string{
		"run", "--rm",
		"--entrypoint", entrypoint,
		"-v", workDir + ":" + mountPoint,
		"-w", mountPoint,
		image,
	}
	full = append(full, args...)
	out, err := r.exec.Output(ctx, "", r.bin, full...)
	if err != nil {
		return nil, fmt.Errorf("running %s container %s: %w", r.bin, image, err)
	}
	return out, nil
}

func newDockerRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binDocker,
		imageCheckCmd: []string{"image", "inspect"},
		exec:          exec,
	}
}

func newPodmanRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binPodman,
		imageCheckCmd: []string{"image", "exists"},
		exec:          exec,
	}
}

var defaultExec = &osExecutor{}

// DetectRuntime tries docker first, falls back to podman. Returns an error
// if neither runtime is available.
func DetectRuntime() (Runtime, error) {
	return detectRuntime(defaultExec)
}

func detectRuntime(exec executor) (Runtime, error) {
	docker := newDockerRuntime(exec)
	if docker.Available() {
		return docker, nil
	}

	podman := newPodmanRuntime(exec)
	if podman.Available() {
		return podman, nil
	}

	return nil, fmt.Errorf(
		"no container runtime available: neither %s nor %s found or operational",
		binDocker, binPodman,
	)
}

// localRunner runs tools from PATH.
type localRunner struct {
	exec executor
}

func (l *localRunner) Run(ctx context.Context, tool Tool, workDir string, args ...string) ([]byte, error) {
	if _, err := l.exec.LookPath(tool.Bin); err != nil {
		return nil, fmt.Errorf("%s not found on PATH: %w", tool.Bin, err)
	}
	out, err := l.exec.Output(ctx, workDir, tool.Bin, args...)
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", tool.Bin, err)
	}
	return out, nil
}

// containerRunner runs tools through a container runtime.
type containerRunner struct {
	rt Runtime
}

func (c *containerRunner) Run(ctx context.Context, tool Tool, workDir string, args ...string) ([]byte, error) {
	if tool.Image == "" {
		return nil, fmt.Errorf("no container image configured for %s", tool.Bin)
	}
	if err := c.rt.ImageExists(tool.Image); err != nil {
		return nil, err
	}
	return c.rt.Exec(ctx, tool.Image, tool.Bin, workDir, args...)
}

// NewRunner returns the runner for mode: tools from PATH, or tools inside
// containers of the detected runtime.
func NewRunner(mode types.ToolMode) (Runner, error) {
	return newRunner(mode, defaultExec)
}

func newRunner(mode types.ToolMode, exec executor) (Runner, error) {
	switch mode {
	case types.ToolLocal, "":
		return &localRunner{exec: exec}, nil
	case types.ToolContainer:
		rt, err := detectRuntime(exec)
		if err != nil {
			return nil, err
		}
		return &containerRunner{rt: rt}, nil
	}
	return nil, fmt.Errorf("%w: unknown tools mode %q", types.ErrConfig, mode)
}
