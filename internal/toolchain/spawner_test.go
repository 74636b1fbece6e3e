package toolchain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpawnCapturesStdoutAndExitCode(t *testing.T) {
	t.Parallel()

	s := NewSpawner(DefaultSpawnConfig())

	res, err := s.Spawn(
		context.Background(), "t1", []string{"sh", "-c", "echo hi"},
	)
	require.NoError(t, err)
	require.Equal(t, "hi\n", res.Stdout)
	require.Equal(t, 0, res.ExitCode)
	require.False(t, res.TimedOut)
}

func TestSpawnRecordsNonZeroExitCode(t *testing.T) {
	t.Parallel()

	s := NewSpawner(DefaultSpawnConfig())

	res, err := s.Spawn(
		context.Background(), "t2", []string{"sh", "-c", "exit 7"},
	)
	require.NoError(t, err)
	require.Equal(t, 7, res.ExitCode)
}

func TestSpawnTimesOutAndIsKilled(t *testing.T) {
	t.Parallel()

	s := NewSpawner(DefaultSpawnConfig())

	res, err := s.Spawn(
		context.Background(), "t3", []string{"sleep", "5"},
		WithTimeout(50*time.Millisecond),
	)
	require.NoError(t, err)
	require.True(t, res.TimedOut)
}

func TestGetProcessTracksCompletedInvocation(t *testing.T) {
	t.Parallel()

	s := NewSpawner(DefaultSpawnConfig())

	_, err := s.Spawn(context.Background(), "tracked", []string{"true"})
	require.NoError(t, err)

	proc := s.GetProcess("tracked")
	require.NotNil(t, proc)
	require.NotNil(t, proc.EndedAt)
	require.NotNil(t, proc.Result)
}

func TestBuildCmdWrapsWithContainerRuntime(t *testing.T) {
	t.Parallel()

	cfg := &SpawnConfig{
		ContainerRuntime: "docker",
		Platform:         "linux/amd64",
		WorkDir:          "/work",
	}

	got := buildCmd(cfg, []string{"clang", "-O2", "a.c"})
	require.Equal(t, []string{
		"docker", "run", "--rm", "--platform", "linux/amd64",
		"-v", "/work:/work", "-w", "/work", "clang", "-O2", "a.c",
	}, got)
}

func TestBuildCmdWithoutRuntimeIsIdentity(t *testing.T) {
	t.Parallel()

	argv := []string{"clang", "a.c"}
	got := buildCmd(&SpawnConfig{}, argv)
	require.Equal(t, argv, got)
}
