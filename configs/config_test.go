package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sfincsrun/pkg/models"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("SFINCSRUN_CONFIG", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "docker", cfg.DockerBin)
	assert.Equal(t, "apptainer", cfg.ApptainerBin)
	assert.Equal(t, "deltares/sfincs-cpu", cfg.ImageRepository)
	assert.Equal(t, models.DefaultImageTag, cfg.ImageTag)
	assert.Equal(t, "/data", cfg.ContainerMount)
	assert.Equal(t, 3, cfg.PublishFailureThreshold)
	assert.Empty(t, cfg.Store.Kind)
	assert.False(t, cfg.TracingEnabled)
}

func TestLoadConfig_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sfincsrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
image_tag: sfincs-v2.2.0
docker_bin: /usr/local/bin/docker
store:
  kind: s3
  bucket: flood-models
  prefix: runs/
tracing_enabled: true
`), 0644))

	t.Setenv("SFINCSRUN_CONFIG", path)
	t.Setenv("SFINCSRUN_IMAGE_TAG", "from-env")
	t.Setenv("SFINCSRUN_PUBLISH_FAILURE_THRESHOLD", "5")
	t.Setenv("SFINCSRUN_TRACING_SAMPLING", "0.25")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/usr/local/bin/docker", cfg.DockerBin)
	assert.Equal(t, "from-env", cfg.ImageTag)
	assert.Equal(t, "s3", cfg.Store.Kind)
	assert.Equal(t, "flood-models", cfg.Store.Bucket)
	assert.Equal(t, "runs/", cfg.Store.Prefix)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, 5, cfg.PublishFailureThreshold)
	assert.InDelta(t, 0.25, cfg.TracingSampling, 1e-9)
	assert.Equal(t, "apptainer", cfg.ApptainerBin, "unset keys keep defaults")
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	t.Setenv("SFINCSRUN_CONFIG", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "docker", cfg.DockerBin)
}

func TestLoadConfig_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("docker_binary: /bin/docker\n"), 0644))
	t.Setenv("SFINCSRUN_CONFIG", path)

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv("SFINCSRUN_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestEnvHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("SFINCSRUN_TEST_INT", "many")
	t.Setenv("SFINCSRUN_TEST_BOOL", "perhaps")
	t.Setenv("SFINCSRUN_TEST_FLOAT", "")

	assert.Equal(t, 7, getEnvAsInt("SFINCSRUN_TEST_INT", 7))
	assert.True(t, getEnvAsBool("SFINCSRUN_TEST_BOOL", true))
	assert.Equal(t, 1.5, getEnvAsFloat("SFINCSRUN_TEST_FLOAT", 1.5))
}
