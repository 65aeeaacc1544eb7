package robot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "armgadget.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"broker":{"url":"mqtt://pi:1883"}}`), 0600))

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "ArmGadget", cfg.Name)
	assert.Equal(t, "mqtt://pi:1883", cfg.Broker.URL)
	assert.Equal(t, "armgadget/directives", cfg.Broker.Topic)
	assert.False(t, cfg.Arm.IsCalibrated())
}

func TestConfigSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "armgadget.json")
	cfg := DefaultConfig()
	cfg.Arm.Port = "/dev/ttyACM0"
	cfg.Arm.Calibration = DefaultCalibration()
	cfg.Listen = ":8080"

	require.False(t, ConfigExists(path))
	require.NoError(t, cfg.SaveTo(path))
	require.True(t, ConfigExists(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfigFrom(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0600))
	_, err = LoadConfigFrom(path)
	assert.Error(t, err)
}
