package repo

import (
	"os"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_WritesAndReadsDefault(t *testing.T) {
	repoRoot := t.TempDir()

	cfg, err := LoadConfig(repoRoot)
	require.Nil(t, err)
	assert.FileExists(t, path.Join(repoRoot, CfgFileName))
	assert.Equal(t, Duration(2*time.Second), cfg.Bundler.PollInterval)
	assert.Equal(t, Duration(60*time.Second), cfg.Bundler.PollTimeout)
	assert.False(t, cfg.Paymaster.AllowUnsponsored)

	// second load round-trips through the written file
	reloaded, err := LoadConfig(repoRoot)
	require.Nil(t, err)
	assert.Equal(t, cfg, reloaded)
}

func TestLoadConfig_Overrides(t *testing.T) {
	repoRoot := t.TempDir()
	raw := `
[bundler]
url = "http://bundler.internal:4337"
poll_interval = "500ms"

[bridge]
relay_interval = "30s"
fallback_fee_rate = "0.01"
supported_pairs = ["sepolia:xlayer", "xlayer:sepolia"]
`
	require.Nil(t, os.WriteFile(path.Join(repoRoot, CfgFileName), []byte(raw), 0755))

	cfg, err := LoadConfig(repoRoot)
	require.Nil(t, err)
	assert.Equal(t, "http://bundler.internal:4337", cfg.Bundler.URL)
	assert.Equal(t, Duration(500*time.Millisecond), cfg.Bundler.PollInterval)
	assert.Equal(t, Duration(30*time.Second), cfg.Bridge.RelayInterval)
	assert.Equal(t, "0.01", cfg.Bridge.FallbackFeeRate)
	assert.Equal(t, []string{"sepolia:xlayer", "xlayer:sepolia"}, cfg.Bridge.SupportedPairs)

	// untouched sections keep their defaults
	assert.Equal(t, "sponsor-all", cfg.Paymaster.Policy)
	assert.Len(t, cfg.Chains, 2)
}

func TestLoadConfig_RejectsWrongTypes(t *testing.T) {
	repoRoot := t.TempDir()
	raw := `
[bundler]
url = 4337
`
	require.Nil(t, os.WriteFile(path.Join(repoRoot, CfgFileName), []byte(raw), 0755))

	_, err := LoadConfig(repoRoot)
	assert.NotNil(t, err)
}

func TestLoad_RepoRootFromEnv(t *testing.T) {
	repoRoot := t.TempDir()
	t.Setenv(rootPathEnvVar, repoRoot)

	rep, err := Load("")
	require.Nil(t, err)
	assert.Equal(t, repoRoot, rep.RepoRoot)
	require.NotNil(t, rep.Config)
	assert.Len(t, rep.Config.Chains, 2)
}

func TestConfig_Chain(t *testing.T) {
	cfg := DefaultConfig()

	chain, ok := cfg.Chain("sepolia")
	require.True(t, ok)
	assert.Equal(t, uint64(11155111), chain.ChainID)
	assert.Equal(t, "ETH", chain.NativeSymbol)

	_, ok = cfg.Chain("arbitrum")
	assert.False(t, ok)
}

func TestLog_ModuleLevel(t *testing.T) {
	log := Log{Level: "info", Module: LogModule{Bridge: "debug"}}

	assert.Equal(t, "debug", log.ModuleLevel("bridge"))
	assert.Equal(t, "info", log.ModuleLevel("bundler"))
	assert.Equal(t, "info", log.ModuleLevel("not-a-module"))

	empty := Log{}
	assert.Equal(t, "info", empty.ModuleLevel("bridge"))
}

func TestCheckWritable(t *testing.T) {
	dir := t.TempDir()
	require.Nil(t, CheckWritable(dir))

	// probe file is cleaned up again
	entries, err := os.ReadDir(dir)
	require.Nil(t, err)
	assert.Empty(t, entries)

	assert.NotNil(t, CheckWritable(path.Join(dir, "missing")))
}

func TestDuration_TextRoundTrip(t *testing.T) {
	d := Duration(1500 * time.Millisecond)
	text, err := d.MarshalText()
	require.Nil(t, err)
	assert.Equal(t, "1.5s", string(text))

	var parsed Duration
	require.Nil(t, parsed.UnmarshalText(text))
	assert.Equal(t, d, parsed)

	assert.NotNil(t, parsed.UnmarshalText([]byte("not-a-duration")))
}
