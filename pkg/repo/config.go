package repo

import (
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

type Duration time.Duration

func (d *Duration) MarshalText() (text []byte, err error) {
	return []byte(time.Duration(*d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	x, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(x)
	return nil
}

func StringToTimeDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data any) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t != reflect.TypeOf(Duration(5)) {
			return data, nil
		}

		d, err := time.ParseDuration(data.(string))
		if err != nil {
			return nil, err
		}
		return Duration(d), nil
	}
}

func (d *Duration) ToDuration() time.Duration {
	return time.Duration(*d)
}

func (d *Duration) String() string {
	return time.Duration(*d).String()
}

type Config struct {
	Chains    []Chain   `mapstructure:"chains" toml:"chains"`
	Bundler   Bundler   `mapstructure:"bundler" toml:"bundler"`
	Paymaster Paymaster `mapstructure:"paymaster" toml:"paymaster"`
	Bridge    Bridge    `mapstructure:"bridge" toml:"bridge"`
	Log       Log       `mapstructure:"log" toml:"log"`
}

type Chain struct {
	Name           string `mapstructure:"name" toml:"name"`
	ChainID        uint64 `mapstructure:"chain_id" toml:"chain_id"`
	RPCURL         string `mapstructure:"rpc_url" toml:"rpc_url"`
	EntryPoint     string `mapstructure:"entrypoint" toml:"entrypoint"`
	AccountFactory string `mapstructure:"account_factory" toml:"account_factory"`
	NativeSymbol   string `mapstructure:"native_symbol" toml:"native_symbol"`
}

type Bundler struct {
	URL          string   `mapstructure:"url" toml:"url"`
	PollInterval Duration `mapstructure:"poll_interval" toml:"poll_interval"`
	PollTimeout  Duration `mapstructure:"poll_timeout" toml:"poll_timeout"`
}

type Paymaster struct {
	URL              string `mapstructure:"url" toml:"url"`
	Policy           string `mapstructure:"policy" toml:"policy"`
	AllowUnsponsored bool   `mapstructure:"allow_unsponsored" toml:"allow_unsponsored"`
}

type Bridge struct {
	AggregatorURL     string   `mapstructure:"aggregator_url" toml:"aggregator_url"`
	RelayInterval     Duration `mapstructure:"relay_interval" toml:"relay_interval"`
	FallbackFeeRate   string   `mapstructure:"fallback_fee_rate" toml:"fallback_fee_rate"`
	SlippageTolerance string   `mapstructure:"slippage_tolerance" toml:"slippage_tolerance"`
	SupportedPairs    []string `mapstructure:"supported_pairs" toml:"supported_pairs"`
}

type Log struct {
	Level  string    `mapstructure:"level" toml:"level"`
	Module LogModule `mapstructure:"module" toml:"module"`
}

type LogModule struct {
	SmartAccount string `mapstructure:"saccount" toml:"saccount"`
	Chain        string `mapstructure:"chain" toml:"chain"`
	Paymaster    string `mapstructure:"paymaster" toml:"paymaster"`
	Bundler      string `mapstructure:"bundler" toml:"bundler"`
	Bridge       string `mapstructure:"bridge" toml:"bridge"`
	Pipeline     string `mapstructure:"pipeline" toml:"pipeline"`
}

// ModuleLevel returns the configured level for a module logger, falling back
// to the global level when the module has no override.
func (l *Log) ModuleLevel(module string) string {
	levels := map[string]string{
		"saccount":  l.Module.SmartAccount,
		"chain":     l.Module.Chain,
		"paymaster": l.Module.Paymaster,
		"bundler":   l.Module.Bundler,
		"bridge":    l.Module.Bridge,
		"pipeline":  l.Module.Pipeline,
	}
	if level, ok := levels[module]; ok && level != "" {
		return level
	}
	if l.Level == "" {
		return "info"
	}
	return l.Level
}

func (c *Config) Chain(name string) (*Chain, bool) {
	for i := range c.Chains {
		if c.Chains[i].Name == name {
			return &c.Chains[i], true
		}
	}
	return nil, false
}

func DefaultConfig() *Config {
	return &Config{
		Chains: []Chain{
			{
				Name:           "sepolia",
				ChainID:        11155111,
				RPCURL:         "https://rpc.sepolia.org",
				EntryPoint:     "0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789",
				AccountFactory: "0x9406Cc6185a346906296840746125a0E44976454",
				NativeSymbol:   "ETH",
			},
			{
				Name:           "xlayer",
				ChainID:        196,
				RPCURL:         "https://rpc.xlayer.tech",
				EntryPoint:     "0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789",
				AccountFactory: "0x9406Cc6185a346906296840746125a0E44976454",
				NativeSymbol:   "OKB",
			},
		},
		Bundler: Bundler{
			URL:          "http://localhost:4337",
			PollInterval: Duration(2 * time.Second),
			PollTimeout:  Duration(60 * time.Second),
		},
		Paymaster: Paymaster{
			URL:              "http://localhost:4338",
			Policy:           "sponsor-all",
			AllowUnsponsored: false,
		},
		Bridge: Bridge{
			AggregatorURL:     "https://aggregator.example.com/api/v5/dex/cross-chain",
			RelayInterval:     Duration(15 * time.Second),
			FallbackFeeRate:   "0.005",
			SlippageTolerance: "0.01",
			SupportedPairs:    []string{"sepolia:xlayer"},
		},
		Log: Log{
			Level: "info",
		},
	}
}
