package repo

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	AppName = "axiom-aa-gateway"

	// CfgFileName is the default config name
	CfgFileName = "config.toml"

	rootPathEnvVar = "AXIOM_AA_GATEWAY_PATH"

	defaultRepoRoot = "~/.axiom-aa-gateway"

	envPrefix = "AXIOM_AA_GATEWAY"
)

type Repo struct {
	RepoRoot string
	Config   *Config
}

func (r *Repo) PrintInfo(writer func(c string)) {
	writer(fmt.Sprintf("%s-repo: %s", AppName, r.RepoRoot))
	for _, chain := range r.Config.Chains {
		writer(fmt.Sprintf("chain %s: id=%d entrypoint=%s", chain.Name, chain.ChainID, chain.EntryPoint))
	}
}

func Load(repoRoot string) (*Repo, error) {
	repoRoot, err := LoadRepoRootFromEnv(repoRoot)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(repoRoot)
	if err != nil {
		return nil, err
	}
	return &Repo{
		RepoRoot: repoRoot,
		Config:   cfg,
	}, nil
}

func LoadRepoRootFromEnv(repoRoot string) (string, error) {
	if repoRoot != "" {
		return repoRoot, nil
	}
	repoRoot = os.Getenv(rootPathEnvVar)
	if len(repoRoot) != 0 {
		return repoRoot, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return strings.Replace(defaultRepoRoot, "~", home, 1), nil
}

func LoadConfig(repoRoot string) (*Config, error) {
	cfg := DefaultConfig()
	cfgPath := path.Join(repoRoot, CfgFileName)
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := os.MkdirAll(repoRoot, 0755); err != nil {
			return nil, errors.Wrap(err, "failed to build default config")
		}
		if err := CheckWritable(repoRoot); err != nil {
			return nil, errors.Wrap(err, "failed to build default config")
		}
		if err := writeConfig(cfgPath, cfg); err != nil {
			return nil, errors.Wrap(err, "failed to build default config")
		}
		return cfg, nil
	}
	if err := readConfigFromFile(cfgPath, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to load config from %s", cfgPath)
	}
	return cfg, nil
}

func writeConfig(cfgPath string, config any) error {
	raw, err := toml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(cfgPath, raw, 0755)
}

func readConfigFromFile(cfgFilePath string, config any) error {
	vp := viper.New()
	vp.SetConfigFile(cfgFilePath)
	vp.SetConfigType("toml")

	// only check types, viper does not have a strong type checking
	raw, err := os.ReadFile(cfgFilePath)
	if err != nil {
		return err
	}
	decoder := toml.NewDecoder(bytes.NewBuffer(raw))
	checker := reflect.New(reflect.TypeOf(config).Elem())
	if err := decoder.Decode(checker.Interface()); err != nil {
		var decodeError *toml.DecodeError
		if errors.As(err, &decodeError) {
			return errors.Errorf("check config format failed from %s:\n%s", cfgFilePath, decodeError.String())
		}
		return errors.Wrapf(err, "check config format failed from %s", cfgFilePath)
	}

	return readConfig(vp, config)
}

func readConfig(vp *viper.Viper, config any) error {
	vp.AutomaticEnv()
	vp.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	vp.SetEnvKeyReplacer(replacer)

	if err := vp.ReadInConfig(); err != nil {
		return err
	}

	if err := vp.Unmarshal(config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		StringToTimeDurationHookFunc(),
		func(
			f reflect.Kind,
			t reflect.Kind,
			data any) (any, error) {
			if f != reflect.String || t != reflect.Slice {
				return data, nil
			}

			raw := data.(string)
			if raw == "" {
				return []string{}, nil
			}
			raw = strings.TrimPrefix(raw, ";")
			raw = strings.TrimSuffix(raw, ";")

			return strings.Split(raw, ";"), nil
		},
	))); err != nil {
		return err
	}

	return nil
}

func CheckWritable(dir string) error {
	_, err := os.Stat(dir)
	if err != nil {
		return err
	}
	testfile := filepath.Join(dir, ".touch")
	fi, err := os.Create(testfile)
	if err != nil {
		if os.IsPermission(err) {
			return errors.Errorf("%s is not writeable by the current user", dir)
		}
		return err
	}
	_ = fi.Close()
	return os.Remove(testfile)
}
