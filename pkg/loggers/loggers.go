package loggers

import (
	"os"

	ethlog "github.com/ethereum/go-ethereum/log"
	"github.com/sirupsen/logrus"

	"github.com/axiomesh/axiom-aa-gateway/pkg/repo"
)

const (
	App          = "app"
	SmartAccount = "saccount"
	Chain        = "chain"
	Paymaster    = "paymaster"
	Bundler      = "bundler"
	Bridge       = "bridge"
	Pipeline     = "pipeline"
)

var w = &LoggerWrapper{
	loggers: map[string]*logrus.Entry{
		App:          newWithModule(App),
		SmartAccount: newWithModule(SmartAccount),
		Chain:        newWithModule(Chain),
		Paymaster:    newWithModule(Paymaster),
		Bundler:      newWithModule(Bundler),
		Bridge:       newWithModule(Bridge),
		Pipeline:     newWithModule(Pipeline),
	},
}

type LoggerWrapper struct {
	loggers map[string]*logrus.Entry
}

func newWithModule(name string) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000",
	})
	return logger.WithField("module", name)
}

func InitializeEthLog(logger *logrus.Entry) {
	ethlog.SetDefault(ethlog.NewLogger(&LogrusHandler{
		Logger: logger,
		Level:  levelMapReverse[logger.Logger.GetLevel()],
	}))
}

// Initialize rebuilds the module loggers from the repo config, applying
// per-module levels where set and the global level everywhere else.
func Initialize(rep *repo.Repo) error {
	config := rep.Config

	m := make(map[string]*logrus.Entry)
	for _, name := range []string{App, SmartAccount, Chain, Paymaster, Bundler, Bridge, Pipeline} {
		m[name] = newWithModule(name)
		level, err := logrus.ParseLevel(config.Log.ModuleLevel(name))
		if err != nil {
			return err
		}
		m[name].Logger.SetLevel(level)
	}

	w = &LoggerWrapper{loggers: m}
	InitializeEthLog(m[Chain])
	return nil
}

func Logger(name string) logrus.FieldLogger {
	return w.loggers[name]
}
