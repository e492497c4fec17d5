package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ConfigDebug                    = "debug"
	ConfigRegularization           = "regularization"
	ConfigMaxIterations            = "max-iterations"
	ConfigBaseScore                = "base-score"
	ConfigTeamSize                 = "team-size"
	ConfigCourts                   = "courts"
	ConfigPointsToWin              = "points-to-win"
	ConfigPeriods                  = "periods"
	ConfigPairingTimeout           = "pairing-timeout"
	ConfigNatsURL                  = "nats-url"
	ConfigNatsSubjectPrefix        = "nats-subject-prefix"
	ConfigRequestTimeout           = "request-timeout"
	ConfigExactCacheMemoryFraction = "exact-cache-memory-fraction"
)

const envPrefix = "COURTRANK"

// Config is a viper instance seeded with courtrank's defaults. Values come
// from, in order of precedence, flags, COURTRANK_* environment variables
// and the defaults.
type Config struct {
	*viper.Viper
}

func DefaultConfig() Config {
	v := viper.New()
	v.SetDefault(ConfigDebug, false)
	v.SetDefault(ConfigRegularization, 1.0)
	v.SetDefault(ConfigMaxIterations, 50)
	v.SetDefault(ConfigBaseScore, 10.0)
	v.SetDefault(ConfigTeamSize, 2)
	v.SetDefault(ConfigCourts, 0)
	v.SetDefault(ConfigPointsToWin, 21)
	v.SetDefault(ConfigPeriods, 3)
	v.SetDefault(ConfigPairingTimeout, 5*time.Second)
	v.SetDefault(ConfigNatsURL, "nats://127.0.0.1:4222")
	v.SetDefault(ConfigNatsSubjectPrefix, "courtrank")
	v.SetDefault(ConfigRequestTimeout, 30*time.Second)
	v.SetDefault(ConfigExactCacheMemoryFraction, 0.05)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return Config{Viper: v}
}

// Flags returns a flag set with one flag per setting. Parse it and pass it
// to Load.
func (c Config) Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.Bool(ConfigDebug, c.GetBool(ConfigDebug), "debug logging on")
	fs.Float64(ConfigRegularization, c.GetFloat64(ConfigRegularization), "pseudo-points each player has against the anchor")
	fs.Int(ConfigMaxIterations, c.GetInt(ConfigMaxIterations), "maximum optimizer iterations")
	fs.Float64(ConfigBaseScore, c.GetFloat64(ConfigBaseScore), "display score of the weakest rated player")
	fs.Int(ConfigTeamSize, c.GetInt(ConfigTeamSize), "players per team")
	fs.Int(ConfigCourts, c.GetInt(ConfigCourts), "courts per round, 0 for as many as possible")
	fs.Int(ConfigPointsToWin, c.GetInt(ConfigPointsToWin), "points needed to win a period")
	fs.Int(ConfigPeriods, c.GetInt(ConfigPeriods), "periods per match (best of)")
	fs.Duration(ConfigPairingTimeout, c.GetDuration(ConfigPairingTimeout), "time limit for the pairing search")
	fs.String(ConfigNatsURL, c.GetString(ConfigNatsURL), "NATS server URL")
	fs.String(ConfigNatsSubjectPrefix, c.GetString(ConfigNatsSubjectPrefix), "prefix for the service subjects")
	fs.Duration(ConfigRequestTimeout, c.GetDuration(ConfigRequestTimeout), "how long --remote waits for a reply")
	fs.Float64(ConfigExactCacheMemoryFraction, c.GetFloat64(ConfigExactCacheMemoryFraction), "fraction of memory for the exact scheduler's dead-end cache")
	return fs
}

// Load binds an already parsed flag set. Only flags that were set on the
// command line override environment variables.
func (c Config) Load(fs *pflag.FlagSet) error {
	return c.BindPFlags(fs)
}
