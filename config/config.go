package config

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/rebalancer/internal/domain"
	"github.com/vadiminshakov/rebalancer/internal/services/rebalance"
)

const (
	PlatformBinance  = "binance"
	PlatformBybit    = "bybit"
	PlatformSimulate = "simulate"

	defaultInterval  = 24 * time.Hour
	defaultDataDir   = "./wal"
	defaultHTTPAddr  = ":8080"
	defaultFeeBps    = 10
	defaultRPS       = 5
	defaultFailures  = 3
	defaultOpenAfter = time.Minute
)

// Config is the parsed rebalancer configuration.
type Config struct {
	Platform  string
	Numeraire string
	// Targets static allocation; ignored when TargetsFile is set.
	Targets     []domain.TargetAllocation
	TargetsFile string
	// Universe coins that enter the snapshot; defaults to the static target coins.
	Universe []string
	Decimals map[string]int32

	Granularity   decimal.Decimal
	DustThreshold decimal.Decimal
	Apportionment rebalance.Apportionment
	Sizing        rebalance.Sizing

	RebalanceInterval  time.Duration
	ClampToLiveBalance bool
	DataDir            string
	HTTPAddr           string

	Simulate SimulateConfig
	Guard    GuardConfig

	// set from command line flags
	Once   bool
	DryRun bool
	// Setup requests the interactive wizard; only Path is filled in then.
	Setup bool
	Path  string
}

// SimulateConfig configures the simulated wallet.
type SimulateConfig struct {
	InitialBalances map[string]decimal.Decimal
	FeeBps          decimal.Decimal
	// Prices static per-coin prices in the numeraire; empty means live Binance prices.
	Prices map[string]decimal.Decimal
}

// GuardConfig configures exchange rate limiting and the swap circuit breaker.
type GuardConfig struct {
	RequestsPerSecond float64
	FailureThreshold  uint32
	OpenTimeout       time.Duration
}

// PlannerConfig returns the engine configuration.
func (c Config) PlannerConfig() rebalance.Config {
	return rebalance.Config{
		Numeraire:     c.Numeraire,
		Granularity:   c.Granularity,
		DustThreshold: c.DustThreshold,
		Apportionment: c.Apportionment,
		Sizing:        c.Sizing,
	}
}

// ConfigTmp mirrors the YAML file; numbers are kept as strings and parsed to decimals.
type ConfigTmp struct {
	Platform           string            `yaml:"platform"`
	Numeraire          string            `yaml:"numeraire"`
	Targets            map[string]string `yaml:"targets,omitempty"`
	TargetOrder        []string          `yaml:"target_order,omitempty"`
	TargetsFile        string            `yaml:"targets_file,omitempty"`
	Universe           []string          `yaml:"universe,omitempty"`
	Decimals           map[string]int32  `yaml:"decimals,omitempty"`
	Granularity        string            `yaml:"granularity,omitempty"`
	DustThreshold      string            `yaml:"dust_threshold,omitempty"`
	Apportionment      string            `yaml:"apportionment,omitempty"`
	Sizing             string            `yaml:"sizing,omitempty"`
	RebalanceInterval  time.Duration     `yaml:"rebalance_interval,omitempty"`
	ClampToLiveBalance bool              `yaml:"clamp_to_live_balance,omitempty"`
	DataDir            string            `yaml:"data_dir,omitempty"`
	HTTPAddr           string            `yaml:"http_addr,omitempty"`
	Simulate           struct {
		InitialBalances map[string]string `yaml:"initial_balances,omitempty"`
		FeeBps          string            `yaml:"fee_bps,omitempty"`
		Prices          map[string]string `yaml:"prices,omitempty"`
	} `yaml:"simulate,omitempty"`
	Guard struct {
		RequestsPerSecond float64       `yaml:"requests_per_second,omitempty"`
		FailureThreshold  uint32        `yaml:"failure_threshold,omitempty"`
		OpenTimeout       time.Duration `yaml:"open_timeout,omitempty"`
	} `yaml:"guard,omitempty"`
}

// Get parses command line flags and loads the YAML file given by --config.
// With --setup the file is not loaded, the caller is expected to run the wizard first.
func Get() (Config, error) {
	path := flag.String("config", "config.yaml", "path to yaml config")
	once := flag.Bool("once", false, "run a single rebalance and exit")
	dryRun := flag.Bool("dry-run", false, "plan without executing swaps")
	setup := flag.Bool("setup", false, "run the interactive config wizard and write --config")
	flag.Parse()

	if *setup {
		return Config{Setup: true, Path: *path, Once: *once, DryRun: *dryRun}, nil
	}

	conf, err := Load(*path)
	if err != nil {
		return Config{}, err
	}
	conf.Once = *once
	conf.DryRun = *dryRun
	conf.Path = *path
	return conf, nil
}

// Load reads and validates a YAML config file.
func Load(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(f)
}

// Parse decodes and validates YAML config content.
func Parse(data []byte) (Config, error) {
	var tmp ConfigTmp
	if err := yaml.Unmarshal(data, &tmp); err != nil {
		return Config{}, fmt.Errorf("failed to decode yaml config: %w", err)
	}
	return tmp.toConfig()
}

func (c ConfigTmp) toConfig() (Config, error) {
	conf := Config{
		Platform:           strings.ToLower(strings.TrimSpace(c.Platform)),
		Numeraire:          strings.TrimSpace(c.Numeraire),
		TargetsFile:        c.TargetsFile,
		Decimals:           c.Decimals,
		Apportionment:      rebalance.Apportionment(c.Apportionment),
		Sizing:             rebalance.Sizing(c.Sizing),
		RebalanceInterval:  c.RebalanceInterval,
		ClampToLiveBalance: c.ClampToLiveBalance,
		DataDir:            c.DataDir,
		HTTPAddr:           c.HTTPAddr,
		Guard: GuardConfig{
			RequestsPerSecond: c.Guard.RequestsPerSecond,
			FailureThreshold:  c.Guard.FailureThreshold,
			OpenTimeout:       c.Guard.OpenTimeout,
		},
	}

	switch conf.Platform {
	case PlatformBinance, PlatformBybit, PlatformSimulate:
	default:
		return Config{}, fmt.Errorf("unsupported platform: %q", c.Platform)
	}
	if conf.Numeraire == "" {
		return Config{}, fmt.Errorf("'numeraire' is required")
	}

	defaults := rebalance.DefaultConfig(conf.Numeraire)
	var err error
	if conf.Granularity, err = decimalOr(c.Granularity, defaults.Granularity, "granularity"); err != nil {
		return Config{}, err
	}
	if conf.DustThreshold, err = decimalOr(c.DustThreshold, defaults.DustThreshold, "dust_threshold"); err != nil {
		return Config{}, err
	}
	if conf.Apportionment == "" {
		conf.Apportionment = defaults.Apportionment
	}
	if conf.Sizing == "" {
		conf.Sizing = defaults.Sizing
	}
	if _, err := rebalance.NewPlanner(conf.PlannerConfig()); err != nil {
		return Config{}, err
	}

	if conf.Targets, err = parseTargets(c.Targets, c.TargetOrder); err != nil {
		return Config{}, err
	}
	if len(conf.Targets) == 0 && conf.TargetsFile == "" {
		return Config{}, fmt.Errorf("either 'targets' or 'targets_file' is required")
	}

	conf.Universe = c.Universe
	if len(conf.Universe) == 0 {
		for _, t := range conf.Targets {
			conf.Universe = append(conf.Universe, t.CoinType)
		}
	}

	if conf.RebalanceInterval <= 0 {
		conf.RebalanceInterval = defaultInterval
	}
	if conf.DataDir == "" {
		conf.DataDir = defaultDataDir
	}
	if conf.HTTPAddr == "" {
		conf.HTTPAddr = defaultHTTPAddr
	}
	if conf.Guard.RequestsPerSecond <= 0 {
		conf.Guard.RequestsPerSecond = defaultRPS
	}
	if conf.Guard.FailureThreshold == 0 {
		conf.Guard.FailureThreshold = defaultFailures
	}
	if conf.Guard.OpenTimeout <= 0 {
		conf.Guard.OpenTimeout = defaultOpenAfter
	}

	if conf.Simulate.InitialBalances, err = decimalMap(c.Simulate.InitialBalances, "simulate.initial_balances"); err != nil {
		return Config{}, err
	}
	if conf.Simulate.Prices, err = decimalMap(c.Simulate.Prices, "simulate.prices"); err != nil {
		return Config{}, err
	}
	if conf.Simulate.FeeBps, err = decimalOr(c.Simulate.FeeBps, decimal.NewFromInt(defaultFeeBps), "simulate.fee_bps"); err != nil {
		return Config{}, err
	}
	if conf.Platform == PlatformSimulate && len(conf.Simulate.InitialBalances) == 0 {
		return Config{}, fmt.Errorf("'simulate.initial_balances' is required for the simulate platform")
	}

	return conf, nil
}

// parseTargets builds the allocation list. Map order is not stable, so entries follow
// target_order when given and lexical order otherwise.
func parseTargets(raw map[string]string, order []string) ([]domain.TargetAllocation, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	coins := order
	if len(coins) == 0 {
		coins = make([]string, 0, len(raw))
		for coin := range raw {
			coins = append(coins, coin)
		}
		sort.Strings(coins)
	}
	if len(coins) != len(raw) {
		return nil, fmt.Errorf("'target_order' must list every target coin exactly once")
	}

	targets := make([]domain.TargetAllocation, 0, len(coins))
	for _, coin := range coins {
		value, ok := raw[coin]
		if !ok {
			return nil, fmt.Errorf("'target_order' names %s which has no target", coin)
		}
		pct, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("incorrect target for %s in yaml config (must be a decimal), error: %w", coin, err)
		}
		targets = append(targets, domain.TargetAllocation{CoinType: coin, TargetPercentage: pct})
	}
	return targets, nil
}

func decimalOr(raw string, def decimal.Decimal, name string) (decimal.Decimal, error) {
	if raw == "" {
		return def, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("incorrect '%s' param in yaml config (must be a decimal), error: %w", name, err)
	}
	return v, nil
}

func decimalMap(raw map[string]string, name string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(raw))
	for k, v := range raw {
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("incorrect '%s.%s' param in yaml config (must be a decimal), error: %w", name, k, err)
		}
		out[k] = parsed
	}
	return out, nil
}
