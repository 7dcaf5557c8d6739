// Package setup implements the interactive configuration wizard.
package setup

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/rebalancer/config"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers collected by the wizard, kept as raw strings until Build.
type Answers struct {
	Platform      string
	Numeraire     string
	Targets       string
	Granularity   string
	DustThreshold string
	Sizing        string
	Interval      string
	Balances      string
	FeeBps        string
}

// DefaultAnswers returns the wizard defaults.
func DefaultAnswers() Answers {
	return Answers{
		Platform:      config.PlatformSimulate,
		Numeraire:     "USDT",
		Targets:       "BTC=40, ETH=40, USDT=20",
		Granularity:   "5",
		DustThreshold: "2",
		Sizing:        "balance",
		Interval:      "24h",
		Balances:      "BTC=0.5, ETH=5, USDT=10000",
		FeeBps:        "10",
	}
}

func screen(step string) {
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("REBALANCER CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

// Run launches the terminal configuration wizard and writes the YAML config to path.
func Run(path string) error {
	a := DefaultAnswers()
	var confirm bool

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("REBALANCER CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Describe the portfolio you want to hold.\n"))

	fmt.Println(stepStyle.Render("STEP 1: PLATFORM"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Exchange Platform").
				Options(
					huh.NewOption("Binance", config.PlatformBinance),
					huh.NewOption("Bybit", config.PlatformBybit),
					huh.NewOption("Simulation", config.PlatformSimulate),
				).
				Value(&a.Platform),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 2: TARGET ALLOCATION")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Numeraire").
				Description("Settlement coin every asset is valued in (e.g. USDT)").
				Value(&a.Numeraire).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("numeraire cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Target weights").
				Description("COIN=PERCENT pairs separated by commas, numeraire included").
				Value(&a.Targets).
				Validate(func(s string) error {
					_, _, err := ParseWeights(s)
					return err
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 3: PLANNER")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Granularity").
				Description("Targets are snapped to multiples of this many points").
				Value(&a.Granularity).
				Validate(validatePositive),
			huh.NewInput().
				Title("Dust threshold").
				Description("Drifts smaller than this many points are ignored").
				Value(&a.DustThreshold).
				Validate(validatePositive),
			huh.NewSelect[string]().
				Title("Trade sizing").
				Options(
					huh.NewOption("Percent of the source balance", "balance"),
					huh.NewOption("Percent of portfolio value", "portfolio"),
				).
				Value(&a.Sizing),
			huh.NewInput().
				Title("Rebalance interval").
				Description("Duration string (e.g. 1h, 24h)").
				Value(&a.Interval).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	if a.Platform == config.PlatformSimulate {
		screen("STEP 4: SIMULATED WALLET")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Initial balances").
					Description("COIN=AMOUNT pairs separated by commas").
					Value(&a.Balances).
					Validate(func(s string) error {
						_, _, err := ParseWeights(s)
						return err
					}),
				huh.NewInput().
					Title("Fee (bps)").
					Value(&a.FeeBps),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	screen("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Platform: %s\nNumeraire: %s\nTargets: %s\nSizing: %s\nInterval: %s\n",
		a.Platform, a.Numeraire, a.Targets, a.Sizing, a.Interval,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	if err := Write(path, a); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\nConfiguration saved to %s\nStarting rebalancer...", path)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

// Write validates the answers and saves them as YAML.
func Write(path string, a Answers) error {
	data, err := Render(a)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

// Render converts answers into YAML that config.Parse accepts.
func Render(a Answers) ([]byte, error) {
	cfgTmp, err := Build(a)
	if err != nil {
		return nil, err
	}
	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return nil, fmt.Errorf("failed to generate yaml: %w", err)
	}
	if _, err := config.Parse(data); err != nil {
		return nil, fmt.Errorf("generated config is invalid: %w", err)
	}
	return data, nil
}

// Build maps answers onto the YAML config structure.
func Build(a Answers) (config.ConfigTmp, error) {
	targets, order, err := ParseWeights(a.Targets)
	if err != nil {
		return config.ConfigTmp{}, fmt.Errorf("targets: %w", err)
	}
	interval, err := time.ParseDuration(a.Interval)
	if err != nil {
		return config.ConfigTmp{}, fmt.Errorf("interval: %w", err)
	}

	cfgTmp := config.ConfigTmp{
		Platform:          a.Platform,
		Numeraire:         strings.ToUpper(strings.TrimSpace(a.Numeraire)),
		Targets:           targets,
		TargetOrder:       order,
		Granularity:       a.Granularity,
		DustThreshold:     a.DustThreshold,
		Sizing:            a.Sizing,
		RebalanceInterval: interval,
	}

	if a.Platform == config.PlatformSimulate {
		balances, _, err := ParseWeights(a.Balances)
		if err != nil {
			return config.ConfigTmp{}, fmt.Errorf("initial balances: %w", err)
		}
		cfgTmp.Simulate.InitialBalances = balances
		cfgTmp.Simulate.FeeBps = a.FeeBps
	}
	return cfgTmp, nil
}

// ParseWeights parses "BTC=40, ETH=60" into a map and the coin order. Coins are upper-cased.
func ParseWeights(s string) (map[string]string, []string, error) {
	out := make(map[string]string)
	var order []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		coin, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, nil, fmt.Errorf("invalid entry %q: must be COIN=VALUE", part)
		}
		coin = strings.ToUpper(strings.TrimSpace(coin))
		value = strings.TrimSpace(value)
		if coin == "" {
			return nil, nil, fmt.Errorf("invalid entry %q: coin cannot be empty", part)
		}
		if _, dup := out[coin]; dup {
			return nil, nil, fmt.Errorf("%s listed twice", coin)
		}
		d, err := decimal.NewFromString(value)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: must be a valid number", coin)
		}
		if d.IsNegative() {
			return nil, nil, fmt.Errorf("%s: must not be negative", coin)
		}
		out[coin] = value
		order = append(order, coin)
	}
	if len(out) == 0 {
		return nil, nil, fmt.Errorf("at least one COIN=VALUE entry is required")
	}
	return out, order, nil
}

func validatePositive(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}
