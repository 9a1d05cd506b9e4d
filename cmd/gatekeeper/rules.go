package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/gatekeeper/pkg/cli"
	"mercator-hq/gatekeeper/pkg/limits/ratelimit"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect rate limit rule strings",
	Long: `A rule string is a comma-separated list of capacity:window_seconds pairs.
"100:1,3000:60" allows bursts of 100 requests, refilled at 100 per second,
and at most 3000 within any minute.`,
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check <rules>...",
	Short: "Parse rule strings and show each rule's refill rate",
	Args:  cobra.MinimumNArgs(1),
	RunE:  checkRules,
}

var simulateFlags struct {
	requests int
	interval time.Duration
}

var rulesSimulateCmd = &cobra.Command{
	Use:   "simulate <rules>",
	Short: "Replay a steady request stream against a rule string",
	Long: `Drive a limiter built from the rule string with --requests requests spaced
--interval apart on a simulated clock and print every decision.

Examples:
  # 3 per second, requests every 200ms
  gatekeeper rules simulate "3:1" --requests 10 --interval 200ms`,
	Args: cobra.ExactArgs(1),
	RunE: simulateRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesCheckCmd, rulesSimulateCmd)

	rulesSimulateCmd.Flags().IntVarP(&simulateFlags.requests, "requests", "n", 10, "number of requests")
	rulesSimulateCmd.Flags().DurationVar(&simulateFlags.interval, "interval", 100*time.Millisecond, "time between requests")
}

type ruleCheck struct {
	Spec   string `json:"spec"`
	Valid  bool   `json:"valid"`
	Rules  []rule `json:"rules,omitempty"`
	Reason string `json:"error,omitempty"`
}

type rule struct {
	Capacity       int64  `json:"capacity"`
	WindowSeconds  int64  `json:"window_seconds"`
	RefillInterval string `json:"refill_interval"`
}

type ruleChecks []ruleCheck

func (rc ruleChecks) Table() *cli.Table {
	t := &cli.Table{Headers: []string{"SPEC", "RULE", "REFILL", "STATUS"}}
	for _, c := range rc {
		if !c.Valid {
			t.AddRow(c.Spec, "-", "-", "invalid: "+c.Reason)
			continue
		}
		for _, r := range c.Rules {
			t.AddRow(c.Spec, fmt.Sprintf("%d:%d", r.Capacity, r.WindowSeconds), r.RefillInterval, "ok")
		}
	}
	return t
}

func checkRules(cmd *cobra.Command, args []string) error {
	results := make(ruleChecks, 0, len(args))
	invalid := 0
	for _, spec := range args {
		parsed, err := ratelimit.ParseRules(spec)
		if err != nil {
			invalid++
			results = append(results, ruleCheck{Spec: spec, Reason: err.Error()})
			continue
		}
		c := ruleCheck{Spec: spec, Valid: true}
		for _, r := range parsed {
			refill := "never"
			if d := r.RefillInterval(); d > 0 {
				refill = d.String()
			}
			c.Rules = append(c.Rules, rule{
				Capacity:       r.Capacity,
				WindowSeconds:  int64(r.Window / time.Second),
				RefillInterval: refill,
			})
		}
		results = append(results, c)
	}

	if err := render(cmd, results); err != nil {
		return err
	}
	if invalid > 0 {
		return cli.NewCommandError("rules check", fmt.Errorf("%d of %d rule strings invalid", invalid, len(args)))
	}
	return nil
}

type decision struct {
	Request    int    `json:"request"`
	At         string `json:"at"`
	Allowed    bool   `json:"allowed"`
	Remaining  int64  `json:"remaining"`
	RetryAfter string `json:"retry_after,omitempty"`
}

type simulation struct {
	Rules     string     `json:"rules"`
	Interval  string     `json:"interval"`
	Allowed   int        `json:"allowed"`
	Rejected  int        `json:"rejected"`
	Decisions []decision `json:"decisions"`
}

func (s *simulation) Table() *cli.Table {
	t := &cli.Table{Headers: []string{"REQUEST", "AT", "RESULT", "REMAINING", "RETRY_AFTER"}}
	for _, d := range s.Decisions {
		result := "allowed"
		if !d.Allowed {
			result = "rejected"
		}
		t.AddRow(strconv.Itoa(d.Request), d.At, result, strconv.FormatInt(d.Remaining, 10), d.RetryAfter)
	}
	t.AddRow("", "", fmt.Sprintf("%d allowed, %d rejected", s.Allowed, s.Rejected), "", "")
	return t
}

// simulate runs requests against spec on a manual clock. The first request
// is at T+0.
func simulate(spec string, requests int, interval time.Duration) (*simulation, error) {
	if requests < 1 {
		return nil, errors.New("--requests must be at least 1")
	}
	if interval < 0 {
		return nil, errors.New("--interval cannot be negative")
	}

	clock := ratelimit.NewManualClock(time.Unix(0, 0))
	limiter, err := ratelimit.New(spec, ratelimit.WithClock(clock))
	if err != nil {
		return nil, err
	}

	sim := &simulation{Rules: limiter.String(), Interval: interval.String()}
	for i := 0; i < requests; i++ {
		if i > 0 {
			clock.Advance(interval)
		}
		res := limiter.Acquire()
		d := decision{
			Request:   i + 1,
			At:        "T+" + (time.Duration(i) * interval).String(),
			Allowed:   res.Allowed,
			Remaining: res.Remaining,
		}
		if res.Allowed {
			sim.Allowed++
		} else {
			sim.Rejected++
			if res.RetryAfter > 0 {
				d.RetryAfter = res.RetryAfter.String()
			}
		}
		sim.Decisions = append(sim.Decisions, d)
	}
	return sim, nil
}

func simulateRules(cmd *cobra.Command, args []string) error {
	sim, err := simulate(args[0], simulateFlags.requests, simulateFlags.interval)
	if err != nil {
		return cli.NewCommandError("rules simulate", err)
	}
	return render(cmd, sim)
}
