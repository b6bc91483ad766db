// Package metrics keeps process-wide operational counters for a scrape run.
package metrics

import (
	"fmt"
	"strings"
	"sync/atomic"
)

var counters struct {
	ActionRetries     atomic.Int64
	SlowActions       atomic.Int64
	ScrollCycles      atomic.Int64
	LinksHarvested    atomic.Int64
	HarvestIncomplete atomic.Int64
	CaptchaSolved     atomic.Int64
	CaptchaFailed     atomic.Int64
	ChannelsSucceeded atomic.Int64
	ChannelsFailed    atomic.Int64
}

var order = []string{
	"action_retries", "slow_actions",
	"scroll_cycles", "links_harvested", "harvest_incomplete",
	"captcha_solved", "captcha_failed",
	"channels_succeeded", "channels_failed",
}

// Snapshot returns the current value of every counter.
func Snapshot() map[string]int64 {
	return map[string]int64{
		"action_retries":     counters.ActionRetries.Load(),
		"slow_actions":       counters.SlowActions.Load(),
		"scroll_cycles":      counters.ScrollCycles.Load(),
		"links_harvested":    counters.LinksHarvested.Load(),
		"harvest_incomplete": counters.HarvestIncomplete.Load(),
		"captcha_solved":     counters.CaptchaSolved.Load(),
		"captcha_failed":     counters.CaptchaFailed.Load(),
		"channels_succeeded": counters.ChannelsSucceeded.Load(),
		"channels_failed":    counters.ChannelsFailed.Load(),
	}
}

// Format renders the counters one per line in a stable order.
func Format() string {
	m := Snapshot()
	var sb strings.Builder
	for _, k := range order {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

func IncrActionRetries()     { counters.ActionRetries.Add(1) }
func IncrSlowActions()       { counters.SlowActions.Add(1) }
func IncrHarvestIncomplete() { counters.HarvestIncomplete.Add(1) }
func IncrCaptchaSolved()     { counters.CaptchaSolved.Add(1) }
func IncrCaptchaFailed()     { counters.CaptchaFailed.Add(1) }
func IncrChannelsSucceeded() { counters.ChannelsSucceeded.Add(1) }
func IncrChannelsFailed()    { counters.ChannelsFailed.Add(1) }

// AddScrollCycles records scroll cycles performed by one harvest.
func AddScrollCycles(n int) { counters.ScrollCycles.Add(int64(n)) }

// AddLinksHarvested records links collected by one harvest.
func AddLinksHarvested(n int) { counters.LinksHarvested.Add(int64(n)) }
