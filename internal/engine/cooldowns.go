package engine

import "time"

// DefaultCooldowns are the expected cooldowns (seconds) of the stock economy
// commands. Snipe detection only runs for commands with a known cooldown.
var DefaultCooldowns = map[string]float64{
	"work":   3600,
	"daily":  86400,
	"weekly": 604800,
	"crime":  7200,
	"beg":    300,
}

// CooldownPolicy represents per-deployment cooldown overrides.
// Loaded from the cooldowns section of the service config.
type CooldownPolicy struct {
	Commands map[string]CommandPolicy `koanf:"commands" json:"commands"`
}

// GetCommandPolicy returns the policy for a command by name.
// If the CooldownPolicy is nil or the command is missing, returns
// a zero-value CommandPolicy (all nil fields → defaults).
func (cp *CooldownPolicy) GetCommandPolicy(command string) CommandPolicy {
	if cp == nil || cp.Commands == nil {
		return CommandPolicy{}
	}
	return cp.Commands[command]
}

// CommandPolicy controls snipe detection for a single command.
// All pointer fields use nil to mean "use the built-in default".
type CommandPolicy struct {
	CooldownSec *float64 `koanf:"cooldown_sec" json:"cooldown_sec"` // nil = DefaultCooldowns entry
	SnipeCheck  *bool    `koanf:"snipe_check" json:"snipe_check"`   // nil = true
}

// IsSnipeChecked returns whether snipe detection runs for the command.
func (p CommandPolicy) IsSnipeChecked() bool {
	if p.SnipeCheck == nil {
		return true
	}
	return *p.SnipeCheck
}

// EffectiveCooldown returns the command's expected cooldown. ok is false
// when neither the policy nor DefaultCooldowns knows the command.
func (p CommandPolicy) EffectiveCooldown(command string) (sec float64, ok bool) {
	if p.CooldownSec != nil {
		return *p.CooldownSec, *p.CooldownSec > 0
	}
	sec, ok = DefaultCooldowns[command]
	return sec, ok
}

// CommandSnipe is the snipe result for one command's own interval series.
type CommandSnipe struct {
	Command     string
	CooldownSec float64
	Samples     int
	SnipeResult
}

// DetectSnipes groups oldest-first events by command name and runs
// CheckSnipe on each group that has a cooldown and at least two intervals.
// Results are returned in order of each command's first appearance.
func DetectSnipes(events []CommandEvent, policy *CooldownPolicy) []CommandSnipe {
	byCommand := make(map[string][]CommandEvent)
	var order []string
	for _, e := range events {
		if _, seen := byCommand[e.CommandName]; !seen {
			order = append(order, e.CommandName)
		}
		byCommand[e.CommandName] = append(byCommand[e.CommandName], e)
	}

	var out []CommandSnipe
	for _, name := range order {
		p := policy.GetCommandPolicy(name)
		if !p.IsSnipeChecked() {
			continue
		}
		cd, ok := p.EffectiveCooldown(name)
		if !ok {
			continue
		}
		group := byCommand[name]
		times := make([]time.Time, 0, len(group))
		for _, e := range group {
			times = append(times, e.ExecutedAt)
		}
		intervals := IntervalSeries(times)
		if len(intervals) < 2 {
			continue
		}
		out = append(out, CommandSnipe{
			Command:     name,
			CooldownSec: cd,
			Samples:     len(intervals),
			SnipeResult: CheckSnipe(intervals, cd),
		})
	}
	return out
}
