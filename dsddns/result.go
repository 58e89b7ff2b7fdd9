package dsddns

import (
	"fmt"
	"net/netip"
)

// Action is the reconciliation outcome for one hostname.
type Action int

const (
	ActionUnchanged Action = iota
	ActionCreated
	ActionUpdated
	ActionFailed
)

func (a Action) String() string {
	switch a {
	case ActionUnchanged:
		return "unchanged"
	case ActionCreated:
		return "created"
	case ActionUpdated:
		return "updated"
	case ActionFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown<%d>", int(a))
	}
}

// Result describes what happened to one hostname during a pass. PreviousIP
// is only valid when an existing record was found; NewIP is the address the
// pass drove towards. Err is set iff Action is ActionFailed. In a dry run
// Action reports what would have been done.
type Result struct {
	Hostname   string
	Zone       string
	RecordName string
	PreviousIP netip.Addr
	NewIP      netip.Addr
	Action     Action
	Err        error
}

func (r Result) Ok() bool {
	return r.Action != ActionFailed
}

// Succeeded counts the results that converged.
func Succeeded(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Ok() {
			n++
		}
	}

	return n
}

// ExitCode maps a run's results to the process exit status: zero only when
// every hostname converged.
func ExitCode(results []Result) int {
	if Succeeded(results) != len(results) {
		return 1
	}

	return 0
}
