package orchestrator

// State names one phase of a relay cycle.
type State string

const (
	StateIdle          State = "idle"
	StateFetchTip      State = "fetch_tip"
	StateComputeWindow State = "compute_window"
	StateScan          State = "scan"
	StateBuildSubmit   State = "build_and_submit"
	StateCommit        State = "commit"
	StateSleep         State = "sleep"
	StateShuttingDown  State = "shutting_down"
)

// validTransitions defines the cycle's state machine. The happy path is
// linear; any fetch/scan failure short-circuits to SLEEP, and
// SHUTTING_DOWN is reachable from every state on cancellation.
var validTransitions = map[State][]State{
	StateIdle:          {StateFetchTip},
	StateFetchTip:      {StateComputeWindow, StateSleep},
	StateComputeWindow: {StateScan, StateCommit, StateSleep},
	StateScan:          {StateBuildSubmit, StateSleep},
	StateBuildSubmit:   {StateCommit, StateSleep},
	StateCommit:        {StateSleep},
	StateSleep:         {StateIdle},
}

// CanTransition checks whether a transition is allowed.
func CanTransition(from, to State) bool {
	if to == StateShuttingDown {
		return true
	}
	for _, target := range validTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}
