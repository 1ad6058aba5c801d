package bot

// State is where the bot is in its check/trade cycle.
type State int

const (
	Idle State = iota
	Checking
	NoTrade
	TradeProposed
	Executing
	Settled
	ShuttingDown
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Checking:
		return "checking"
	case NoTrade:
		return "no_trade"
	case TradeProposed:
		return "trade_proposed"
	case Executing:
		return "executing"
	case Settled:
		return "settled"
	case ShuttingDown:
		return "shutting_down"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}
