package domain

// GameError is a player-facing precondition failure. Message is safe to show
// in the client; Code is stable for programmatic handling.
type GameError struct {
	Code    string
	Message string
}

func (e *GameError) Error() string { return e.Message }

func gameErr(code, msg string) *GameError { return &GameError{Code: code, Message: msg} }

var (
	ErrBanned           = gameErr("banned", "Account is banned")
	ErrNotEnoughCoins   = gameErr("insufficient_funds", "Not enough coins")
	ErrMaxLevel         = gameErr("max_level", "Boost is already at max level")
	ErrInvalidBoost     = gameErr("invalid_boost", "Unknown boost type")
	ErrNoRockets        = gameErr("no_rockets", "No rockets left")
	ErrFullEnergyUsed   = gameErr("full_energy_used", "Full energy already used today")
	ErrNoEnergy         = gameErr("no_energy", "Not enough energy")
	ErrTapTooFast       = gameErr("rate_limited", "Tapping too fast")
	ErrTaskNotFound     = gameErr("not_found", "Task not found")
	ErrTaskNotStarted   = gameErr("not_started", "cannot complete before starting")
	ErrTaskCompleted    = gameErr("already_completed", "Task already completed")
	ErrTaskNotReady     = gameErr("not_ready", "Task is not ready to complete")
	ErrAlreadyClaimed   = gameErr("already_claimed", "Already claimed today's reward")
	ErrInvalidCard      = gameErr("invalid_card", "Invalid card index")
	ErrCardFound        = gameErr("already_found", "Card already found")
	ErrTooEarly         = gameErr("too_early", "Not enough time has passed")
	ErrItemNotFound     = gameErr("not_found", "Item not found")
	ErrReferralNotFound = gameErr("not_found", "Referral not found")
	ErrReferralClaimed  = gameErr("already_claimed", "Referral reward already claimed")
	ErrNothingToCollect = gameErr("nothing_to_collect", "No league reward to collect")
	ErrInvalidAmount    = gameErr("invalid_amount", "Invalid amount")
	ErrSessionNotReady  = gameErr("not_ready", "Session is not initialized")
)
