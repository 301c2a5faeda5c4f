package referral

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an operation is attempted
	// against a referral or reward in a state that does not allow it,
	// e.g. distributing an already-distributed reward.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrCodeGenerationExhausted is returned when no unique referral
	// code could be generated within the bounded retry budget. This is
	// an operational signal, not a normal runtime path.
	ErrCodeGenerationExhausted = errors.New("referral code generation exhausted retries")

	// ErrInvalidRewardConfig is returned when the program cannot be
	// enabled because the reward configuration is structurally
	// incomplete.
	ErrInvalidRewardConfig = errors.New("invalid reward configuration")
)

// DistributionError wraps a wallet collaborator failure during reward
// distribution. The reward is always marked failed before this is
// returned, so an attempted-but-incomplete reward is never lost.
type DistributionError struct {
	RewardID string
	Err      error
}

func (e *DistributionError) Error() string {
	return fmt.Sprintf("failed to distribute reward %s: %v", e.RewardID, e.Err)
}

func (e *DistributionError) Unwrap() error {
	return e.Err
}
