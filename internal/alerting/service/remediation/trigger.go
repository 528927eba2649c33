package remediation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog/log"
)

// SimulatedTrigger pretends a fix PR was merged and returns its commit hash.
type SimulatedTrigger struct{}

func (SimulatedTrigger) Trigger(ctx context.Context, target, alertID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf [20]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("generate change id: %w", err)
	}
	changeID := hex.EncodeToString(buf[:])
	log.Info().
		Str("target", target).
		Str("alert_id", alertID).
		Str("change_id", changeID).
		Msgf("Remediation: PR merged %s", changeID)
	return changeID, nil
}
