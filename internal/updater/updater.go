// Package updater detects a stale toolchain pin in the gate configuration
// and proposes the rewrite as a reviewable change.
package updater

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"go.uber.org/zap"

	"gateward/internal/forge"
)

// ErrPinNotFound is returned when the configuration contains no version
// pin matching the fixed lexical pattern. The configuration is left
// byte-for-byte unchanged.
var ErrPinNotFound = errors.New("version pin pattern not found in gate config")

// pinPattern is the fixed lexical shape of the pin: a literal prefix
// followed by a YYYY-MM-DD date component.
var pinPattern = regexp.MustCompile(`nightly-\d{4}-\d{2}-\d{2}`)

// Labels carried by every drift-update proposed change.
var Labels = []string{"dependencies", "automated"}

// CanonicalPin maps a timestamp to the canonical date-stamped identifier.
func CanonicalPin(now time.Time) string {
	return "nightly-" + now.UTC().Format("2006-01-02")
}

// BranchFor returns the deterministic source branch for a pin update.
func BranchFor(pin string) string {
	return "auto/pin/" + pin
}

// Rewrite substitutes the pin date component in the configuration text.
// Everything outside the matched token is untouched. changed is false when
// the config already carries the canonical pin for now (re-running on the
// same day is a no-op).
func Rewrite(config []byte, now time.Time) (updated []byte, pin string, changed bool, err error) {
	pin = CanonicalPin(now)

	current := pinPattern.Find(config)
	if current == nil {
		return nil, "", false, ErrPinNotFound
	}
	if string(current) == pin {
		return config, pin, false, nil
	}

	updated = pinPattern.ReplaceAll(config, []byte(pin))
	return updated, pin, true, nil
}

// Updater rewrites the pinned version in the gate configuration and opens
// the proposed change carrying that edit. It never writes the integration
// branch directly.
type Updater struct {
	log        *zap.SugaredLogger
	forge      forge.Forge
	baseBranch string
}

func New(log *zap.SugaredLogger, f forge.Forge, baseBranch string) *Updater {
	return &Updater{log: log, forge: f, baseBranch: baseBranch}
}

// Update runs one drift check against the gate configuration file. It
// returns the opened proposed change, or nil when the pin is already
// current. On ErrPinNotFound the file is not touched; a failed proposal
// restores the original configuration bytes.
func (u *Updater) Update(ctx context.Context, configPath string, now time.Time) (*forge.ProposedChange, error) {
	original, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read gate config: %w", err)
	}

	updated, pin, changed, err := Rewrite(original, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		u.log.Infow("pin already current", "pin", pin)
		return nil, nil
	}
	if bytes.Equal(original, updated) {
		// Should not happen once changed is true; guard anyway.
		return nil, nil
	}

	if err := os.WriteFile(configPath, updated, 0644); err != nil {
		return nil, fmt.Errorf("write gate config: %w", err)
	}

	change, err := u.forge.OpenChange(ctx, forge.CreateOpts{
		Title:      fmt.Sprintf("Update pinned toolchain to %s", pin),
		Body:       fmt.Sprintf("Scheduled drift update. Replaces the pinned toolchain identifier with `%s`.\n\nThe diff contains only this substitution.", pin),
		Labels:     Labels,
		Paths:      []string{configPath},
		HeadBranch: BranchFor(pin),
		BaseBranch: u.baseBranch,
	})
	if err != nil {
		// Leave no direct edit behind; the substitution reaches the
		// integration branch only through a merged proposed change.
		if restoreErr := os.WriteFile(configPath, original, 0644); restoreErr != nil {
			return nil, fmt.Errorf("open proposed change: %w (restore gate config: %v)", err, restoreErr)
		}
		return nil, fmt.Errorf("open proposed change: %w", err)
	}

	u.log.Infow("drift update proposed",
		"pin", pin, "branch", change.HeadBranch, "number", change.Number)
	return change, nil
}
