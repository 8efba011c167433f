package transfer

import "fmt"

// Mode defines how a batch moves bytes.
type Mode string

const (
	// ModeAuto resolves to direct_sync or traditional once per batch.
	ModeAuto Mode = "auto"
	// ModeDirectSync copies store-to-store via the bulk tool, no bytes
	// through this process.
	ModeDirectSync Mode = "direct_sync"
	// ModeTraditional downloads to a local stage and uploads from it.
	ModeTraditional Mode = "traditional"
)

// ParseMode validates a wire-format mode string. Empty defaults to auto.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeDirectSync, ModeTraditional:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown transfer mode %q", s)
	}
}

// Capabilities are the environment facts the selector decides on.
type Capabilities struct {
	// BulkToolAvailable is true when the external bulk tool can be invoked.
	BulkToolAvailable bool
	// CrossAccount is true when source and destination use different
	// credentials or endpoints, which rules out server-side copy.
	CrossAccount bool
}

// DirectSyncEligible reports whether every descriptor pair can be served
// by a same-store server-side copy.
func DirectSyncEligible(descriptors []TransferDescriptor) bool {
	for _, d := range descriptors {
		if !d.Source.IsObjectStore() || !d.Destination.IsObjectStore() {
			return false
		}
		if d.Source.Store != d.Destination.Store {
			return false
		}
	}
	return true
}

// SelectMode resolves the requested mode into a concrete one for the whole
// batch. Mixed-mode batches are disallowed so result accounting stays
// simple. Pure function: same inputs always yield the same mode.
func SelectMode(requested Mode, descriptors []TransferDescriptor, caps Capabilities) (Mode, error) {
	eligible := DirectSyncEligible(descriptors) && caps.BulkToolAvailable && !caps.CrossAccount

	switch requested {
	case ModeAuto, "":
		if eligible {
			return ModeDirectSync, nil
		}
		return ModeTraditional, nil

	case ModeTraditional:
		return ModeTraditional, nil

	case ModeDirectSync:
		if eligible {
			return ModeDirectSync, nil
		}
		return "", &ModeUnavailableError{Requested: ModeDirectSync, Reason: directSyncBlocker(descriptors, caps)}

	default:
		return "", fmt.Errorf("unknown transfer mode %q", requested)
	}
}

func directSyncBlocker(descriptors []TransferDescriptor, caps Capabilities) string {
	if !caps.BulkToolAvailable {
		return "bulk transfer tool not available"
	}
	if caps.CrossAccount {
		return "source and destination use different credentials"
	}
	for _, d := range descriptors {
		if !d.Source.IsObjectStore() {
			return fmt.Sprintf("source %s is not an object-store URL", d.Source.String())
		}
		if d.Source.Store != d.Destination.Store {
			return fmt.Sprintf("source store %s differs from destination store %s", d.Source.Store, d.Destination.Store)
		}
	}
	return "direct sync not eligible"
}
