package o2

import (
	"github.com/ensemble-io/o2core/pkg/o2/directory"
	"github.com/ensemble-io/o2core/pkg/o2log"
)

// ProtocolVersion is this build's protocol version, advertised in discovery
// announcements (spec.md §6).
var ProtocolVersion = Version{Major: 2, Minor: 0, Patch: 0}

// Configuration controls one Ensemble instance. Zero value is not
// usable; use DefaultConfiguration and override fields.
type Configuration struct {
	// Ensemble is the ASCII label carried in discovery messages; only
	// processes with matching labels interact (spec.md §3
	// "Ensemble").
	Ensemble string

	// TapTTLLimit is the loop guard on tap forwarding, spec.md §9's
	// open question: the original hard-codes 3.
	TapTTLLimit uint32

	// PollHz is purely advisory documentation of the recommended poll
	// rate (spec.md §5 "recommended ≥ 100 Hz"); o2core does not drive
	// its own timer, the caller's loop does.
	PollHz int

	// DropWarning receives a reason and offending address whenever
	// dispatch drops a message (spec.md §7). A nil value disables
	// warnings, matching "passing null disables warnings."
	DropWarning func(reason DropReason, address string)

	// JumpCallback handles clock offset jumps beyond the 1s smoothing
	// threshold (spec.md §4.E). May be nil, meaning every jump is
	// ignored.
	JumpCallback func(localNow, oldGlobal, newGlobal float64) bool

	// Logger is the ambient leveled logger; defaults to o2log.New if
	// left nil.
	Logger o2log.Logger
}

// DefaultConfiguration returns a Configuration with the documented
// defaults filled in for the given ensemble label.
func DefaultConfiguration(ensemble string) Configuration {
	return Configuration{
		Ensemble:    ensemble,
		TapTTLLimit: directory.DefaultTapTTLLimit,
		PollHz:      100,
	}
}
