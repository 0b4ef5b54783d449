package directory

import "github.com/ensemble-io/o2core/pkg/o2/wire"

// OfferKind distinguishes what's behind an offerer record.
type OfferKind int

const (
	OfferLocal OfferKind = iota
	OfferRemote
	OfferBridge
)

// Offerer is one entry in a service's priority-ordered offer list,
// spec.md §4.C: "an ordered list of offerers (by process-name
// priority); the head is the active provider."
type Offerer struct {
	Process    string
	Kind       OfferKind
	Properties string // escaped string form, spec.md §4.C "Properties"
	Synced     bool   // clock-sync status, feeds ServiceStatus for remote offerers
}

// TapMode selects the transport a tap copy travels over, spec.md
// §4.C "Taps": "keep=same as original, reliable=TCP, best_effort=UDP".
type TapMode int

const (
	TapKeep TapMode = iota
	TapReliable
	TapBestEffort
)

// Tap is one subscriber registered against a service.
type Tap struct {
	Tapper string
	Mode   TapMode
}

// Handler is a leaf callback record, spec.md §4.C: "(type_spec,
// coerce_flag, parse_flag, callback, user_data, full_path)".
type Handler struct {
	FullPath   string
	TypeSpec   string // empty means "accept anything"
	Coerce     bool
	Parse      bool
	Callback   HandlerFunc
	UserData   interface{}
}

// HandlerFunc receives a dispatched message. If Handler.Parse is set,
// Args holds the parsed (and possibly coerced) arguments; otherwise
// Args is nil and the handler is expected to read msg.Args itself.
type HandlerFunc func(msg *wire.Message, args []wire.Arg, userData interface{})

// Service is the top-level directory entry for one service name.
type Service struct {
	Name     string
	Offerers []*Offerer // index 0 is always the active provider
	Tree     *servicesNode
	Taps     []Tap
}

func newService(name string) *Service {
	return &Service{
		Name: name,
		Tree: &servicesNode{root: newHashNode()},
	}
}

// Active returns the current provider, or nil if the service has no
// offerers left (about to be removed).
func (s *Service) Active() *Offerer {
	if len(s.Offerers) == 0 {
		return nil
	}
	return s.Offerers[0]
}

// addOffer inserts an offer, resolving conflicts by the lexicographic
// process-name rule from spec.md §4.C: "both sides independently
// compare process names; the larger wins." The list stays sorted
// descending by process name so index 0 is always the winner.
func (s *Service) addOffer(o *Offerer) {
	for i, existing := range s.Offerers {
		if existing.Process == o.Process {
			s.Offerers[i] = o
			return
		}
	}
	s.Offerers = append(s.Offerers, o)
	// Insertion sort: the list is small (rarely more than a handful
	// of competing offerers), descending by process name.
	for i := len(s.Offerers) - 1; i > 0; i-- {
		if s.Offerers[i].Process > s.Offerers[i-1].Process {
			s.Offerers[i], s.Offerers[i-1] = s.Offerers[i-1], s.Offerers[i]
		} else {
			break
		}
	}
}

func (s *Service) removeOffer(process string) {
	for i, o := range s.Offerers {
		if o.Process == process {
			s.Offerers = append(s.Offerers[:i], s.Offerers[i+1:]...)
			return
		}
	}
}
