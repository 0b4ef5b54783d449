package directory

import (
	"strings"

	"github.com/ensemble-io/o2core/pkg/o2/addr"
	"github.com/ensemble-io/o2core/pkg/o2/wire"
)

// CreateService offers a service as this process, making it the active
// provider unless a higher-priority offer already exists (spec.md
// §4.C "Service conflict resolution").
func (d *Directory) CreateService(name string) (*Service, error) {
	svc := d.services[name]
	if svc == nil {
		svc = newService(name)
		d.services[name] = svc
	}
	for _, o := range svc.Offerers {
		if o.Process == d.self {
			return nil, ErrAlreadyExists
		}
	}
	svc.addOffer(&Offerer{Process: d.self, Kind: OfferLocal, Synced: true})
	d.reportStatus(svc)
	return svc, nil
}

// OfferRemote records a peer's announcement that it serves name,
// resolving conflicts per the lexicographic process-name rule.
func (d *Directory) OfferRemote(name, process string, kind OfferKind, properties string) *Service {
	svc := d.services[name]
	if svc == nil {
		svc = newService(name)
		d.services[name] = svc
	}
	svc.addOffer(&Offerer{Process: process, Kind: kind, Properties: properties})
	d.reportStatus(svc)
	return svc
}

// RemoveOffer retracts process's offer of name, e.g. on disconnect.
// If no offerer remains, the service entry is removed entirely and a
// status-unknown notification is emitted (spec.md §7: "the service
// directory then removes service entries whose provider was that
// connection and emits /_o2/si with status unknown").
func (d *Directory) RemoveOffer(name, process string) {
	svc := d.services[name]
	if svc == nil {
		return
	}
	svc.removeOffer(process)
	if len(svc.Offerers) == 0 {
		delete(d.services, name)
		d.notify(StatusChange{Service: name, Status: StatusUnknown, Process: process})
		return
	}
	d.reportStatus(svc)
}

// RemoveProcess retracts every offer process holds across all
// services, e.g. when its connection is torn down (spec.md §3
// "Connection (TCP)... torn down on close, and the system then
// republishes service removal to local subscribers via a status
// message"). It returns the names of services that had an offer from
// process.
func (d *Directory) RemoveProcess(process string) []string {
	var affected []string
	for name, svc := range d.services {
		for _, o := range svc.Offerers {
			if o.Process == process {
				affected = append(affected, name)
				break
			}
		}
	}
	for _, name := range affected {
		d.RemoveOffer(name, process)
	}
	return affected
}

func (d *Directory) reportStatus(svc *Service) {
	active := svc.Active()
	if active == nil {
		return
	}
	status := d.statusFor(active)
	d.notify(StatusChange{
		Service:    svc.Name,
		Status:     status,
		Process:    active.Process,
		Properties: active.Properties,
	})
}

func (d *Directory) statusFor(o *Offerer) ServiceStatus {
	switch o.Kind {
	case OfferLocal:
		return StatusLocal
	case OfferBridge:
		if o.Synced {
			return StatusBridge
		}
		return StatusBridgeNoTime
	default:
		if o.Synced {
			return StatusRemote
		}
		return StatusRemoteNoTime
	}
}

// AddHandler registers a callback at fullPath under a locally-owned
// service. fullPath must begin with "/<service>" and segments below
// it may contain no pattern characters: a handler address is always
// literal, only dispatch addresses may glob (spec.md §4.C step 3).
func (d *Directory) AddHandler(fullPath string, h *Handler) error {
	segments := strings.Split(strings.TrimPrefix(fullPath, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return ErrNoService
	}
	svcName := segments[0]
	svc := d.services[svcName]
	if svc == nil {
		return ErrNoService
	}
	h.FullPath = fullPath
	if len(segments) == 1 {
		svc.Tree.handler = h
		return nil
	}

	node := svc.Tree.root
	rest := segments[1:]
	for i, seg := range rest {
		last := i == len(rest)-1
		if last {
			node.children[seg] = &handlerNode{handler: h}
			return nil
		}
		next, ok := node.children[seg]
		if !ok {
			hn := newHashNode()
			node.children[seg] = hn
			node = hn
			continue
		}
		hn, ok := next.(*hashNode)
		if !ok {
			hn = newHashNode()
			node.children[seg] = hn
		}
		node = hn
	}
	return nil
}

// Dispatch routes msg per spec.md §4.C "Address resolution": service
// lookup, local literal fast path, local pattern matching, remote
// forwarding, or bridge forwarding. Dispatch does not defer messages
// that handlers send from within this call; Ensemble.Send defers them
// only while a scheduler-driven dispatch is in progress, and delivers
// them recursively otherwise.
func (d *Directory) Dispatch(msg *wire.Message) {
	d.inDispatch++
	defer func() { d.inDispatch-- }()

	if msg.IsBundle() {
		subs, err := wire.Unbundle(msg)
		if err != nil {
			d.log.Warnf("malformed bundle: %v", err)
			return
		}
		for _, sub := range subs {
			d.dispatchOne(sub)
		}
		return
	}
	d.dispatchOne(msg)
}

func (d *Directory) dispatchOne(msg *wire.Message) {
	svcName, rest, literal := splitAddress(msg.Address)
	svc := d.services[svcName]
	if svc == nil {
		d.warn("no_service", msg.Address, svcName)
		return
	}

	active := svc.Active()
	if active == nil {
		d.warn("no_service", msg.Address, svcName)
		return
	}

	switch active.Kind {
	case OfferLocal:
		d.dispatchLocal(svc, msg, rest, literal)
	case OfferRemote:
		d.forwardRemote(active, msg)
	case OfferBridge:
		d.forwardBridge(active, msg)
	}

	d.propagateTaps(svc, msg)
}

// splitAddress separates the service name from the remainder of the
// address and reports whether the remainder is free of OSC glob
// metacharacters (fast literal path) or an explicit "!"-literal
// address (spec.md §4.C step 2).
func splitAddress(address string) (svcName, rest string, literal bool) {
	trimmed := address
	forced := false
	if strings.HasPrefix(trimmed, "!") {
		trimmed = trimmed[1:]
		forced = true
	}
	trimmed = strings.TrimPrefix(trimmed, "/")
	slash := strings.IndexByte(trimmed, '/')
	if slash < 0 {
		return trimmed, "", true
	}
	svcName = trimmed[:slash]
	rest = trimmed[slash+1:]
	literal = forced || !addr.HasPatternChars(rest)
	return svcName, rest, literal
}

func (d *Directory) dispatchLocal(svc *Service, msg *wire.Message, rest string, literal bool) {
	if rest == "" {
		if svc.Tree.handler != nil {
			d.invoke(svc.Tree.handler, msg)
		}
		return
	}

	// A handler registered at the bare service address fires for
	// every message addressed to that service, in addition to any
	// more specific match (spec.md §4.C "Dispatch semantics").
	if svc.Tree.handler != nil {
		d.invoke(svc.Tree.handler, msg)
	}

	if literal {
		h := lookupLiteral(svc.Tree.root, rest)
		if h != nil {
			d.invoke(h, msg)
		}
		return
	}

	seen := make(map[*Handler]bool)
	matchPattern(svc.Tree.root, strings.Split(rest, "/"), func(h *Handler) {
		if !seen[h] {
			seen[h] = true
			d.invoke(h, msg)
		}
	})
}

func lookupLiteral(node *hashNode, rest string) *Handler {
	segments := strings.Split(rest, "/")
	cur := Node(node)
	for _, seg := range segments {
		hn, ok := cur.(*hashNode)
		if !ok {
			return nil
		}
		next, ok := hn.children[seg]
		if !ok {
			return nil
		}
		cur = next
	}
	if h, ok := cur.(*handlerNode); ok {
		return h.handler
	}
	return nil
}

func matchPattern(node *hashNode, segments []string, emit func(*Handler)) {
	if len(segments) == 0 {
		return
	}
	seg := segments[0]
	rest := segments[1:]
	for name, child := range node.children {
		if !addr.Match(seg, name) {
			continue
		}
		if len(rest) == 0 {
			if h, ok := child.(*handlerNode); ok {
				emit(h.handler)
			}
			continue
		}
		if hn, ok := child.(*hashNode); ok {
			matchPattern(hn, rest, emit)
		}
	}
}

func (d *Directory) invoke(h *Handler, msg *wire.Message) {
	if h.TypeSpec != "" {
		args, ok := coerceArgs(msg.Args, h.TypeSpec, h.Coerce)
		if !ok {
			d.warn("type_mismatch", msg.Address, h.TypeSpec)
			return
		}
		if h.Parse {
			h.Callback(msg, args, h.UserData)
			return
		}
		h.Callback(msg, nil, h.UserData)
		return
	}
	if h.Parse {
		h.Callback(msg, msg.Args, h.UserData)
		return
	}
	h.Callback(msg, nil, h.UserData)
}

// coerceArgs checks msg's argument types against spec (one char per
// argument, ignoring leading ',') and applies wire-level coercion when
// allowed.
func coerceArgs(args []wire.Arg, spec string, coerce bool) ([]wire.Arg, bool) {
	spec = strings.TrimPrefix(spec, ",")
	if len(spec) != len(args) {
		return nil, false
	}
	out := make([]wire.Arg, len(args))
	for i, want := range []byte(spec) {
		a := args[i]
		if a.Type == want {
			out[i] = a
			continue
		}
		if !coerce {
			return nil, false
		}
		coerced, ok := wire.Coerce(a, want)
		if !ok {
			return nil, false
		}
		out[i] = coerced
	}
	return out, true
}

func (d *Directory) forwardRemote(o *Offerer, msg *wire.Message) {
	if d.sender == nil {
		d.warn("no_sender", msg.Address, o.Process)
		return
	}
	if err := d.sender.SendTo(o.Process, msg, msg.Reliable()); err != nil {
		d.log.Warnf("forward to %s failed: %v", o.Process, err)
	}
}

func (d *Directory) forwardBridge(o *Offerer, msg *wire.Message) {
	if d.bridgeSender == nil {
		d.warn("no_sender", msg.Address, o.Process)
		return
	}
	if err := d.bridgeSender.SendToBridge(o.Process, msg); err != nil {
		d.log.Warnf("bridge forward to %s failed: %v", o.Process, err)
	}
}
