package directory

import (
	"strings"

	"github.com/ensemble-io/o2core/pkg/o2/wire"
)

// AddTap registers tapper to receive a copy of every message delivered
// to svc's active local provider, spec.md §4.C "Taps".
func (d *Directory) AddTap(svcName, tapper string, mode TapMode) error {
	svc := d.services[svcName]
	if svc == nil {
		return ErrNoService
	}
	for i, t := range svc.Taps {
		if t.Tapper == tapper {
			svc.Taps[i].Mode = mode
			return nil
		}
	}
	svc.Taps = append(svc.Taps, Tap{Tapper: tapper, Mode: mode})
	return nil
}

// RemoveTap unregisters tapper from svc.
func (d *Directory) RemoveTap(svcName, tapper string) {
	svc := d.services[svcName]
	if svc == nil {
		return
	}
	for i, t := range svc.Taps {
		if t.Tapper == tapper {
			svc.Taps = append(svc.Taps[:i], svc.Taps[i+1:]...)
			return
		}
	}
}

// propagateTaps iterates svc's tap list after normal dispatch, copying
// msg with the service component of its address substituted for each
// tapper and an incremented ttl (spec.md §4.C "Taps"). Bundles were
// already flattened by Dispatch before this is reached, so each
// sub-message is tapped independently, matching "Bundles are flattened
// before tap copying."
func (d *Directory) propagateTaps(svc *Service, msg *wire.Message) {
	if len(svc.Taps) == 0 {
		return
	}
	for _, tap := range svc.Taps {
		cp := msg.Clone()
		if err := cp.IncrementTTL(d.tapTTL); err != nil {
			d.log.Warnf("tap dropped: %v", err)
			continue
		}
		cp.Flags |= FlagTapCopyBit(tap.Mode)
		cp.Address = substituteService(msg.Address, tap.Tapper)

		target := d.services[tap.Tapper]
		if target == nil {
			d.warn("no_service", cp.Address, tap.Tapper)
			continue
		}
		active := target.Active()
		if active == nil {
			continue
		}
		switch active.Kind {
		case OfferLocal:
			d.dispatchLocal(target, cp, stripService(cp.Address), true)
		case OfferRemote:
			d.sendTapped(active, cp, tap.Mode)
		case OfferBridge:
			d.forwardBridge(active, cp)
		}
	}
}

// FlagTapCopyBit reports the wire flag bits to OR into a tap copy;
// kept as a function (not a bare constant reference) so the mode is
// visibly part of the decision, even though today only the
// FlagTapCopy bit itself is set regardless of mode — the transport
// layer picks TCP vs UDP for reliable/best_effort, not the flag.
func FlagTapCopyBit(mode TapMode) uint32 {
	return wire.FlagTapCopy
}

func (d *Directory) sendTapped(o *Offerer, msg *wire.Message, mode TapMode) {
	if d.sender == nil {
		return
	}
	reliable := msg.Reliable()
	switch mode {
	case TapReliable:
		reliable = true
	case TapBestEffort:
		reliable = false
	}
	if err := d.sender.SendTo(o.Process, msg, reliable); err != nil {
		d.log.Warnf("tap forward to %s failed: %v", o.Process, err)
	}
}

func substituteService(address, newService string) string {
	trimmed := strings.TrimPrefix(address, "/")
	if slash := strings.IndexByte(trimmed, '/'); slash >= 0 {
		return "/" + newService + "/" + trimmed[slash+1:]
	}
	return "/" + newService
}

func stripService(address string) string {
	trimmed := strings.TrimPrefix(address, "/")
	if slash := strings.IndexByte(trimmed, '/'); slash >= 0 {
		return trimmed[slash+1:]
	}
	return ""
}
