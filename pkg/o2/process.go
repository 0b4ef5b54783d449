package o2

import (
	"fmt"
	"strconv"
	"strings"
)

// LocalAlias and ReferenceAlias are the two process-name aliases
// spec.md §6 reserves: "_o2 refers to the local process; _cs refers
// to the clock reference."
const (
	LocalAlias     = "_o2"
	ReferenceAlias = "_cs"
)

// Process identifies an ensemble member by its stable name
// @<pub_ip_hex>:<internal_ip_hex>:<tcp_port_hex> (spec.md §6).
type Process struct {
	PublicIP   uint32
	InternalIP uint32
	TCPPort    uint16
}

// String renders the canonical @P:I:T form.
func (p Process) String() string {
	return fmt.Sprintf("@%08x:%08x:%04x", p.PublicIP, p.InternalIP, p.TCPPort)
}

// Less reports whether p sorts before other under the lexicographic
// process-name ordering spec.md §3/§4.C uses to resolve service
// conflicts: "the larger (lexicographic) wins."
func (p Process) Less(other Process) bool {
	return p.String() < other.String()
}

// ParseProcess parses the canonical @P:I:T form back into a Process,
// returning ErrBadName if it is malformed.
func ParseProcess(name string) (Process, error) {
	if !strings.HasPrefix(name, "@") {
		return Process{}, fmt.Errorf("%w: %q missing '@' prefix", ErrBadName, name)
	}
	parts := strings.Split(name[1:], ":")
	if len(parts) != 3 {
		return Process{}, fmt.Errorf("%w: %q does not have 3 fields", ErrBadName, name)
	}
	pub, err := strconv.ParseUint(parts[0], 16, 32)
	if err != nil {
		return Process{}, fmt.Errorf("%w: bad public ip %q", ErrBadName, parts[0])
	}
	internal, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return Process{}, fmt.Errorf("%w: bad internal ip %q", ErrBadName, parts[1])
	}
	port, err := strconv.ParseUint(parts[2], 16, 16)
	if err != nil {
		return Process{}, fmt.Errorf("%w: bad port %q", ErrBadName, parts[2])
	}
	return Process{
		PublicIP:   uint32(pub),
		InternalIP: uint32(internal),
		TCPPort:    uint16(port),
	}, nil
}

// ValidServiceName reports whether name may be used as a service name,
// spec.md §8 "Service name containing '/' or not starting with a
// letter → bad_name."
func ValidServiceName(name string) bool {
	if name == "" {
		return false
	}
	if strings.ContainsRune(name, '/') {
		return false
	}
	c := name[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
