package o2

import "errors"

// Error kinds, spec.md §6 "Error kinds" — tagged values returned from
// API calls rather than a single opaque error type, since callers
// (and tests) need to branch on which kind occurred.
var (
	ErrServiceExists  = errors.New("o2: service_exists")
	ErrNoService      = errors.New("o2: no_service")
	ErrAlreadyRunning = errors.New("o2: already_running")
	ErrBadName        = errors.New("o2: bad_name")
	ErrBadType        = errors.New("o2: bad_type")
	ErrBadArgs        = errors.New("o2: bad_args")
	ErrTCPHangup      = errors.New("o2: tcp_hup")
	ErrHostnameFail   = errors.New("o2: hostname_fail")
	ErrTCPConnectFail = errors.New("o2: tcp_connect_fail")
	ErrNoClock        = errors.New("o2: no_clock")
	ErrNoHandler      = errors.New("o2: no_handler")
	ErrInvalidMessage = errors.New("o2: invalid_msg")
	ErrSendFail       = errors.New("o2: send_fail")
	ErrSocketError    = errors.New("o2: socket_error")
	ErrNotInitialized = errors.New("o2: not_initialized")
	ErrBlocked        = errors.New("o2: blocked")
	ErrNoPort         = errors.New("o2: no_port")
	ErrNoNetwork      = errors.New("o2: no_network")
)

// DropReason is the string reason passed to a DropWarning callback,
// spec.md §7 "unknown-address/type-mismatch/no-handler conditions
// invoke a configurable drop warning callback".
type DropReason string

const (
	DropNoService    DropReason = "no_service"
	DropTypeMismatch DropReason = "type_mismatch"
	DropNoHandler    DropReason = "no_handler"
	DropNoSender     DropReason = "no_sender"
)
