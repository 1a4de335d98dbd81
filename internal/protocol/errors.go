package protocol

// Codes carried by ERROR messages.
const (
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrBadRequest      = "E_BAD_REQUEST"
	ErrConflict        = "E_CONFLICT"
	ErrNoPermission    = "E_NO_PERMISSION"
	ErrInvalidTarget   = "E_INVALID_TARGET"
	// ErrDying rejects actions from an entity whose death sequence is running.
	ErrDying    = "E_DYING"
	ErrInternal = "E_INTERNAL"
)

// Codes lists every error code in a stable order.
func Codes() []string {
	return []string{ErrProtoBadRequest, ErrBadRequest, ErrConflict, ErrNoPermission, ErrInvalidTarget, ErrDying, ErrInternal}
}

func IsKnownCode(code string) bool {
	for _, c := range Codes() {
		if c == code {
			return true
		}
	}
	return false
}
