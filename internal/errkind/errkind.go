// Package errkind defines the core's six error kinds (see spec §7) as
// cockroachdb/errors mark references, so callers can test
// errors.Is(err, errkind.DialFailed) regardless of how many layers of
// context the error picked up on its way up.
package errkind

import "github.com/cockroachdb/errors"

var (
	// ConfigInvalid: configuration failed validation at startup. Fatal.
	ConfigInvalid = errors.New("config invalid")
	// UpstreamUnavailable: RPC or streaming upstream unreachable or erroring. Non-fatal, retried.
	UpstreamUnavailable = errors.New("upstream unavailable")
	// LeaderUnknown: current slot resolves to no known leader or an unresolved identity.
	LeaderUnknown = errors.New("leader unknown")
	// LeaderBlocked: resolved leader is in the Shield blocklist.
	LeaderBlocked = errors.New("leader blocked")
	// DialFailed: QUIC handshake failed; session not cached.
	DialFailed = errors.New("dial failed")
	// SendFailed: stream write or close failed.
	SendFailed = errors.New("send failed")
)

// Mark wraps err with format/args context and marks the result so that
// errors.Is(result, kind) holds. If err is nil, a fresh error carrying
// just the formatted message is marked instead.
func Mark(kind error, err error, format string, args ...any) error {
	if err == nil {
		return errors.Mark(errors.Newf(format, args...), kind)
	}
	return errors.Mark(errors.Wrapf(err, format, args...), kind)
}
