package mqttclient

import (
	"errors"
	"fmt"

	"github.com/Raysen37/mqttclient/internal/packets"
)

// Standard errors returned by the client
var (
	// ErrNotConnected is returned when an operation requires an established
	// connection and the session is not in the connected state.
	ErrNotConnected = errors.New("not connected")

	// ErrCleanSession is returned once Disconnect has been called: the
	// session is shutting down and refuses further work.
	ErrCleanSession = errors.New("session is being cleaned up")

	// ErrBufferTooShort is returned when an inbound packet exceeds the read
	// buffer, or an outbound payload exceeds the write buffer. The buffers
	// never grow implicitly; configure them with WithReadBufferSize and
	// WithWriteBufferSize.
	ErrBufferTooShort = packets.ErrBufferTooShort

	// ErrNothingToRead is returned by the framing layer when no packet could
	// be read before the deadline.
	ErrNothingToRead = errors.New("nothing to read")

	// ErrSendFailed is returned when a packet could not be fully written
	// before the deadline.
	ErrSendFailed = errors.New("send failed")

	// ErrAckDuplicate is returned when an acknowledgment is already being
	// awaited for the same (kind, packet id) pair.
	ErrAckDuplicate = errors.New("ack already recorded")

	// ErrAckTooMany is returned when the table of outstanding
	// acknowledgments is full.
	ErrAckTooMany = errors.New("too many outstanding acks")

	// ErrReconnectTimeout is returned when a single reconnect attempt failed;
	// the worker will retry after the configured interval.
	ErrReconnectTimeout = errors.New("reconnect attempt timed out")

	// ErrResubscribeFailed is returned when restoring subscriptions after a
	// reconnect did not complete.
	ErrResubscribeFailed = errors.New("resubscribe failed")

	// ErrConnectFailed is returned when the transport or MQTT handshake
	// could not be completed.
	ErrConnectFailed = errors.New("connect failed")

	// ErrNilArgument is returned when a required argument is nil.
	ErrNilArgument = errors.New("nil argument")

	// ErrConnectionRefused is returned when the broker rejects the
	// connection. Unwrap to find the specific CONNACK reason.
	ErrConnectionRefused = errors.New("connection refused")

	// Specific connection refusal reasons (CONNACK return codes 1-5).
	ErrUnacceptableProtocolVersion = errors.New("unacceptable protocol version")
	ErrIdentifierRejected          = errors.New("identifier rejected")
	ErrServerUnavailable           = errors.New("server unavailable")
	ErrBadUsernameOrPassword       = errors.New("bad username or password")
	ErrNotAuthorized               = errors.New("not authorized")

	// ErrSubscriptionFailed names a broker rejection of a subscription (a
	// failure return code in SUBACK). Subscribe returns before the SUBACK
	// arrives and a rejected subscription is only logged and dropped, so no
	// client method returns this error.
	ErrSubscriptionFailed = errors.New("subscription failed")

	// ErrNoSubscription is returned by Unsubscribe when no subscription with
	// the given filter is installed.
	ErrNoSubscription = errors.New("no matching subscription")
)

// connackError maps a CONNACK return code to an error wrapping
// ErrConnectionRefused and, for codes 1-5, the specific reason sentinel.
// It returns nil for code 0 (accepted).
func connackError(code byte) error {
	var reason error
	switch code {
	case packets.ConnAccepted:
		return nil
	case packets.ConnRefusedUnacceptableProtocol:
		reason = ErrUnacceptableProtocolVersion
	case packets.ConnRefusedIdentifierRejected:
		reason = ErrIdentifierRejected
	case packets.ConnRefusedServerUnavailable:
		reason = ErrServerUnavailable
	case packets.ConnRefusedBadUsernameOrPassword:
		reason = ErrBadUsernameOrPassword
	case packets.ConnRefusedNotAuthorized:
		reason = ErrNotAuthorized
	default:
		return ErrConnectionRefused
	}
	return fmt.Errorf("%w: %w", ErrConnectionRefused, reason)
}
