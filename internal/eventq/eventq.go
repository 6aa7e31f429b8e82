// Package eventq provides non-blocking channel send helpers.
package eventq

// Offer performs a non-blocking send. It returns true when the value was
// sent and false when the channel is full or closed. Sending on a closed
// channel is absorbed rather than panicking, so producers may race the
// channel owner's close.
func Offer[T any](ch chan<- T, value T) (sent bool) {
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()
	select {
	case ch <- value:
		return true
	default:
		return false
	}
}
