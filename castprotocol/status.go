package castprotocol

// CastStatus is a snapshot of the media session on the receiver. Times are
// in seconds.
type CastStatus struct {
	PlayerState string
	CurrentTime float32
	Duration    float32
}
