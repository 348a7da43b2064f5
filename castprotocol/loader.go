package castprotocol

import (
	"fmt"
	"sync/atomic"

	"github.com/vishen/go-chromecast/cast"
)

const (
	defaultReceiverAppID = "CC1AD845"
	receiverNamespace    = "urn:x-cast:com.google.cast.receiver"
	mediaNamespace       = "urn:x-cast:com.google.cast.media"
)

var requestIDCounter int32

func nextRequestID() int {
	return int(atomic.AddInt32(&requestIDCounter, 1))
}

// LoadPayload is a LOAD command that carries media metadata, which the
// library's own Load does not send.
type LoadPayload struct {
	Type        string    `json:"type"`
	RequestId   int       `json:"requestId"`
	Media       MediaItem `json:"media"`
	CurrentTime int       `json:"currentTime"`
	Autoplay    bool      `json:"autoplay"`
}

// SetRequestId implements cast.Payload.
func (p *LoadPayload) SetRequestId(id int) {
	p.RequestId = id
}

var _ cast.Payload = (*LoadPayload)(nil)

// LaunchDefaultReceiver starts the default media receiver without loading
// anything into it.
func LaunchDefaultReceiver(conn cast.Conn) error {
	payload := &cast.LaunchRequest{
		PayloadHeader: cast.PayloadHeader{Type: "LAUNCH"},
		AppId:         defaultReceiverAppID,
	}

	requestID := nextRequestID()
	payload.SetRequestId(requestID)

	if err := conn.Send(requestID, payload, "sender-0", "receiver-0", receiverNamespace); err != nil {
		return fmt.Errorf("send launch: %w", err)
	}

	return nil
}

// LoadMedia sends a LOAD command to the media receiver identified by
// transportId. startTime is in seconds.
func LoadMedia(conn cast.Conn, transportId, mediaURL, contentType, title string, startTime int) error {
	payload := &LoadPayload{
		Type:        "LOAD",
		Media:       newMediaItem(mediaURL, contentType, title),
		CurrentTime: startTime,
		Autoplay:    true,
	}

	requestID := nextRequestID()
	payload.SetRequestId(requestID)

	if err := conn.Send(requestID, payload, "sender-0", transportId, mediaNamespace); err != nil {
		return fmt.Errorf("send load: %w", err)
	}

	return nil
}
