package soapcalls

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// TVPayload carries what a media renderer needs to play one media file.
type TVPayload struct {
	ControlURL string
	MediaURL   string
	MediaType  string
	MediaTitle string
	Logger     zerolog.Logger
	client     *http.Client
}

// NewTVPayload reads the device description at dmrURL and returns a payload
// bound to the device's AVTransport service.
func NewTVPayload(ctx context.Context, dmrURL string) (*TVPayload, error) {
	ex, err := DMRextractor(ctx, dmrURL)
	if err != nil {
		return nil, fmt.Errorf("NewTVPayload: %w", err)
	}

	return &TVPayload{
		ControlURL: ex.AvtransportControlURL,
		Logger:     zerolog.Nop(),
		client:     newRetryableHTTPClient(soapRetryMax),
	}, nil
}

func (p *TVPayload) httpClient() *http.Client {
	if p.client == nil {
		p.client = newRetryableHTTPClient(soapRetryMax)
	}

	return p.client
}

func (p *TVPayload) soapCall(ctx context.Context, action string, body []byte) ([]byte, error) {
	parsedURLtransport, err := url.Parse(p.ControlURL)
	if err != nil {
		return nil, fmt.Errorf("%s parse error: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, parsedURLtransport.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s POST error: %w", action, err)
	}

	req.Header = http.Header{
		"SOAPAction":   []string{`"` + avTransportSchema + `#` + action + `"`},
		"content-type": []string{"text/xml"},
		"charset":      []string{"utf-8"},
		"Connection":   []string{"close"},
	}

	p.Logger.Debug().Str("Method", "soapCall").Str("Action", action).Msg(p.ControlURL)

	resp, err := p.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s Do POST error: %w", action, err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s read error: %w", action, err)
	}

	if resp.StatusCode != http.StatusOK {
		err := faultError(action, resp.StatusCode, out)
		p.Logger.Error().Str("Method", "soapCall").Str("Action", action).Err(err).Msg("failed")
		return nil, err
	}

	return out, nil
}

func (p *TVPayload) setAVTransportSoapCall(ctx context.Context) error {
	xmlbuilder, err := setAVTransportSoapBuild(p.MediaURL, p.MediaType, p.MediaTitle)
	if err != nil {
		return fmt.Errorf("setAVTransportSoapCall build error: %w", err)
	}

	_, err = p.soapCall(ctx, "SetAVTransportURI", xmlbuilder)
	return err
}

func (p *TVPayload) playStopPauseSoapCall(ctx context.Context, action string) error {
	var xmlbuilder []byte
	var err error

	switch action {
	case "Play":
		xmlbuilder, err = playSoapBuild()
	case "Stop":
		xmlbuilder, err = stopSoapBuild()
	case "Pause":
		xmlbuilder, err = pauseSoapBuild()
	default:
		return fmt.Errorf("playStopPauseSoapCall unknown action %q", action)
	}

	if err != nil {
		return fmt.Errorf("playStopPauseSoapCall build error: %w", err)
	}

	_, err = p.soapCall(ctx, action, xmlbuilder)
	return err
}

// SendtoTV sends a transport action. "Play1" loads MediaURL first and then
// starts playback, "Play" resumes.
func (p *TVPayload) SendtoTV(ctx context.Context, action string) error {
	if action == "Play1" {
		if err := p.setAVTransportSoapCall(ctx); err != nil {
			return fmt.Errorf("SendtoTV set AVT Transport error: %w", err)
		}
		action = "Play"
	}

	if err := p.playStopPauseSoapCall(ctx, action); err != nil {
		return fmt.Errorf("SendtoTV Play/Stop/Pause action error: %w", err)
	}

	return nil
}

// SeekSoapCall seeks to seconds from the start of the media.
func (p *TVPayload) SeekSoapCall(ctx context.Context, seconds int) error {
	xmlbuilder, err := seekSoapBuild(seconds)
	if err != nil {
		return fmt.Errorf("SeekSoapCall build error: %w", err)
	}

	if _, err := p.soapCall(ctx, "Seek", xmlbuilder); err != nil {
		return fmt.Errorf("SeekSoapCall: %w", err)
	}

	return nil
}

// GetPositionInfoSoapCall returns the current position and the track
// duration, both in seconds. An unknown duration is reported as 0.
func (p *TVPayload) GetPositionInfoSoapCall(ctx context.Context) (float64, float64, error) {
	xmlbuilder, err := getPositionInfoSoapBuild()
	if err != nil {
		return 0, 0, fmt.Errorf("GetPositionInfoSoapCall build error: %w", err)
	}

	out, err := p.soapCall(ctx, "GetPositionInfo", xmlbuilder)
	if err != nil {
		return 0, 0, fmt.Errorf("GetPositionInfoSoapCall: %w", err)
	}

	var resp positionInfoResponse
	if err := xml.Unmarshal(out, &resp); err != nil {
		return 0, 0, fmt.Errorf("GetPositionInfoSoapCall XML Decode error: %w", err)
	}

	current, err := clockToSeconds(resp.RelTime)
	if err != nil {
		return 0, 0, fmt.Errorf("GetPositionInfoSoapCall RelTime: %w", err)
	}

	// NOT_IMPLEMENTED and friends.
	duration, _ := clockToSeconds(resp.TrackDuration)

	return current, duration, nil
}

// GetTransportInfoSoapCall returns the CurrentTransportState, e.g. PLAYING.
func (p *TVPayload) GetTransportInfoSoapCall(ctx context.Context) (string, error) {
	xmlbuilder, err := getTransportInfoSoapBuild()
	if err != nil {
		return "", fmt.Errorf("GetTransportInfoSoapCall build error: %w", err)
	}

	out, err := p.soapCall(ctx, "GetTransportInfo", xmlbuilder)
	if err != nil {
		return "", fmt.Errorf("GetTransportInfoSoapCall: %w", err)
	}

	var resp transportInfoResponse
	if err := xml.Unmarshal(out, &resp); err != nil {
		return "", fmt.Errorf("GetTransportInfoSoapCall XML Decode error: %w", err)
	}

	return strings.TrimSpace(resp.CurrentTransportState), nil
}
