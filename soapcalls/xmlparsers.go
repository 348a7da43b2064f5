package soapcalls

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoAVTransport is returned when a device description lacks the
// AVTransport service.
var ErrNoAVTransport = errors.New("device has no AVTransport service")

type rootNode struct {
	XMLName xml.Name `xml:"root"`
	URLBase string   `xml:"URLBase"`
	Device  struct {
		FriendlyName string `xml:"friendlyName"`
		ServiceList  struct {
			Services []struct {
				Type       string `xml:"serviceType"`
				ID         string `xml:"serviceId"`
				ControlURL string `xml:"controlURL"`
			} `xml:"service"`
		} `xml:"serviceList"`
	} `xml:"device"`
}

type positionInfoResponse struct {
	TrackDuration string `xml:"Body>GetPositionInfoResponse>TrackDuration"`
	RelTime       string `xml:"Body>GetPositionInfoResponse>RelTime"`
}

type transportInfoResponse struct {
	CurrentTransportState string `xml:"Body>GetTransportInfoResponse>CurrentTransportState"`
}

type soapFault struct {
	FaultString      string `xml:"Body>Fault>faultstring"`
	ErrorCode        string `xml:"Body>Fault>detail>UPnPError>errorCode"`
	ErrorDescription string `xml:"Body>Fault>detail>UPnPError>errorDescription"`
}

// DMRextracted stores the parts of a device description we use.
type DMRextracted struct {
	FriendlyName          string
	AvtransportControlURL string
}

// DMRextractor fetches the device description at dmrurl and extracts the
// friendly name and the AVTransport control URL.
func DMRextractor(ctx context.Context, dmrurl string) (*DMRextracted, error) {
	var root rootNode

	parsedURL, err := url.Parse(dmrurl)
	if err != nil {
		return nil, fmt.Errorf("DMRextractor parse error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dmrurl, nil)
	if err != nil {
		return nil, fmt.Errorf("DMRextractor GET error: %w", err)
	}

	req.Header.Set("Connection", "close")

	xmlresp, err := newRetryableHTTPClient(soapRetryMax).Do(req)
	if err != nil {
		return nil, fmt.Errorf("DMRextractor Do GET error: %w", err)
	}
	defer xmlresp.Body.Close()

	if xmlresp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DMRextractor GET status: %s", xmlresp.Status)
	}

	xmlbody, err := io.ReadAll(xmlresp.Body)
	if err != nil {
		return nil, fmt.Errorf("DMRextractor read error: %w", err)
	}

	if err := xml.Unmarshal(xmlbody, &root); err != nil {
		return nil, fmt.Errorf("DMRextractor unmarshal error: %w", err)
	}

	base := parsedURL
	if root.URLBase != "" {
		if b, err := url.Parse(strings.TrimSpace(root.URLBase)); err == nil {
			base = b
		}
	}

	ex := &DMRextracted{FriendlyName: strings.TrimSpace(root.Device.FriendlyName)}
	for _, service := range root.Device.ServiceList.Services {
		if service.ID != "urn:upnp-org:serviceId:AVTransport" {
			continue
		}

		controlURL := strings.TrimSpace(service.ControlURL)
		if !strings.HasPrefix(controlURL, "/") && !strings.Contains(controlURL, "://") {
			controlURL = "/" + controlURL
		}

		ref, err := url.Parse(controlURL)
		if err != nil {
			return nil, fmt.Errorf("DMRextractor control URL error: %w", err)
		}

		ex.AvtransportControlURL = base.ResolveReference(ref).String()
		return ex, nil
	}

	return nil, errors.Wrap(ErrNoAVTransport, dmrurl)
}

// clockToSeconds parses the H+:MM:SS[.F+] durations used by AVTransport.
func clockToSeconds(clock string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("clockToSeconds invalid time %q", clock)
	}

	var total float64
	for i, mult := range []float64{3600, 60, 1} {
		v, err := strconv.ParseFloat(strings.TrimPrefix(parts[i], "+"), 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("clockToSeconds invalid time %q", clock)
		}
		total += v * mult
	}

	return total, nil
}

func faultError(action string, status int, body []byte) error {
	var f soapFault
	if err := xml.Unmarshal(body, &f); err == nil && (f.ErrorCode != "" || f.FaultString != "") {
		desc := f.ErrorDescription
		if desc == "" {
			desc = f.FaultString
		}
		return fmt.Errorf("%s SOAP fault %s: %s", action, f.ErrorCode, desc)
	}

	return fmt.Errorf("%s unexpected status %d", action, status)
}
