package soapcalls

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"go2tv.app/castcli/utils"
)

const (
	soapSchema        = "http://schemas.xmlsoap.org/soap/envelope/"
	soapEncoding      = "http://schemas.xmlsoap.org/soap/encoding/"
	avTransportSchema = "urn:schemas-upnp-org:service:AVTransport:1"
	xmlStart          = `<?xml version="1.0" encoding="utf-8"?>`
)

// Envelope wraps every AVTransport action.
type Envelope struct {
	XMLName  xml.Name `xml:"s:Envelope"`
	Schema   string   `xml:"xmlns:s,attr"`
	Encoding string   `xml:"s:encodingStyle,attr"`
	Body     Body     `xml:"s:Body"`
}

// Body holds a single action element. The element name comes from the
// action's XMLName.
type Body struct {
	XMLName xml.Name `xml:"s:Body"`
	Action  any
}

// AVTransportAction covers the actions that only take an instance id plus
// optional speed or seek arguments.
type AVTransportAction struct {
	XMLName     xml.Name
	AVTransport string `xml:"xmlns:u,attr"`
	InstanceID  string
	Speed       string `xml:",omitempty"`
	Unit        string `xml:",omitempty"`
	Target      string `xml:",omitempty"`
}

// SetAVTransportURI .
type SetAVTransportURI struct {
	XMLName            xml.Name `xml:"u:SetAVTransportURI"`
	AVTransport        string   `xml:"xmlns:u,attr"`
	InstanceID         string
	CurrentURI         string
	CurrentURIMetaData string
}

// DIDLLite .
type DIDLLite struct {
	XMLName      xml.Name     `xml:"DIDL-Lite"`
	SchemaDIDL   string       `xml:"xmlns,attr"`
	DC           string       `xml:"xmlns:dc,attr"`
	SchemaUPNP   string       `xml:"xmlns:upnp,attr"`
	DIDLLiteItem DIDLLiteItem `xml:"item"`
}

// DIDLLiteItem .
type DIDLLiteItem struct {
	XMLName    xml.Name `xml:"item"`
	ID         string   `xml:"id,attr"`
	ParentID   string   `xml:"parentID,attr"`
	Restricted string   `xml:"restricted,attr"`
	DCtitle    string   `xml:"dc:title"`
	UPNPClass  string   `xml:"upnp:class"`
	ResNode    ResNode  `xml:"res"`
}

// ResNode .
type ResNode struct {
	XMLName      xml.Name `xml:"res"`
	ProtocolInfo string   `xml:"protocolInfo,attr"`
	Value        string   `xml:",chardata"`
}

func envelopeBuild(action any) ([]byte, error) {
	d := Envelope{
		Schema:   soapSchema,
		Encoding: soapEncoding,
		Body:     Body{Action: action},
	}

	b, err := xml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("envelopeBuild Marshal error: %w", err)
	}

	return append([]byte(xmlStart), b...), nil
}

func avTransportAction(name string) AVTransportAction {
	return AVTransportAction{
		XMLName:     xml.Name{Local: "u:" + name},
		AVTransport: avTransportSchema,
		InstanceID:  "0",
	}
}

func playSoapBuild() ([]byte, error) {
	a := avTransportAction("Play")
	a.Speed = "1"
	return envelopeBuild(a)
}

func pauseSoapBuild() ([]byte, error) {
	return envelopeBuild(avTransportAction("Pause"))
}

func stopSoapBuild() ([]byte, error) {
	return envelopeBuild(avTransportAction("Stop"))
}

func seekSoapBuild(seconds int) ([]byte, error) {
	a := avTransportAction("Seek")
	a.Unit = "REL_TIME"
	a.Target = secondsToClock(seconds)
	return envelopeBuild(a)
}

func getPositionInfoSoapBuild() ([]byte, error) {
	return envelopeBuild(avTransportAction("GetPositionInfo"))
}

func getTransportInfoSoapBuild() ([]byte, error) {
	return envelopeBuild(avTransportAction("GetTransportInfo"))
}

func setAVTransportSoapBuild(mediaURL, mediaType, title string) ([]byte, error) {
	class := "object.item.videoItem.movie"
	if strings.HasPrefix(mediaType, "audio/") {
		class = "object.item.audioItem.musicTrack"
	}

	l := DIDLLite{
		SchemaDIDL: "urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/",
		DC:         "http://purl.org/dc/elements/1.1/",
		SchemaUPNP: "urn:schemas-upnp-org:metadata-1-0/upnp/",
		DIDLLiteItem: DIDLLiteItem{
			ID:         "1",
			ParentID:   "0",
			Restricted: "1",
			DCtitle:    title,
			UPNPClass:  class,
			ResNode: ResNode{
				ProtocolInfo: fmt.Sprintf("http-get:*:%s:%s", mediaType, utils.BuildContentFeatures(mediaType)),
				Value:        mediaURL,
			},
		},
	}

	meta, err := xml.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("setAVTransportSoapBuild #1 Marshal error: %w", err)
	}

	b, err := envelopeBuild(SetAVTransportURI{
		AVTransport:        avTransportSchema,
		InstanceID:         "0",
		CurrentURI:         mediaURL,
		CurrentURIMetaData: string(meta),
	})
	if err != nil {
		return nil, fmt.Errorf("setAVTransportSoapBuild #2 %w", err)
	}

	// Samsung TV hack.
	b = bytes.ReplaceAll(b, []byte("&#34;"), []byte(`"`))

	return b, nil
}

// secondsToClock renders a REL_TIME target, H+:MM:SS.
func secondsToClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}

	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds/60)%60, seconds%60)
}
