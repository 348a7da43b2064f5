package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

const (
	dlnaOrgFlagStreamingTransferMode   = 1 << 24
	dlnaOrgFlagBackgroundTransfertMode = 1 << 22
	dlnaOrgFlagConnectionStall         = 1 << 21
	dlnaOrgFlagDlnaV15                 = 1 << 20
)

var dlnaprofiles = map[string]string{
	"video/x-mkv":      "DLNA.ORG_PN=MATROSKA",
	"video/x-matroska": "DLNA.ORG_PN=MATROSKA",
	"video/mkv":        "DLNA.ORG_PN=MATROSKA",
	"video/x-msvideo":  "DLNA.ORG_PN=AVI",
	"video/avi":        "DLNA.ORG_PN=AVI",
	"video/mpeg":       "DLNA.ORG_PN=MPEG1",
	"video/mp4":        "DLNA.ORG_PN=AVC_MP4_MP_SD_AAC_MULT5",
	"video/quicktime":  "DLNA.ORG_PN=AVC_MP4_MP_SD_AAC_MULT5",
	"video/x-m4v":      "DLNA.ORG_PN=AVC_MP4_MP_SD_AAC_MULT5",
	"video/m4v":        "DLNA.ORG_PN=AVC_MP4_MP_SD_AAC_MULT5",
	"video/x-ms-wmv":   "DLNA.ORG_PN=WMVHIGH_FULL",
}

func defaultStreamingFlags() string {
	return fmt.Sprintf("%.8x%.24x", dlnaOrgFlagStreamingTransferMode|
		dlnaOrgFlagBackgroundTransfertMode|
		dlnaOrgFlagConnectionStall|
		dlnaOrgFlagDlnaV15, 0)
}

// BuildContentFeatures builds the value of the "contentFeatures.dlna.org"
// header and of the fourth protocolInfo field. Staged files are served with
// byte range support, hence DLNA.ORG_OP=01.
func BuildContentFeatures(mediaType string) string {
	var cf strings.Builder

	if prof, ok := dlnaprofiles[strings.ToLower(mediaType)]; ok {
		cf.WriteString(prof + ";")
	}

	cf.WriteString("DLNA.ORG_OP=01;")
	cf.WriteString("DLNA.ORG_CI=0;")
	cf.WriteString("DLNA.ORG_FLAGS=")
	cf.WriteString(defaultStreamingFlags())

	return cf.String()
}

// ContentType derives the media content type from the file extension:
// "video/" followed by the extension without its leading dot. It returns an
// empty string for files without an extension.
func ContentType(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return ""
	}

	return "video/" + ext
}

// SniffContentType guesses the MIME type from the first bytes of r.
func SniffContentType(r io.Reader) (string, error) {
	head := make([]byte, 261)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("SniffContentType read error: %w", err)
	}

	kind, err := filetype.Match(head[:n])
	if err != nil {
		return "", fmt.Errorf("SniffContentType match error: %w", err)
	}

	if kind == filetype.Unknown {
		return "", fmt.Errorf("SniffContentType: unknown file type")
	}

	return kind.MIME.Value, nil
}

// MediaContentType returns ContentType(path). Files without an extension
// are sniffed, and when that fails too the result is the bare "video/".
func MediaContentType(path string) string {
	if ct := ContentType(path); ct != "" {
		return ct
	}

	f, err := os.Open(path)
	if err != nil {
		return "video/"
	}
	defer f.Close()

	ct, err := SniffContentType(f)
	if err != nil {
		return "video/"
	}

	return ct
}
