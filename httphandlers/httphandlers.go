package httphandlers

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go2tv.app/castcli/utils"
)

// HTTPserver serves the files of the staging directory by name.
type HTTPserver struct {
	http   *http.Server
	mux    *http.ServeMux
	root   string
	Logger zerolog.Logger
}

// We use this type to be able to test
// serveContent without the need of os.Open in the tests.
type osFileType struct {
	time      time.Time
	file      io.ReadSeeker
	mediaType string
}

// NewServer constractor generates a new HTTPserver type rooted at dir.
func NewServer(a, dir string) *HTTPserver {
	mux := http.NewServeMux()
	srv := HTTPserver{
		http:   &http.Server{Addr: a, Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		mux:    mux,
		root:   dir,
		Logger: zerolog.Nop(),
	}

	mux.HandleFunc("/", srv.ServeMediaHandler())

	return &srv
}

// StartServer will start a HTTP server to serve the staged media files.
// serverStarted receives nil once the listener is up, or the listen error.
func (s *HTTPserver) StartServer(serverStarted chan<- error) {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		serverStarted <- fmt.Errorf("server listen error: %w", err)
		return
	}

	serverStarted <- nil
	if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
		s.Logger.Error().Str("Method", "StartServer").Err(err).Msg("serve")
	}
}

// StopServer forcefully closes the HTTP server.
func (s *HTTPserver) StopServer() {
	s.http.Close()
}

// ServeMediaHandler serves a single file from the server root. Only one clean
// path element is accepted.
func (s *HTTPserver) ServeMediaHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		name, ok := mediaName(r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}

		fpath := filepath.Join(s.root, name)
		m, err := os.Open(fpath)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer m.Close()

		info, err := m.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		mediaType := utils.MediaContentType(fpath)
		s.Logger.Debug().Str("Method", "ServeMediaHandler").Str("name", name).Str("type", mediaType).Str("remote", r.RemoteAddr).Msg(r.Method)

		serveContent(w, r, osFileType{
			time:      info.ModTime(),
			file:      m,
			mediaType: mediaType,
		})
	}
}

func mediaName(p string) (string, bool) {
	name := strings.TrimPrefix(p, "/")
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", false
	}

	if path.Clean("/"+name) != "/"+name {
		return "", false
	}

	return name, true
}

func serveContent(w http.ResponseWriter, r *http.Request, f osFileType) {
	w.Header()["transferMode.dlna.org"] = []string{"Streaming"}
	w.Header()["realTimeInfo.dlna.org"] = []string{"DLNA.ORG_TLAG=*"}

	if f.mediaType != "" {
		w.Header()["Content-Type"] = []string{f.mediaType}
		w.Header()["contentFeatures.dlna.org"] = []string{utils.BuildContentFeatures(f.mediaType)}
	}

	name := strings.TrimLeft(r.URL.Path, "/")

	if r.Method == http.MethodGet {
		http.ServeContent(w, r, name, f.time, f.file)
		return
	}

	size, err := f.file.Seek(0, io.SeekEnd)
	if err != nil {
		http.Error(w, "cant get file size", http.StatusInternalServerError)
		return
	}

	w.Header()["Content-Length"] = []string{strconv.FormatInt(size, 10)}
	w.Header()["Accept-Ranges"] = []string{"bytes"}

	if !f.time.IsZero() && !f.time.Equal(time.Unix(0, 0)) {
		w.Header().Set("Last-Modified", f.time.UTC().Format(http.TimeFormat))
	}
}
