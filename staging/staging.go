package staging

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go2tv.app/castcli/utils"
)

var (
	ErrNoSource      = errors.New(`You must pass in a file path e.g. "/home/user/Movies/some-movie.mp4"`)
	ErrSourceIsDir   = errors.New("source path is a directory")
	ErrNotStagingDir = errors.New("staging path is not a directory")
	ErrSourceInDir   = errors.New("source file is inside the staging directory")
)

// newName is swapped in tests.
var newName = func() string {
	return uuid.NewString()
}

// Media is a file copied into the staging directory and served by name.
type Media struct {
	Dir   string
	Name  string
	Title string
}

// Path returns the location of the staged copy.
func (m *Media) Path() string {
	return filepath.Join(m.Dir, m.Name)
}

// ContentType is "video/" followed by the extension. Extensionless copies
// are sniffed, and stay "video/" when that fails.
func (m *Media) ContentType() string {
	return utils.MediaContentType(m.Path())
}

// URL returns the address the devices fetch the staged copy from.
func (m *Media) URL(host string, port int) string {
	u := url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + m.Name,
	}

	return u.String()
}

// CheckSource fails with ErrSourceInDir when src lives under dir, since
// Prepare and Clear would delete it.
func CheckSource(dir, src string) error {
	absDir, err := resolve(dir)
	if err != nil {
		return errors.Wrap(err, "failed to resolve staging dir")
	}

	absSrc, err := resolve(src)
	if err != nil {
		return errors.Wrap(err, "failed to resolve source file")
	}

	rel, err := filepath.Rel(absDir, absSrc)
	if err != nil {
		return nil
	}

	if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
		return errors.Wrap(ErrSourceInDir, src)
	}

	return nil
}

// resolve returns the absolute path with symlinks followed as far as the
// path exists.
func resolve(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	dir := filepath.Dir(abs)
	if dir == abs {
		return abs, nil
	}

	parent, err := resolve(dir)
	if err != nil {
		return abs, nil
	}

	return filepath.Join(parent, filepath.Base(abs)), nil
}

// Prepare makes sure dir exists and is empty.
func Prepare(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("Prepare mkdir error: %w", err)
	}

	return Clear(dir)
}

// Clear removes everything inside dir but keeps dir itself.
func Clear(dir string) error {
	st, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("Clear stat error: %w", err)
	}

	if !st.IsDir() {
		return errors.Wrap(ErrNotStagingDir, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("Clear readdir error: %w", err)
	}

	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("Clear remove error: %w", err)
		}
	}

	return nil
}

// Stage copies src into dir under a freshly generated name that keeps the
// original extension.
func Stage(dir, src string) (*Media, error) {
	if strings.TrimSpace(src) == "" {
		return nil, ErrNoSource
	}

	in, err := os.Open(src)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open source file")
	}
	defer in.Close()

	st, err := in.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat source file")
	}

	if st.IsDir() {
		return nil, errors.Wrap(ErrSourceIsDir, src)
	}

	m := &Media{
		Dir:   dir,
		Name:  newName() + filepath.Ext(src),
		Title: filepath.Base(src),
	}

	if err := copyFile(in, m.Path(), st.Mode().Perm()); err != nil {
		return nil, err
	}

	return m, nil
}

func copyFile(in io.Reader, dst string, perm os.FileMode) error {
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm|0o600)
	if err != nil {
		return fmt.Errorf("copyFile create error: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copyFile copy error: %w", err)
	}

	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copyFile sync error: %w", err)
	}

	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("copyFile close error: %w", err)
	}

	return nil
}
