package castprotocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vishen/go-chromecast/application"
	"github.com/vishen/go-chromecast/cast"
)

const (
	defaultCastPort    = 8009
	connectionRetries  = 5
	loadAttempts       = 5
	transportIDRetries = 8
	wakeUpDelay        = 4 * time.Second
)

var (
	ErrNoTransportID = errors.New("receiver never reported a transport id")
	ErrNotConnected  = errors.New("cast client is not connected")
)

// CastClient drives the default media receiver of one cast device.
type CastClient struct {
	app       *application.Application
	conn      cast.Conn
	mu        sync.Mutex
	host      string
	port      int
	connected bool
	Logger    zerolog.Logger
}

// NewCastClient parses deviceAddr, e.g. "http://192.168.1.30:8009". Nothing
// is dialed until Connect.
func NewCastClient(deviceAddr string) (*CastClient, error) {
	host, port, err := splitDeviceAddr(deviceAddr)
	if err != nil {
		return nil, err
	}

	conn := cast.NewConnection()

	return &CastClient{
		app: application.NewApplication(
			application.WithConnection(conn),
			application.WithConnectionRetries(connectionRetries),
		),
		conn:   conn,
		host:   host,
		port:   port,
		Logger: zerolog.Nop(),
	}, nil
}

func splitDeviceAddr(deviceAddr string) (string, int, error) {
	u, err := url.Parse(deviceAddr)
	if err != nil {
		return "", 0, fmt.Errorf("cast device addr: %w", err)
	}

	if u.Hostname() == "" {
		return "", 0, fmt.Errorf("cast device addr: no host in %q", deviceAddr)
	}

	if u.Port() == "" {
		return u.Hostname(), defaultCastPort, nil
	}

	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return "", 0, fmt.Errorf("cast device port: %w", err)
	}

	return u.Hostname(), port, nil
}

// Connect opens the cast channel.
func (c *CastClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connectLocked()
}

func (c *CastClient) connectLocked() error {
	if c.connected {
		return nil
	}

	log := c.Logger.With().Str("Method", "Connect").Str("Host", c.host).Int("Port", c.port).Logger()
	if err := c.app.Start(c.host, c.port); err != nil {
		log.Error().Err(err).Msg("start")
		return fmt.Errorf("chromecast connect: %w", err)
	}

	c.connected = true
	log.Debug().Msg("connected")
	return nil
}

// retryable reports whether err looks like a device still waking up.
func retryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Load launches the default media receiver and starts mediaURL in it.
// Timeouts are retried with a delay, other errors are returned at once.
func (c *CastClient) Load(ctx context.Context, mediaURL, contentType, title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	log := c.Logger.With().Str("Method", "Load").Str("URL", mediaURL).Logger()

	if err := c.connectLocked(); err != nil {
		return err
	}

	var err error
	for attempt := 0; attempt < loadAttempts; attempt++ {
		if attempt > 0 {
			log.Debug().Int("Attempt", attempt).Err(err).Msg("retrying")
			if serr := sleepCtx(ctx, wakeUpDelay); serr != nil {
				return serr
			}
		}

		if err = c.loadOnce(ctx, mediaURL, contentType, title); err == nil {
			log.Debug().Msg("loaded")
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !retryable(err) && !errors.Is(err, ErrNoTransportID) {
			break
		}
	}

	log.Error().Err(err).Msg("load failed")
	return err
}

func (c *CastClient) loadOnce(ctx context.Context, mediaURL, contentType, title string) error {
	if err := LaunchDefaultReceiver(c.conn); err != nil {
		return fmt.Errorf("launch receiver: %w", err)
	}

	id, err := c.transportID(ctx)
	if err != nil {
		return err
	}

	return LoadMedia(c.conn, id, mediaURL, contentType, title, 0)
}

// transportID polls the receiver status until the launched app reports
// its transport id, backing off a little more on every round.
func (c *CastClient) transportID(ctx context.Context) (string, error) {
	for i := 1; i <= transportIDRetries; i++ {
		err := c.app.Update()
		if err == nil {
			if app := c.app.App(); app != nil && app.TransportId != "" {
				return app.TransportId, nil
			}
		}

		c.Logger.Debug().Str("Method", "transportID").Int("Round", i).Err(err).Msg("no transport id yet")
		if err := sleepCtx(ctx, time.Duration(i)*500*time.Millisecond); err != nil {
			return "", err
		}
	}

	return "", ErrNoTransportID
}

// control refreshes the receiver state, which carries the media session id
// the transport commands need, and then runs fn.
func (c *CastClient) control(method string, fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrNotConnected
	}

	err := c.app.Update()
	if err == nil {
		err = fn()
	}

	if err != nil {
		c.Logger.Error().Str("Method", method).Err(err).Msg("cast command failed")
		return fmt.Errorf("chromecast %s: %w", method, err)
	}

	c.Logger.Debug().Str("Method", method).Msg("ok")
	return nil
}

// Play resumes paused media.
func (c *CastClient) Play() error { return c.control("Play", c.app.Unpause) }

func (c *CastClient) Pause() error { return c.control("Pause", c.app.Pause) }

func (c *CastClient) Stop() error { return c.control("Stop", c.app.Stop) }

// Seek jumps to seconds from the start of the media.
func (c *CastClient) Seek(seconds int) error {
	return c.control("Seek", func() error { return c.app.SeekFromStart(seconds) })
}

// GetStatus reports the state of the loaded media. Without media the state
// is IDLE.
func (c *CastClient) GetStatus() (*CastStatus, error) {
	st := &CastStatus{PlayerState: "IDLE"}

	err := c.control("GetStatus", func() error {
		_, media, _ := c.app.Status()
		if media != nil {
			st.PlayerState = media.PlayerState
			st.CurrentTime = media.CurrentTime
			st.Duration = media.Media.Duration
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return st, nil
}

// Close tears down the cast channel, stopping the media first when
// stopMedia is set.
func (c *CastClient) Close(stopMedia bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false

	if err := c.app.Close(stopMedia); err != nil {
		c.Logger.Error().Str("Method", "Close").Err(err).Send()
		return err
	}

	return nil
}

// IsConnected reports whether Connect succeeded and Close was not called yet.
func (c *CastClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
