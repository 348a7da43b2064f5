package player

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go2tv.app/castcli/castprotocol"
)

type castClient interface {
	Connect() error
	Load(ctx context.Context, mediaURL, contentType, title string) error
	Play() error
	Pause() error
	Stop() error
	Seek(seconds int) error
	GetStatus() (*castprotocol.CastStatus, error)
	Close(stopMedia bool) error
}

// Swapped in tests.
var newCastClient = func(addr string, logger zerolog.Logger) (castClient, error) {
	c, err := castprotocol.NewCastClient(addr)
	if err != nil {
		return nil, err
	}
	c.Logger = logger

	return c, nil
}

type chromecastPlayer struct {
	client castClient
}

func openChromecast(ctx context.Context, addr string, logger zerolog.Logger) (*chromecastPlayer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := newCastClient(addr, logger)
	if err != nil {
		return nil, errors.Wrap(err, "chromecast client")
	}

	if err := client.Connect(); err != nil {
		return nil, err
	}

	return &chromecastPlayer{client: client}, nil
}

func (p *chromecastPlayer) Play(ctx context.Context, url string, meta Metadata) error {
	return p.client.Load(ctx, url, meta.ContentType, meta.Title)
}

func (p *chromecastPlayer) Pause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.client.Pause()
}

func (p *chromecastPlayer) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.client.Play()
}

func (p *chromecastPlayer) Stop(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.client.Stop()
}

func (p *chromecastPlayer) Seek(ctx context.Context, seconds float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.client.Seek(int(math.Round(clampSeconds(seconds))))
}

func (p *chromecastPlayer) Status(ctx context.Context) (Status, error) {
	if err := ctx.Err(); err != nil {
		return Status{}, err
	}

	st, err := p.client.GetStatus()
	if err != nil {
		return Status{}, err
	}

	return Status{
		CurrentTime: float64(st.CurrentTime),
		Duration:    float64(st.Duration),
		State:       st.PlayerState,
	}, nil
}

func (p *chromecastPlayer) Close() error {
	return p.client.Close(false)
}
