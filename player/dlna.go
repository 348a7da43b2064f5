package player

import (
	"context"
	"math"

	"github.com/rs/zerolog"
	"go2tv.app/castcli/soapcalls"
)

// Swapped in tests.
var newTVPayload = soapcalls.NewTVPayload

type dlnaPlayer struct {
	tv     *soapcalls.TVPayload
	logger zerolog.Logger
}

func openDLNA(ctx context.Context, dmrURL string, logger zerolog.Logger) (*dlnaPlayer, error) {
	tv, err := newTVPayload(ctx, dmrURL)
	if err != nil {
		return nil, err
	}
	tv.Logger = logger

	return &dlnaPlayer{tv: tv, logger: logger}, nil
}

func (p *dlnaPlayer) Play(ctx context.Context, url string, meta Metadata) error {
	p.tv.MediaURL = url
	p.tv.MediaType = meta.ContentType
	p.tv.MediaTitle = meta.Title

	return p.tv.SendtoTV(ctx, "Play1")
}

func (p *dlnaPlayer) Pause(ctx context.Context) error {
	return p.tv.SendtoTV(ctx, "Pause")
}

func (p *dlnaPlayer) Resume(ctx context.Context) error {
	return p.tv.SendtoTV(ctx, "Play")
}

func (p *dlnaPlayer) Stop(ctx context.Context) error {
	return p.tv.SendtoTV(ctx, "Stop")
}

func (p *dlnaPlayer) Seek(ctx context.Context, seconds float64) error {
	return p.tv.SeekSoapCall(ctx, int(math.Round(clampSeconds(seconds))))
}

// Status reports the position from GetPositionInfo. The transport state is
// best effort, many renderers answer it slowly or not at all.
func (p *dlnaPlayer) Status(ctx context.Context) (Status, error) {
	current, duration, err := p.tv.GetPositionInfoSoapCall(ctx)
	if err != nil {
		return Status{}, err
	}

	st := Status{CurrentTime: current, Duration: duration}

	state, err := p.tv.GetTransportInfoSoapCall(ctx)
	if err != nil {
		p.logger.Debug().Str("Method", "Status").Err(err).Msg("transport info")
	} else {
		st.State = state
	}

	return st, nil
}

func (p *dlnaPlayer) Close() error {
	return nil
}
