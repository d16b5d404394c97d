package offgridswitch

import (
	"go.uber.org/zap"

	"github.com/ohowland/cgc_offgrid/internal/pkg/channel"
	"github.com/ohowland/cgc_offgrid/internal/pkg/component"
)

// Switch channel ids
const (
	MainContactor      channel.ID = "MainContactor"
	GroundingContactor channel.ID = "GroundingContactor"
	GridStatus         channel.ID = "GridStatus"
)

// Config maps the switch channels to the digital inputs they mirror.
type Config struct {
	ID                 string          `yaml:"id"`
	Alias              string          `yaml:"alias"`
	Enabled            bool            `yaml:"enabled"`
	MainContactor      channel.Address `yaml:"mainContactor"`
	GroundingContactor channel.Address `yaml:"groundingContactor"`
	GridStatus         channel.Address `yaml:"gridStatus"`
}

// Switch is the grid disconnect. All channels are read-only status: true
// means closed, engaged and grid present respectively.
type Switch struct {
	component.Base
	logger             *zap.Logger
	config             Config
	mainContactor      *channel.Of[bool]
	groundingContactor *channel.Of[bool]
	gridStatus         *channel.Of[bool]
}

// New returns a Switch mirroring the configured inputs.
func New(cfg Config, logger *zap.Logger) (*Switch, error) {
	base, err := component.New(cfg.ID, cfg.Alias, cfg.Enabled)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Switch{
		Base:               base,
		logger:             logger.Named(cfg.ID),
		config:             cfg,
		mainContactor:      channel.NewBoolean(channel.Doc{ID: MainContactor, Text: "true while closed"}),
		groundingContactor: channel.NewBoolean(channel.Doc{ID: GroundingContactor, Text: "true while engaged"}),
		gridStatus:         channel.NewBoolean(channel.Doc{ID: GridStatus, Text: "true while the grid is present"}),
	}
	err = s.AddChannels(s.mainContactor, s.groundingContactor, s.gridStatus)
	return s, err
}

// MainContactor returns the main contactor status.
func (s *Switch) MainContactor() (channel.Value[bool], error) { return s.mainContactor.Current() }

// GroundingContactor returns the grounding contactor status.
func (s *Switch) GroundingContactor() (channel.Value[bool], error) {
	return s.groundingContactor.Current()
}

// GridStatus returns whether the grid is present.
func (s *Switch) GridStatus() (channel.Value[bool], error) { return s.gridStatus.Current() }

// HandleInputOutput copies the digital inputs into the switch channels. It
// runs before the process image; an unreadable input leaves the mirrored
// channel undefined for the cycle.
func (s *Switch) HandleInputOutput(m *component.Manager) {
	if !s.IsEnabled() {
		return
	}
	s.mirror(m, s.config.MainContactor, s.mainContactor)
	s.mirror(m, s.config.GridStatus, s.gridStatus)
	s.mirror(m, s.config.GroundingContactor, s.groundingContactor)
}

func (s *Switch) mirror(m *component.Manager, addr channel.Address, dst *channel.Of[bool]) {
	src, err := component.GetChannel[bool](m, addr)
	if err != nil {
		s.logger.Warn("input unavailable", zap.Stringer("address", addr), zap.Error(err))
		dst.SetNextUndefined()
		return
	}
	v, err := src.Current()
	if err != nil || !v.IsDefined() {
		s.logger.Debug("input undefined", zap.Stringer("address", addr), zap.Error(err))
		dst.SetNextUndefined()
		return
	}
	dst.SetNextValue(v)
}
