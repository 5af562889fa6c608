package climate

import "github.com/muurk/greeac/internal/protocol"

// Traits describes what the unit supports, for UI clients.
type Traits struct {
	SupportedModes             []protocol.Mode      `json:"supported_modes"`
	SupportedFanSpeeds         []protocol.FanSpeed  `json:"supported_fan_speeds"`
	SupportedSwingModes        []protocol.SwingMode `json:"supported_swing_modes"`
	SupportsCurrentTemperature bool                 `json:"supports_current_temperature"`
	SupportsTwoPointTarget     bool                 `json:"supports_two_point_target"`
	MinTemperature             int                  `json:"min_temperature"`
	MaxTemperature             int                  `json:"max_temperature"`
	TemperatureStep            int                  `json:"temperature_step"`
}

// DefaultTraits returns the traits of a standard Gree split unit.
// Swing is not encoded on the wire, so none is advertised.
func DefaultTraits() Traits {
	return Traits{
		SupportedModes:             protocol.Modes(),
		SupportedFanSpeeds:         protocol.FanSpeeds(),
		SupportedSwingModes:        []protocol.SwingMode{},
		SupportsCurrentTemperature: true,
		SupportsTwoPointTarget:     false,
		MinTemperature:             protocol.MinValidTemperature,
		MaxTemperature:             protocol.MaxValidTemperature,
		TemperatureStep:            protocol.TemperatureStep,
	}
}
