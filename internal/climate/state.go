package climate

import (
	"fmt"
	"time"

	"github.com/muurk/greeac/internal/protocol"
)

// State is the climate entity as seen by API clients.
type State struct {
	Mode               protocol.Mode     `json:"mode"`
	FanSpeed           protocol.FanSpeed `json:"fan_speed"`
	TargetTemperature  int               `json:"target_temperature"`
	CurrentTemperature int               `json:"current_temperature"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Apply folds a decoded status into s. Unknown mode or fan values leave the
// previous value in place.
func (s State) Apply(st *protocol.Status, at time.Time) State {
	if st.Mode != protocol.ModeUnknown {
		s.Mode = st.Mode
	}
	if st.FanSpeed != protocol.FanSpeedUnknown {
		s.FanSpeed = st.FanSpeed
	}
	s.TargetTemperature = st.TargetTemperature
	s.CurrentTemperature = st.CurrentTemperature
	s.UpdatedAt = at
	return s
}

// Known reports whether a status frame has been applied yet.
func (s State) Known() bool {
	return !s.UpdatedAt.IsZero()
}

func (s State) String() string {
	return fmt.Sprintf("%s/%s target=%d°C current=%d°C", s.Mode, s.FanSpeed, s.TargetTemperature, s.CurrentTemperature)
}
