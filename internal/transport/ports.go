package transport

import (
	"fmt"
	"strings"

	"github.com/albenik/go-serial/v2/enumerator"
)

// PortInfo describes a serial port found on the host.
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}

func (p PortInfo) String() string {
	if !p.IsUSB {
		return p.Name
	}
	return fmt.Sprintf("%s (USB %s:%s %s)", p.Name, p.VID, p.PID, p.Product)
}

// ListPorts enumerates serial ports with USB details where available.
func ListPorts() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate ports: %w", err)
	}

	out := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		out = append(out, PortInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}
	return out, nil
}

// FindUSB returns the first USB port matching vid and pid (case-insensitive hex).
func FindUSB(vid, pid string) (*PortInfo, error) {
	ports, err := ListPorts()
	if err != nil {
		return nil, err
	}
	match := matchUSB(ports, vid, pid)
	if match == nil {
		return nil, fmt.Errorf("no USB serial port with id %s:%s found", vid, pid)
	}
	return match, nil
}

func matchUSB(ports []PortInfo, vid, pid string) *PortInfo {
	for i := range ports {
		p := &ports[i]
		if p.IsUSB && strings.EqualFold(p.VID, vid) && strings.EqualFold(p.PID, pid) {
			return p
		}
	}
	return nil
}
