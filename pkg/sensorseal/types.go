// Package sensorseal decodes telemetry payloads carried inside SSGSCP
// MSGSTATUS packets into typed, partially-populated sensor readings.
package sensorseal

import "fmt"

// UID is a sensor seal's identifier, as reported by its gateway.
type UID uint32

func (u UID) String() string {
	return fmt.Sprintf("seal-%08x", uint32(u))
}

// Update is the result of parsing a MSGSTATUS payload. Every field is
// optional; an absent field is nil, never a zero value, so the application
// layer can distinguish "not reported" from "reported as zero".
type Update struct {
	SensorSealUID *UID
	Temperature   *float64 // degrees Celsius
	Vibration     *float64 // mm/s^2
	RPM           *uint32
	Voltage       *float64 // volts
	MsgID         *uint32
}
