package auditdb

import (
	"context"
	"time"

	"github.com/sensorseal/ssgs/pkg/sensorseal"
)

// RecordEventAsync records an event on a background goroutine, logging
// (rather than returning) any failure. It lets the protocol dispatch path
// stay on the single dispatch goroutine without blocking on disk I/O.
func (db *DB) RecordEventAsync(kind, gatewayUID, remoteAddr, detail string, raw []byte) {
	at := time.Now().UnixMilli()
	go func() {
		err := db.RecordEvent(context.Background(), Event{
			At:         at,
			GatewayUID: gatewayUID,
			Kind:       EventKind(kind),
			RemoteAddr: remoteAddr,
			Detail:     detail,
			Raw:        raw,
		})
		if err != nil {
			db.Logger.Error().Err(err).Str("gateway_uid", gatewayUID).Msg("auditdb: record event failed")
		}
	}()
}

// RecordTelemetryAsync records a telemetry update on a background goroutine.
func (db *DB) RecordTelemetryAsync(gatewayUID string, u sensorseal.Update) {
	var sealUID *uint32
	if u.SensorSealUID != nil {
		v := uint32(*u.SensorSealUID)
		sealUID = &v
	}
	at := time.Now().UnixMilli()
	go func() {
		err := db.RecordTelemetry(context.Background(), Telemetry{
			At:            at,
			GatewayUID:    gatewayUID,
			SensorSealUID: sealUID,
			Temperature:   u.Temperature,
			Vibration:     u.Vibration,
			RPM:           u.RPM,
			Voltage:       u.Voltage,
			MsgID:         u.MsgID,
		})
		if err != nil {
			db.Logger.Error().Err(err).Str("gateway_uid", gatewayUID).Msg("auditdb: record telemetry failed")
		}
	}()
}
