// internal/config/validate.go
package config

import (
	"fmt"
)

// MaxTransmitterID is the largest 12-bit transmit-only identifier.
const MaxTransmitterID = 0x0FFF

// slotsPerSensor mirrors the register block size; a block must fit in
// the 16-bit address space.
const slotsPerSensor = 20

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	if err := validateRadio(&cfg.Radio); err != nil {
		return err
	}
	if err := validateScheduler(&cfg.Scheduler); err != nil {
		return err
	}
	if err := validateSensors(cfg); err != nil {
		return err
	}

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q: want debug, info, warn or error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q: want text or json", cfg.Log.Format)
	}

	if cfg.MQTT != nil {
		if err := validateMQTT(cfg.MQTT); err != nil {
			return err
		}
	}
	if cfg.Mirror != nil {
		if err := validateMirror(cfg.Mirror); err != nil {
			return err
		}
	}

	return nil
}

// ------------------------------------------------------------
// RADIO
// ------------------------------------------------------------

func validateRadio(r *RadioConfig) error {
	switch r.Transport {
	case "", "serial":
		if r.Serial.Address == "" {
			return fmt.Errorf("radio.serial.address is required for serial transport")
		}
		if r.Serial.BaudRate < 0 || r.Serial.TimeoutMs < 0 {
			return fmt.Errorf("radio.serial: baud_rate and timeout_ms must not be negative")
		}
	case "tcp":
		if r.TCP.Endpoint == "" {
			return fmt.Errorf("radio.tcp.endpoint is required for tcp transport")
		}
		if r.TCP.TimeoutMs < 0 {
			return fmt.Errorf("radio.tcp.timeout_ms must not be negative")
		}
	default:
		return fmt.Errorf("radio.transport %q: want serial or tcp", r.Transport)
	}

	if r.QueueCapacity < 0 {
		return fmt.Errorf("radio.queue_capacity must not be negative")
	}
	return nil
}

// ------------------------------------------------------------
// SCHEDULER
// ------------------------------------------------------------

func validateScheduler(s *SchedulerConfig) error {
	for name, v := range map[string]int{
		"tx_window_ms":     s.TxWindowMs,
		"trx_timeout_ms":   s.TrxTimeoutMs,
		"sample_period_ms": s.SamplePeriodMs,
		"tx_capacity":      s.TxCapacity,
		"trx_capacity":     s.TrxCapacity,
	} {
		if v < 0 {
			return fmt.Errorf("scheduler.%s must not be negative", name)
		}
	}
	if s.MaxRetries != nil && *s.MaxRetries < 0 {
		return fmt.Errorf("scheduler.max_retries must not be negative")
	}
	if s.LearnPeriodMs != nil && *s.LearnPeriodMs < 0 {
		return fmt.Errorf("scheduler.learn_period_ms must not be negative")
	}

	switch s.Estimator {
	case "", "scalar", "rolling":
	default:
		return fmt.Errorf("scheduler.estimator %q: want scalar or rolling", s.Estimator)
	}
	switch s.Pairing {
	case "", "manual", "auto":
	default:
		return fmt.Errorf("scheduler.pairing %q: want manual or auto", s.Pairing)
	}
	switch s.Verbosity {
	case "", "only_known", "all_valid", "all":
	default:
		return fmt.Errorf("scheduler.verbosity %q: want only_known, all_valid or all", s.Verbosity)
	}
	return nil
}

// ------------------------------------------------------------
// SENSORS
// ------------------------------------------------------------

func validateSensors(cfg *Config) error {
	seen := make(map[uint32]bool, len(cfg.Sensors.TX))
	for _, id := range cfg.Sensors.TX {
		if id > MaxTransmitterID {
			return fmt.Errorf("sensors.tx: id %d exceeds 12-bit range", id)
		}
		if seen[id] {
			return fmt.Errorf("sensors.tx: id %d listed twice", id)
		}
		seen[id] = true
	}
	if c := cfg.Scheduler.TxCapacity; c > 0 && len(cfg.Sensors.TX) > c {
		return fmt.Errorf("sensors.tx: %d ids exceed tx_capacity %d", len(cfg.Sensors.TX), c)
	}

	seen = make(map[uint32]bool, len(cfg.Sensors.TRX))
	for _, id := range cfg.Sensors.TRX {
		if seen[id] {
			return fmt.Errorf("sensors.trx: id %d listed twice", id)
		}
		seen[id] = true
	}
	if c := cfg.Scheduler.TrxCapacity; c > 0 && len(cfg.Sensors.TRX) > c {
		return fmt.Errorf("sensors.trx: %d ids exceed trx_capacity %d", len(cfg.Sensors.TRX), c)
	}
	return nil
}

// ------------------------------------------------------------
// MQTT
// ------------------------------------------------------------

func validateMQTT(m *MQTTConfig) error {
	if m.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	if m.QoS > 2 {
		return fmt.Errorf("mqtt.qos %d: want 0, 1 or 2", m.QoS)
	}
	switch m.Encoding {
	case "", "json", "msgpack":
	default:
		return fmt.Errorf("mqtt.encoding %q: want json or msgpack", m.Encoding)
	}
	if m.BufferSize < 0 {
		return fmt.Errorf("mqtt.buffer_size must not be negative")
	}
	return nil
}

// ------------------------------------------------------------
// REGISTER MIRROR
// ------------------------------------------------------------

func validateMirror(m *MirrorConfig) error {
	switch m.Transport {
	case "", "modbus", "ingest":
	default:
		return fmt.Errorf("mirror.transport %q: want modbus or ingest", m.Transport)
	}
	if m.Endpoint == "" {
		return fmt.Errorf("mirror.endpoint is required")
	}
	if m.TimeoutMs < 0 || m.BufferSize < 0 {
		return fmt.Errorf("mirror: timeout_ms and buffer_size must not be negative")
	}
	if len(m.Sensors) == 0 {
		return fmt.Errorf("mirror.sensors: at least one sensor is required")
	}

	slotOwner := make(map[uint16]string)
	sensorSeen := make(map[string]bool)

	for _, s := range m.Sensors {
		if s.Kind != "tx" && s.Kind != "trx" {
			return fmt.Errorf("mirror.sensors: kind %q: want tx or trx", s.Kind)
		}

		who := fmt.Sprintf("%s %d", s.Kind, s.ID)
		if sensorSeen[who] {
			return fmt.Errorf("mirror.sensors: %s mapped twice", who)
		}
		sensorSeen[who] = true

		// name sanity (ASCII only)
		for i := 0; i < len(s.Name); i++ {
			if s.Name[i] > 0x7F {
				return fmt.Errorf("mirror.sensors: %s: name must contain ASCII characters only", who)
			}
		}

		if int(s.Slot)*slotsPerSensor+slotsPerSensor-1 > 0xFFFF {
			return fmt.Errorf("mirror.sensors: %s: slot %d is beyond the register space", who, s.Slot)
		}

		if prev, exists := slotOwner[s.Slot]; exists {
			return fmt.Errorf(
				"mirror slot collision: slot=%d used by %s and %s",
				s.Slot,
				prev,
				who,
			)
		}
		slotOwner[s.Slot] = who
	}

	return nil
}
