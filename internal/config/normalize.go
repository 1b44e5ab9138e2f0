// internal/config/normalize.go
package config

// ---- DEFAULTS ----

const (
	DefaultBaudRate       = 38400
	DefaultLinkTimeoutMs  = 50
	DefaultQueueCapacity  = 8
	DefaultTxWindowMs     = 500
	DefaultTrxTimeoutMs   = 90
	DefaultMaxRetries     = 5
	DefaultSamplePeriodMs = 6000
	DefaultLearnPeriodMs  = 30000
	DefaultCapacity       = 64
	DefaultMirrorTimeout  = 2000
	DefaultSinkBuffer     = 64
	DefaultTopicPrefix    = "ecomanager"
)

// Normalize applies post-validation defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// ---- radio ----
	r := &cfg.Radio
	if r.Transport == "" {
		r.Transport = "serial"
	}
	if r.Serial.BaudRate == 0 {
		r.Serial.BaudRate = DefaultBaudRate
	}
	if r.Serial.TimeoutMs == 0 {
		r.Serial.TimeoutMs = DefaultLinkTimeoutMs
	}
	if r.TCP.TimeoutMs == 0 {
		r.TCP.TimeoutMs = DefaultLinkTimeoutMs
	}
	if r.QueueCapacity == 0 {
		r.QueueCapacity = DefaultQueueCapacity
	}

	// ---- scheduler ----
	s := &cfg.Scheduler
	if s.TxWindowMs == 0 {
		s.TxWindowMs = DefaultTxWindowMs
	}
	if s.TrxTimeoutMs == 0 {
		s.TrxTimeoutMs = DefaultTrxTimeoutMs
	}
	if s.MaxRetries == nil {
		v := DefaultMaxRetries
		s.MaxRetries = &v
	}
	if s.SamplePeriodMs == 0 {
		s.SamplePeriodMs = DefaultSamplePeriodMs
	}
	if s.LearnPeriodMs == nil {
		v := DefaultLearnPeriodMs
		s.LearnPeriodMs = &v
	}
	if s.Estimator == "" {
		s.Estimator = "scalar"
	}
	if s.TxCapacity == 0 {
		s.TxCapacity = DefaultCapacity
	}
	if s.TrxCapacity == 0 {
		s.TrxCapacity = DefaultCapacity
	}
	if s.Pairing == "" {
		s.Pairing = "manual"
	}
	if s.Verbosity == "" {
		s.Verbosity = "all_valid"
	}

	// ---- log / console ----
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Console.Enabled == nil {
		on := true
		cfg.Console.Enabled = &on
	}
	if cfg.Console.Prompt == "" {
		cfg.Console.Prompt = "> "
	}

	// ---- mqtt ----
	if m := cfg.MQTT; m != nil {
		if m.TopicPrefix == "" {
			m.TopicPrefix = DefaultTopicPrefix
		}
		if m.Encoding == "" {
			m.Encoding = "json"
		}
		if m.BufferSize == 0 {
			m.BufferSize = DefaultSinkBuffer
		}
	}

	// ---- mirror ----
	if m := cfg.Mirror; m != nil {
		if m.Transport == "" {
			m.Transport = "modbus"
		}
		if m.TimeoutMs == 0 {
			m.TimeoutMs = DefaultMirrorTimeout
		}
		if m.BufferSize == 0 {
			m.BufferSize = DefaultSinkBuffer
		}
		// ASCII already validated; truncate to the register name field
		for i := range m.Sensors {
			if len(m.Sensors[i].Name) > 16 {
				m.Sensors[i].Name = m.Sensors[i].Name[:16]
			}
		}
	}
}
