// internal/config/config.go
package config

type Config struct {
	Radio     RadioConfig     `yaml:"radio"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Sensors   SensorsConfig   `yaml:"sensors"`
	Log       LogConfig       `yaml:"log"`
	Console   ConsoleConfig   `yaml:"console"`

	// Optional sinks
	MQTT   *MQTTConfig   `yaml:"mqtt"`
	Mirror *MirrorConfig `yaml:"mirror"`
}

// ---- RADIO ----

type RadioConfig struct {
	Transport string       `yaml:"transport"` // serial | tcp
	Serial    SerialConfig `yaml:"serial"`
	TCP       TCPConfig    `yaml:"tcp"`

	// ChecksumCommands appends a modular-sum byte to outbound commands.
	ChecksumCommands bool `yaml:"checksum_commands"`
	QueueCapacity    int  `yaml:"queue_capacity"`
}

type SerialConfig struct {
	Address  string `yaml:"address"`
	BaudRate int    `yaml:"baud_rate"`
	// TimeoutMs is also the inter-byte gap that abandons a partial frame.
	TimeoutMs int `yaml:"timeout_ms"`
}

type TCPConfig struct {
	Endpoint  string `yaml:"endpoint"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- SCHEDULER ----

type SchedulerConfig struct {
	TxWindowMs     int  `yaml:"tx_window_ms"`
	TrxTimeoutMs   int  `yaml:"trx_timeout_ms"`
	MaxRetries     *int `yaml:"max_retries"`
	SamplePeriodMs int  `yaml:"sample_period_ms"`
	LearnPeriodMs  *int `yaml:"learn_period_ms"` // 0 disables

	Estimator   string `yaml:"estimator"` // scalar | rolling
	TxCapacity  int    `yaml:"tx_capacity"`
	TrxCapacity int    `yaml:"trx_capacity"`

	Pairing   string `yaml:"pairing"`   // manual | auto
	Verbosity string `yaml:"verbosity"` // only_known | all_valid | all
}

// ---- SENSORS ----

// SensorsConfig pre-provisions known sensors at startup.
type SensorsConfig struct {
	TX  []uint32 `yaml:"tx"`
	TRX []uint32 `yaml:"trx"`
}

// ---- LOG / CONSOLE ----

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

type ConsoleConfig struct {
	Enabled     *bool  `yaml:"enabled"`
	Interactive bool   `yaml:"interactive"`
	Prompt      string `yaml:"prompt"`
	History     string `yaml:"history"`
}

// ---- MQTT ----

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         uint8  `yaml:"qos"`
	Encoding    string `yaml:"encoding"` // json | msgpack
	Commands    bool   `yaml:"commands"`
	BufferSize  int    `yaml:"buffer_size"`
}

// ---- REGISTER MIRROR ----

type MirrorConfig struct {
	Transport  string               `yaml:"transport"` // modbus | ingest
	Endpoint   string               `yaml:"endpoint"`
	UnitID     uint8                `yaml:"unit_id"`
	TimeoutMs  int                  `yaml:"timeout_ms"`
	BufferSize int                  `yaml:"buffer_size"`
	Sensors    []MirrorSensorConfig `yaml:"sensors"`
}

type MirrorSensorConfig struct {
	Kind string `yaml:"kind"` // tx | trx
	ID   uint32 `yaml:"id"`
	Slot uint16 `yaml:"slot"`
	Name string `yaml:"name"`
}
