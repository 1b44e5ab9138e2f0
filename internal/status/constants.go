// internal/status/constants.go
package status

// Sensor Status Block layout constants.
// These values define the register protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerSensor is the fixed number of registers per sensor.
const SlotsPerSensor = 20

// ---- SLOT INDICES ----

// SlotHealthCode holds the sensor health state.
const SlotHealthCode = 0

// SlotMisses holds the consecutive miss count.
const SlotMisses = 1

// SlotSecondsSinceSeen holds the seconds since the last reception.
const SlotSecondsSinceSeen = 2

// SlotWattsStart is the first of NumWattSlots reading registers.
// An absent channel reads 0xFFFF.
const SlotWattsStart = 3

const NumWattSlots = 3

// SlotTrxState holds the transceiver relay state (1 = on).
const SlotTrxState = 6

// ---- RESERVED RANGE ----

// Slots 7-10 are reserved for future use.
const SlotReservedStart = 7
const SlotReservedEnd = 10

// ---- SENSOR NAME ----

// SlotNameStart is the first slot used for the sensor name.
const SlotNameStart = 11

// SlotNameSlots is the number of slots reserved for the name.
const SlotNameSlots = 8

// SlotNameEnd is the last slot used for the name (inclusive).
const SlotNameEnd = SlotNameStart + SlotNameSlots - 1

// ---- LIMITS ----

// NameMaxChars is the maximum number of ASCII characters stored for a name.
const NameMaxChars = 16

// MaxSeconds caps SlotSecondsSinceSeen; it never wraps.
const MaxSeconds = 0xFFFF

// ---- HEALTH CODES ----

// HealthUnknown is a configured sensor not heard since start.
const HealthUnknown uint16 = 0

// HealthOK is a sensor heard on its last window or poll.
const HealthOK uint16 = 1

// HealthMissing is a sensor that missed at least one window but is still
// scheduled.
const HealthMissing uint16 = 2

// HealthInactive is a sensor past the miss limit.
const HealthInactive uint16 = 3

// HealthRemoved is a sensor removed from its directory.
const HealthRemoved uint16 = 4
