// Package domain models telemetry from the Substation33 compost sensors and
// derives display-ready readings from it.
//
// # Data Source
//
// Each compost sensor reports to Thingsboard; the app server copies those
// reports into its own database and returns them from POST /getSensorData as
// a JSON array under "sensor_data", newest row first. Every field may arrive
// as a JSON string or a JSON number.
//
// # Row Fields
//
//	mv         methane sensor voltage
//	mvmin      minimum methane voltage over the last 30 minutes
//	mvmax      maximum methane voltage over the last 30 minutes
//	h          humidity, percent
//	st         temperature inside the compost, degrees Celsius
//	et         temperature outside the sensor, degrees Celsius
//	timestamp  time the report reached the server, ISO 8601
//
// # Derivation
//
// Rows pass through three stages, each a pure function of its input:
//
//	ValidateRow / FilterValid   drop rows with a missing or non-finite number
//	                            or an unparseable timestamp
//	Convert / Derive            voltage to parts per million, other fields
//	                            passed through
//	SelectWindow                readings less than N whole days from a
//	                            reference instant
//
// Methane concentration:
//
//	ppm = round((mv - 2) / 5 * 10000)   for mv >= 2
//	ppm = 0                             for mv < 2
//
// Voltages under 2 V are below the sensor's zero point and are clamped rather
// than reported as negative concentrations. The same rule applies to mvmin and
// mvmax.
//
// Timestamps:
//
//	RFC 3339 with or without fractional seconds and with any offset.
//	"2006-01-02T15:04:05" and "2006-01-02 15:04:05" without a zone are UTC.
//	"2006-01-02 15:04:05+00" (Postgres text output) is accepted.
//
// # Windows
//
// A reading's age is the whole number of 24-hour periods between it and the
// reference, in either direction. A window of N days keeps readings with age
// < N, so a 1-day window keeps everything within 23h59m of the reference. The
// reference is either the newest reading or the current time; see
// [WindowReference].
package domain
