// Package ranking turns a calendar definition and the availability submitted
// by its participants into a per-slot histogram and a ranked list of meeting
// candidates.
//
// The package is pure: it performs no I/O, keeps no state between calls and
// reports every failure as an error value. Callers load the inputs, call
// Evaluate (or the individual stages), and persist whatever they confirm.
//
// Slots are whole days for DayBased calendars and 30 minute intervals for
// TimeBased calendars. Slot order is chronological and doubles as the
// tie-break axis: when two candidates have the same participant count the
// earlier one ranks first.
package ranking
