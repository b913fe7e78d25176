// Package rate provides the in-process rolling-window limiter used to gate
// one-time-code issuance.
//
// # Window semantics
//
// A single fixed window per limiter instance: the window opens on the first
// recorded attempt and is cleared once more than Window has elapsed since it
// opened. Inside an open window the limiter enforces both a total attempt
// budget and a minimum interval between consecutive sends.
//
// # What this package must NOT do
//
//   - Drive any user-visible countdown (that lives in internal/countdown).
//   - Talk to the network or to Redis; the limiter guards one local flow
//     instance and is advisory at its single entry point.
//   - Be imported outside the clientauth module.
package rate
