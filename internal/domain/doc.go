// Package domain contains the core entities and error taxonomy of the
// lottery server.
//
// The package has no dependencies on infrastructure concerns (sockets,
// storage, logging) and contains only data types and their invariants.
//
// # Entities
//
//   - [Bet]: a single lottery bet placed through an agency
//   - [Batch]: bets received in one wire message together with the count
//     the agency declared for it
//
// # Errors
//
// Errors are sentinels checked with errors.Is. Codec errors wrap
// [ErrMalformedMessage] so callers can classify them without knowing the
// specific violation.
package domain
