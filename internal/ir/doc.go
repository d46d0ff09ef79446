// Package ir is the value model for ledger call arguments and diff records.
//
// Values are a closed set: strings, arbitrary-precision unsigned integers,
// booleans, byte strings, arrays and objects. There are no floats and no
// null, so every Value has exactly one canonical JSON rendering. That
// rendering is what the audit export prints, what task identity hashes, and
// what equality compares.
//
// ir imports nothing internal.
package ir
