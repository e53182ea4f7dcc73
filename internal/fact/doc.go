// Package fact provides the value and record types of the fact store.
//
// This package contains type definitions only. All other internal packages
// import fact; fact imports nothing internal.
//
// Key design constraints:
//   - Value is sealed: String, Int, Float and Time only
//   - Time values are UTC at second precision; their text is ISO-8601
//   - Strings are stored byte for byte; NFC is an explicit opt-in
//   - Attribute order is first-addition order, values keep insertion order
package fact
