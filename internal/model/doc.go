// Package model holds the typed, in-memory representation of a loaded
// protocol: the Application with its methods, steps, labware library, and
// starting deck layout. A built Application is immutable; all mutable
// simulation state lives in the emulator package, so one Application can be
// shared by any number of concurrent runs without locking.
package model
