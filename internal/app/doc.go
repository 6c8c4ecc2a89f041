// Package app wires the decoders, builder, emulator and query layers into a
// runnable application. It owns the logger, loads the protocol file named in
// the configuration and executes one read or simulate command against it.
package app
