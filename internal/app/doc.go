// Package app contains the core application logic. It wires the project
// configuration to the build and simulation steps and owns the lifecycle of
// the processes they start, decoupled from any specific entrypoint.
package app
