// Package services implements the driving port interfaces.
// Services contain the core business logic: the command dispatcher,
// the pipeline progress tracker, the broadcast subscription manager,
// and the shared application state cell. They orchestrate calls to
// driven ports (adapters) and never touch transport or storage
// directly.
package services
