// Package clock abstracts wall time and deferred callbacks so timer-driven
// components (the demo scheduler, the scene's gate flash, the workflow
// tracker) can run against the real clock in the terminal and against a
// manually advanced fake in tests.
package clock
