// Package demo walks a fixed script of timed steps. Each step invokes the
// callback registered for its signal name and publishes that signal on the
// bus; pause and resume keep remaining-time accounting for the current step.
package demo
