// Package signal is the process-wide named signal bus. The demo scheduler
// publishes one signal per script step; the workflow tracker, the bridge and
// the terminal view subscribe by name. Delivery is buffered per subscriber so
// a slow consumer never blocks a publisher.
package signal
