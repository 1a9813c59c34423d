// Package animation advances and paints the knowledge map one frame at a
// time. The host owns the refresh chain (a bubbletea tick in the terminal)
// and uses Loop to make sure no frame outlives the view that scheduled it.
package animation
