package animation

import "testing"

func TestLoopRefusesFramesAfterUnmount(t *testing.T) {
	var loop Loop
	if loop.Accept(0) {
		t.Fatalf("unmounted loop accepted a frame")
	}
	gen := loop.Mount()
	if !loop.Accept(gen) {
		t.Fatalf("mounted loop refused its own frame")
	}
	loop.Unmount()
	if loop.Accept(gen) {
		t.Fatalf("frame accepted after unmount")
	}
	next := loop.Mount()
	if loop.Accept(gen) {
		t.Fatalf("stale generation accepted after remount")
	}
	if !loop.Accept(next) || !loop.Mounted() {
		t.Fatalf("remounted loop refused its frame")
	}
}
