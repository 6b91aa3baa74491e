package sim

import "testing"

func TestCommandBufferWraparound(t *testing.T) {
	buffer := NewCommandBuffer(3, nil)
	cmds := []Command{
		{Source: "a"},
		{Source: "b"},
		{Source: "c"},
	}
	for _, cmd := range cmds {
		if !buffer.Push(cmd) {
			t.Fatalf("expected push to succeed for %+v", cmd)
		}
	}
	if buffer.Push(Command{Source: "overflow"}) {
		t.Fatalf("expected push to fail when buffer full")
	}
	drained := buffer.Drain()
	if len(drained) != len(cmds) {
		t.Fatalf("expected %d commands, got %d", len(cmds), len(drained))
	}
	for i, cmd := range drained {
		if cmd.Source != cmds[i].Source {
			t.Fatalf("expected drain order %v, got %v", cmds[i].Source, cmd.Source)
		}
	}
	for _, cmd := range []Command{{Source: "d"}, {Source: "e"}} {
		if !buffer.Push(cmd) {
			t.Fatalf("expected push to succeed after drain for %+v", cmd)
		}
	}
	wrapped := buffer.Drain()
	if len(wrapped) != 2 || wrapped[0].Source != "d" || wrapped[1].Source != "e" {
		t.Fatalf("unexpected order after wraparound: %+v", wrapped)
	}
	if buffer.Drain() != nil || buffer.Len() != 0 {
		t.Fatalf("expected empty buffer")
	}
}
