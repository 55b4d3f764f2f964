// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"strings"
	"testing"
)

func TestWindowEvictsOldestFirst(t *testing.T) {
	w := NewContextWindow(20)
	w.Append(RoleUser, "aaaaaaaaaa") // 10 chars
	w.Append(RoleUser, "bbbbbbbbbb") // 10 chars, at budget
	w.Append(RoleUser, "cccccc")     // overflow, evicts a

	contents := w.Contents()
	if len(contents) != 2 || contents[0] != "bbbbbbbbbb" || contents[1] != "cccccc" {
		t.Errorf("contents = %v", contents)
	}
	if w.Size() > 20 {
		t.Errorf("size = %d over budget", w.Size())
	}
}

func TestWindowPinnedSurvivesEviction(t *testing.T) {
	w := NewContextWindow(20)
	w.AppendPinned(RoleTask, "tttttttttt")
	w.Append(RoleUser, "aaaaaaaaaa")
	w.Append(RoleUser, "bbbbbbbbbb")

	contents := w.Contents()
	if contents[0] != "tttttttttt" {
		t.Errorf("pinned entry evicted: %v", contents)
	}
	for _, c := range contents {
		if c == "aaaaaaaaaa" {
			t.Errorf("oldest unpinned entry should have been evicted: %v", contents)
		}
	}
}

func TestWindowPinnedMayOverflowBudget(t *testing.T) {
	w := NewContextWindow(10)
	w.AppendPinned(RoleTask, strings.Repeat("x", 30))
	w.AppendPinned(RoleTask, strings.Repeat("y", 30))

	if w.Len() != 2 {
		t.Errorf("len = %d, pinned entries must never be evicted", w.Len())
	}
	if w.Size() != 60 {
		t.Errorf("size = %d", w.Size())
	}
}

func TestWindowTaskStatement(t *testing.T) {
	w := NewContextWindow(0)
	if w.TaskStatement() != "" {
		t.Error("empty window should have no task")
	}
	w.Append(RoleTask, "unpinned task does not count")
	if w.TaskStatement() != "" {
		t.Error("unpinned task entries do not count")
	}
	w.AppendPinned(RoleTask, "first task")
	w.AppendPinned(RoleTask, "second task")
	if got := w.TaskStatement(); got != "second task" {
		t.Errorf("task = %q, want most recent pinned", got)
	}
}

func TestWindowClearKeepsPinned(t *testing.T) {
	w := NewContextWindow(0)
	w.AppendPinned(RoleTask, "the task")
	w.Append(RoleUser, "hello")
	w.Append(RoleAssistant, "hi")

	w.Clear()
	if w.Len() != 1 || w.TaskStatement() != "the task" {
		t.Errorf("after clear: len=%d task=%q", w.Len(), w.TaskStatement())
	}
}

func TestWindowSnapshotIsCopy(t *testing.T) {
	w := NewContextWindow(0)
	w.Append(RoleUser, "original")
	snap := w.Snapshot()
	snap[0].Content = "mutated"
	if w.Contents()[0] != "original" {
		t.Error("snapshot mutation leaked into the window")
	}
}

func TestWindowRenderDeterministic(t *testing.T) {
	w := NewContextWindow(0)
	w.Append(RoleUser, "q")
	w.Append(RoleAssistant, "a")
	want := "user: q\nassistant: a\n"
	if got := w.Render(); got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
}
