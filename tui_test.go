package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"hotscribe/config"
)

func testModel() tuiModel {
	cfg := config.Default()
	cfg.Profiles = append(cfg.Profiles, config.Profile{
		Name:          "notes",
		ActivationKey: "f9",
		BackendType:   "fake",
		RecordingOptions: config.RecordingOptions{
			RecordingMode: config.HoldToRecord,
		},
	})
	m := newTUIModel(cfg)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m
}

func update(m tuiModel, msgs ...tea.Msg) tuiModel {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(tuiModel)
	}
	return m
}

func TestTUIListsActiveProfiles(t *testing.T) {
	view := update(testModel(), startedMsg{}).View()
	for _, want := range []string{"default", "ctrl+shift+space", "notes", "f9", "hold_to_record"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "starting...") {
		t.Error("view still shows starting after core started")
	}
}

func TestTUIStatusTransitions(t *testing.T) {
	m := update(testModel(), startedMsg{}, statusMsg{Profile: "notes", Text: "(notes) Recording..."})
	if !strings.Contains(m.View(), "REC") {
		t.Errorf("recording profile not shown:\n%s", m.View())
	}

	m = update(m, statusMsg{Profile: "notes", Text: "(notes) Transcribing..."})
	if !strings.Contains(m.View(), "transcribing") {
		t.Errorf("transcribing profile not shown:\n%s", m.View())
	}

	m = update(m, statusMsg{Profile: "notes", Text: ""})
	view := m.View()
	if strings.Contains(view, "REC") || strings.Contains(view, "transcribing") {
		t.Errorf("idle profile still busy:\n%s", view)
	}
}

func TestTUIStreamingLabel(t *testing.T) {
	m := update(testModel(), statusMsg{Profile: "default", Text: "(default) Streaming..."})
	if !strings.Contains(m.View(), "LIVE") {
		t.Errorf("streaming profile not labelled:\n%s", m.View())
	}
}

func TestTUIOutputAndErrors(t *testing.T) {
	m := update(testModel(),
		outputMsg{Profile: "notes", Text: "hello world "},
		outputMsg{Profile: "notes", Text: "   "},
		errorMsg{Profile: "default", Err: errors.New("rate limited")},
	)
	if m.count != 1 {
		t.Errorf("count = %d, want 1 (blank output ignored)", m.count)
	}
	view := m.View()
	if !strings.Contains(view, "hello world") {
		t.Errorf("last transcription missing:\n%s", view)
	}
	if !strings.Contains(view, "(default) rate limited") {
		t.Errorf("error missing:\n%s", view)
	}
}

func TestTUIStartupFailure(t *testing.T) {
	m := update(testModel(), failedMsg{Err: errors.New("no input backend")})
	if !strings.Contains(m.View(), "startup failed: no input backend") {
		t.Errorf("failure not shown:\n%s", m.View())
	}
}

func TestTUIQuitKey(t *testing.T) {
	_, cmd := testModel().Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  []string
	}{
		{"", 10, []string{""}},
		{"short", 10, []string{"short"}},
		{"hello brave new world", 11, []string{"hello brave", "new world"}},
		{"abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"héllo wörld", 6, []string{"héllo", "wörld"}},
		{"one\ntwo", 10, []string{"one", "two"}},
	}
	for _, tt := range tests {
		got := wrapText(tt.text, tt.width)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("wrapText(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
		}
	}
}
