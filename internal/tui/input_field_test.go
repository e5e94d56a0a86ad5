package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestNewInputField(t *testing.T) {
	field := NewInputField()

	if field == nil {
		t.Fatal("NewInputField returned nil")
	}
	if field.width != 80 {
		t.Errorf("Default width = %d, want 80", field.width)
	}
	if !field.input.Focused() {
		t.Error("Input should be focused on creation")
	}
}

func TestInputField_SetWidth(t *testing.T) {
	field := NewInputField()

	field.SetWidth(120)

	if field.width != 120 {
		t.Errorf("Width after SetWidth(120) = %d, want 120", field.width)
	}
	if field.input.Width != 116 {
		t.Errorf("Input width = %d, want 116", field.input.Width)
	}
}

func TestInputField_Update_Enter_EmptyInput(t *testing.T) {
	field := NewInputField()
	field.input.SetValue("   ")

	_, cmd := field.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if cmd != nil {
		t.Error("Blank input should not produce a command")
	}
}

func TestInputField_Update_Enter_WithInput(t *testing.T) {
	field := NewInputField()
	field.input.SetValue("  send a weekly email report ")

	_, cmd := field.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("Expected command from enter with text")
	}

	submitted, ok := cmd().(QuerySubmittedMsg)
	if !ok {
		t.Fatalf("Expected QuerySubmittedMsg, got %T", cmd())
	}
	if submitted.Task != "send a weekly email report" {
		t.Errorf("Task = %q, want trimmed text", submitted.Task)
	}
	if field.Value() != "" {
		t.Errorf("Input should be reset after submit, got %q", field.Value())
	}
}

func TestInputField_Update_Typing(t *testing.T) {
	field := NewInputField()

	for _, r := range "email" {
		field.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}

	if field.Value() != "email" {
		t.Errorf("Value = %q, want %q", field.Value(), "email")
	}
}
