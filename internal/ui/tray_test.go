package ui

import (
	"testing"

	"github.com/heimdex/dsync/internal/dataset"
)

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		paused, syncing, enabled bool
		want                     string
	}{
		{false, false, false, "Not Connected"},
		{true, true, false, "Not Connected"},
		{false, false, true, "Idle"},
		{true, false, true, "Paused"},
		{true, true, true, "Syncing"},
	}
	for _, tt := range tests {
		if got := statusLabel(tt.paused, tt.syncing, tt.enabled); got != tt.want {
			t.Errorf("statusLabel(%v, %v, %v) = %q, want %q", tt.paused, tt.syncing, tt.enabled, got, tt.want)
		}
	}
}

func TestDatasetLabel(t *testing.T) {
	if got := datasetLabel(dataset.Info{Team: "acme", Slug: "cats"}); got != "acme/cats" {
		t.Errorf("datasetLabel() = %q", got)
	}
	if got := datasetLabel(dataset.Info{}); got != "none" {
		t.Errorf("datasetLabel(empty) = %q", got)
	}
}

func TestItemsLabel(t *testing.T) {
	if got := itemsLabel(1); got != "Mirrored: 1 item" {
		t.Errorf("itemsLabel(1) = %q", got)
	}
	if got := itemsLabel(1037); got != "Mirrored: 1037 items" {
		t.Errorf("itemsLabel(1037) = %q", got)
	}
}

func TestNewTray_DisabledWithoutMirror(t *testing.T) {
	tray := NewTray(TrayConfig{})
	if tray.enabled {
		t.Error("tray without a mirror should be disabled")
	}
	if tray.ctx == nil {
		t.Error("tray context should default to background")
	}
	if tray.paused() {
		t.Error("paused() = true without a runner")
	}
}
