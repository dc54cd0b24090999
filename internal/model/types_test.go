package model

import (
	"encoding/json"
	"testing"
)

func TestKindForFilename(t *testing.T) {
	tests := []struct {
		filename string
		kind     FileKind
		ext      string
		ok       bool
	}{
		{"page.PNG", KindImage, ".png", true},
		{"scan.jpeg", KindImage, ".jpeg", true},
		{"photo.jpg", KindImage, ".jpg", true},
		{"old.bmp", KindImage, ".bmp", true},
		{"notes.txt", KindDocument, ".txt", true},
		{"README.md", KindDocument, ".md", true},
		{"book.pdf", "", ".pdf", false},
		{"noext", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			kind, ext, ok := KindForFilename(tt.filename)
			if kind != tt.kind || ext != tt.ext || ok != tt.ok {
				t.Errorf("KindForFilename(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.filename, kind, ext, ok, tt.kind, tt.ext, tt.ok)
			}
		})
	}
}

func TestSectionResult_CompletedJSON(t *testing.T) {
	data, err := json.Marshal(CompletedResult())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	expected := `{"completed":true,"message":"All sections completed!"}`
	if string(data) != expected {
		t.Errorf("Expected %s, got %s", expected, data)
	}
}

func TestSectionResult_SectionJSON(t *testing.T) {
	r := SectionResult{AudioPath: "s/audio_0.wav", Text: "hello", Section: "1/2"}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if q, ok := decoded["questions"].([]any); !ok || len(q) != 0 {
		t.Errorf("Expected empty questions array, got %v", decoded["questions"])
	}
	if decoded["completed"] != false {
		t.Errorf("Expected completed false, got %v", decoded["completed"])
	}
	if _, ok := decoded["message"]; ok {
		t.Error("Expected no message on a section result")
	}
}
