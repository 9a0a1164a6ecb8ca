package storage

import (
	"testing"
	"time"
)

func TestRecordingKey(t *testing.T) {
	at := time.Date(2024, 3, 7, 23, 59, 0, 0, time.FixedZone("x", -2*3600))
	tests := []struct {
		session, mime, want string
	}{
		{"s1", "audio/webm", "recordings/2024/03/08/s1/1709863140000.webm"},
		{"a/b c", "audio/ogg;codecs=opus", "recordings/2024/03/08/a-b-c/1709863140000.ogg"},
		{"../x", "audio/unknown", "recordings/2024/03/08/---x/1709863140000.bin"},
		{"", "audio/wav", "recordings/2024/03/08/unknown/1709863140000.wav"},
	}
	for _, tt := range tests {
		if got := RecordingKey(tt.session, tt.mime, at); got != tt.want {
			t.Errorf("RecordingKey(%q, %q) = %q, want %q", tt.session, tt.mime, got, tt.want)
		}
	}
}

func TestExtForMime(t *testing.T) {
	for mime, want := range map[string]string{
		"audio/mpeg":  "mp3",
		"AUDIO/WEBM":  "webm",
		"audio/x-m4a": "m4a",
		"text/plain":  "bin",
	} {
		if got := ExtForMime(mime); got != want {
			t.Errorf("ExtForMime(%q) = %q, want %q", mime, got, want)
		}
	}
}
