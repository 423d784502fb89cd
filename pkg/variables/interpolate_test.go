package variables

import (
	"strings"
	"testing"
)

func TestEvaluateText(t *testing.T) {
	s := NewStore()
	s.Set("Environment", "Production")
	s.Set("Server", "web-#{Environment}")
	s.Set("Url", "https://#{Server}/#{Path}")

	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "no placeholders", text: "plain", want: "plain"},
		{name: "single", text: "#{Environment}", want: "Production"},
		{name: "nested", text: "#{Url}", want: "https://web-Production/#{Path}"},
		{name: "case insensitive", text: "#{environment}", want: "Production"},
		{name: "unknown left alone", text: "#{Nope}", want: "#{Nope}"},
		{name: "spaces trimmed", text: "#{ Environment }", want: "Production"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.EvaluateText(tt.text); got != tt.want {
				t.Errorf("EvaluateText(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestEvaluateCycleTerminates(t *testing.T) {
	s := NewStore()
	s.Set("A", "#{B}")
	s.Set("B", "#{A}")
	s.Set("Grow", "x#{Grow}")

	got, ok := s.Evaluate("A")
	if !ok {
		t.Fatal("Evaluate(A) not found")
	}
	if got != "#{A}" && got != "#{B}" {
		t.Errorf("Evaluate(A) = %q, want a last-substituted placeholder", got)
	}

	grown, _ := s.Evaluate("Grow")
	if !strings.HasSuffix(grown, "#{Grow}") {
		t.Errorf("Evaluate(Grow) = %q, want unresolved tail", grown)
	}
	if n := strings.Count(grown, "x"); n != MaxInterpolationPasses+1 {
		t.Errorf("Evaluate(Grow) expanded %d times, want %d", n, MaxInterpolationPasses+1)
	}
}

func TestEvaluateMissing(t *testing.T) {
	if _, ok := NewStore().Evaluate("X"); ok {
		t.Error("Evaluate on empty store should report absent")
	}
}

func TestEvaluateTextSensitive(t *testing.T) {
	s := NewStore()
	s.Set("Server", "db")
	s.SetSensitive("DbPassword", "hunter2")
	s.Set("Inner", "pw=#{DbPassword}")

	tests := []struct {
		name          string
		text          string
		want          string
		wantSensitive bool
	}{
		{name: "plain only", text: "Server=#{Server}", want: "Server=db"},
		{name: "direct", text: "Server=#{Server};Password=#{DbPassword}", want: "Server=db;Password=hunter2", wantSensitive: true},
		{name: "nested", text: "#{Inner}", want: "pw=hunter2", wantSensitive: true},
		{name: "unknown", text: "#{Missing}", want: "#{Missing}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, sensitive := s.EvaluateTextSensitive(tt.text)
			if got != tt.want {
				t.Errorf("EvaluateTextSensitive(%q) = %q, want %q", tt.text, got, tt.want)
			}
			if sensitive != tt.wantSensitive {
				t.Errorf("EvaluateTextSensitive(%q) sensitive = %v, want %v", tt.text, sensitive, tt.wantSensitive)
			}
		})
	}
}
