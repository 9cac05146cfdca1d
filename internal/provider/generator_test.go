package provider

import (
	"testing"

	"google.golang.org/genai"
)

func TestChatRole(t *testing.T) {
	tests := []struct {
		role string
		want genai.Role
	}{
		{"user", genai.RoleUser},
		{"assistant", genai.RoleModel},
		{"system", genai.RoleUser},
		{"", genai.RoleUser},
	}

	for _, tt := range tests {
		if got := chatRole(tt.role); got != tt.want {
			t.Errorf("chatRole(%q) = %q, want %q", tt.role, got, tt.want)
		}
	}
}
