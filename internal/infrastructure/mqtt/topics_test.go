package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name     string
		builder  func() string
		expected string
	}{
		{
			name:     "AuthStatus",
			builder:  Topics{}.AuthStatus,
			expected: "doorsentinel/auth/status",
		},
		{
			name:     "AuthSession",
			builder:  Topics{}.AuthSession,
			expected: "doorsentinel/auth/session",
		},
		{
			name:     "AuthResult",
			builder:  Topics{}.AuthResult,
			expected: "doorsentinel/auth/result",
		},
		{
			name:     "DoorState",
			builder:  Topics{}.DoorState,
			expected: "doorsentinel/door/state",
		},
		{
			name:     "DoorCommand",
			builder:  Topics{}.DoorCommand,
			expected: "doorsentinel/door/command",
		},
		{
			name:     "SensorHealth",
			builder:  Topics{}.SensorHealth,
			expected: "doorsentinel/sensor/health",
		},
		{
			name:     "SystemStatus",
			builder:  Topics{}.SystemStatus,
			expected: "doorsentinel/system/status",
		},
		{
			name:     "AllAuth",
			builder:  Topics{}.AllAuth,
			expected: "doorsentinel/auth/+",
		},
		{
			name:     "AllTopics",
			builder:  Topics{}.AllTopics,
			expected: "doorsentinel/#",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.builder()
			if result != tt.expected {
				t.Errorf("%s() = %q, want %q", tt.name, result, tt.expected)
			}
		})
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	err := client.Close()
	if err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}
