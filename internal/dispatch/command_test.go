package dispatch

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantNil  bool
		wantName string
		wantArgs []string
	}{
		{name: "plain text", input: "hello there", wantNil: true},
		{name: "empty", input: "", wantNil: true},
		{name: "bare slash", input: "/", wantNil: true},
		{name: "simple", input: "/start", wantName: "start"},
		{name: "uppercase", input: "/START", wantName: "start"},
		{name: "with args", input: "/websearch AI trends", wantName: "websearch", wantArgs: []string{"AI", "trends"}},
		{name: "bot suffix", input: "/help@my_bot", wantName: "help"},
		{name: "bot suffix with args", input: "/websearch@my_bot golang", wantName: "websearch", wantArgs: []string{"golang"}},
		{name: "leading whitespace", input: "  /help  ", wantName: "help"},
		{name: "slash mid-text", input: "see /help above", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := ParseCommand(tt.input)
			if tt.wantNil {
				if cmd != nil {
					t.Fatalf("ParseCommand(%q) = %+v, want nil", tt.input, cmd)
				}
				return
			}
			if cmd == nil {
				t.Fatalf("ParseCommand(%q) = nil, want command", tt.input)
			}
			if cmd.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", cmd.Name, tt.wantName)
			}
			if len(cmd.Args) != len(tt.wantArgs) {
				t.Fatalf("Args = %v, want %v", cmd.Args, tt.wantArgs)
			}
			for i := range tt.wantArgs {
				if cmd.Args[i] != tt.wantArgs[i] {
					t.Errorf("Args[%d] = %q, want %q", i, cmd.Args[i], tt.wantArgs[i])
				}
			}
		})
	}
}
