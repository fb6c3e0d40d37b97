package twitch

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		args     []string
		ok       bool
	}{
		{name: "bare", input: "!reset", expected: "reset", ok: true},
		{name: "with_args", input: "!raidtest 25", expected: "raidtest", args: []string{"25"}, ok: true},
		{name: "case_folded", input: "!SelfTest", expected: "selftest", ok: true},
		{name: "extra_spaces", input: "  !color   deep   red  ", expected: "color", args: []string{"deep", "red"}, ok: true},
		{name: "not_a_command", input: "hello there", ok: false},
		{name: "bang_only", input: "!", ok: false},
		{name: "empty", input: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, args, ok := parseCommand(tt.input)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if name != tt.expected {
				t.Errorf("name = %q, want %q", name, tt.expected)
			}
			if len(args) != len(tt.args) {
				t.Fatalf("args = %v, want %v", args, tt.args)
			}
			for i := range args {
				if args[i] != tt.args[i] {
					t.Errorf("args[%d] = %q, want %q", i, args[i], tt.args[i])
				}
			}
		})
	}
}

func TestArgDefaults(t *testing.T) {
	if got := intArg(nil, 0, 10); got != 10 {
		t.Errorf("missing int arg = %d, want default 10", got)
	}
	if got := intArg([]string{"abc"}, 0, 10); got != 10 {
		t.Errorf("bad int arg = %d, want default 10", got)
	}
	if got := intArg([]string{"-3"}, 0, 10); got != 10 {
		t.Errorf("negative int arg = %d, want default 10", got)
	}
	if got := intArg([]string{"25"}, 0, 10); got != 25 {
		t.Errorf("int arg = %d, want 25", got)
	}
	if got := strArg(nil, 0, "fallback"); got != "fallback" {
		t.Errorf("missing str arg = %q", got)
	}
	if got := strArg([]string{"alice"}, 0, "fallback"); got != "alice" {
		t.Errorf("str arg = %q, want alice", got)
	}
}
