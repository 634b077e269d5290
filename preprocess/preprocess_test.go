package preprocess

import "testing"

func TestTransformNativeCalls(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"wraps integral float", "Native.Foo(1.0)", "Native.Foo(Float(1.0))"},
		{"leaves fractional float", "Native.Foo(1.5)", "Native.Foo(1.5)"},
		{"leaves wrapped literal", "Native.Foo(Float(1.0))", "Native.Foo(Float(1.0))"},
		{"leaves spaced wrapped literal", "Native.Foo(Float ( 2.00 ))", "Native.Foo(Float ( 2.00 ))"},
		{"leaves integers", "Native.SetHealth(playerid, 100)", "Native.SetHealth(playerid, 100)"},
		{"several zeros", "Native.Foo(10.000, 3)", "Native.Foo(Float(10.000), 3)"},
		{"multiple args", "Native.SetPos(id, 1.0, 2.5, 3.0)", "Native.SetPos(id, Float(1.0), 2.5, Float(3.0))"},
		{"exponent is not a literal of interest", "Native.Foo(1.0e5)", "Native.Foo(1.0e5)"},
		{"trailing nonzero digit", "Native.Foo(1.01)", "Native.Foo(1.01)"},
		{"identifier suffix", "Native.Foo(x1.0)", "Native.Foo(x1.0)"},
		{"no fraction digits", "Native.Foo(1.)", "Native.Foo(1.)"},
		{"negative after paren", "Native.Foo(-1.0)", "Native.Foo(Float(-1.0))"},
		{"negative after comma", "Native.Foo(a, -2.0)", "Native.Foo(a, Float(-2.0))"},
		{"spaced sign", "Native.Foo(a, - 2.0)", "Native.Foo(a, Float(- 2.0))"},
		{"subtraction keeps operator", "Native.Foo(a -2.0)", "Native.Foo(a -Float(2.0))"},
		{"subtraction after wrapped literal", "Native.Foo(1.0 - 2.0)", "Native.Foo(Float(1.0) - Float(2.0))"},
		{"unspaced subtraction after wrapped literal", "Native.Foo(1.0 -2.0)", "Native.Foo(Float(1.0) -Float(2.0))"},
		{"sign after wrapped argument", "Native.Foo(1.0, -2.0)", "Native.Foo(Float(1.0), Float(-2.0))"},
		{"decrement is not a comment", "Native.Foo(a--, 1.0)", "Native.Foo(a--, Float(1.0))"},
		{"plus after equals", "Native.Foo(x = +4.0)", "Native.Foo(x = Float(+4.0))"},
		{"call public", "Call_Public.OnThing(5.0)", "Call_Public.OnThing(Float(5.0))"},
		{"space before dot fails the pre-check", "Native . Foo (1.0)", "Native . Foo (1.0)"},
		{"spaces before paren", "x = Native.Foo  (1.0)", "x = Native.Foo  (Float(1.0))"},
		{"outside marked call", "let a = 1.0; Native.Foo(a)", "let a = 1.0; Native.Foo(a)"},
		{"after call closes", "Native.Foo(b); let c = 2.0", "Native.Foo(b); let c = 2.0"},
		{"nested parens", "Native.Foo(Math.max(1.0, 2), 3.0)", "Native.Foo(Math.max(Float(1.0), 2), Float(3.0))"},
		{"keyword boundary", "MyNative.Foo(1.0)", "MyNative.Foo(1.0)"},
		{"keyword suffix", "Natives.Foo(1.0)", "Natives.Foo(1.0)"},
		{"string literal", `print("Native.Foo(1.0)")`, `print("Native.Foo(1.0)")`},
		{"single quotes", `x = 'Native.Foo(1.0)'`, `x = 'Native.Foo(1.0)'`},
		{"backtick", "x = `Native.Foo(1.0)`", "x = `Native.Foo(1.0)`"},
		{"escaped quote", `x = "\"Native.Foo(1.0)"`, `x = "\"Native.Foo(1.0)"`},
		{"line comment", "// Native.Foo(1.0)\nx", "// Native.Foo(1.0)\nx"},
		{"block comment", "/* Native.Foo(1.0) */ x", "/* Native.Foo(1.0) */ x"},
		{"string inside call", `Native.Print("1.0", 1.0)`, `Native.Print("1.0", Float(1.0))`},
		{"paren inside string", `Native.Print(")", 1.0)`, `Native.Print(")", Float(1.0))`},
		{"comment inside call", "Native.Foo(/* 1.0 ) */ 2.0)", "Native.Foo(/* 1.0 ) */ Float(2.0))"},
		{"custom wrapper name is a boundary", "Native.Foo(myFloat(1.0))", "Native.Foo(myFloat(Float(1.0)))"},
		{"two calls", "Native.A(1.0); Native.B(2.0)", "Native.A(Float(1.0)); Native.B(Float(2.0))"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := TransformNativeCalls(tc.in); got != tc.want {
				t.Errorf("TransformNativeCalls(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFastExit(t *testing.T) {
	for _, in := range []string{"", "N.f(1.0)", "let x = Foo(1.0);", "NativeFoo(1.0) // no dot"} {
		if got := TransformNativeCalls(in); got != in {
			t.Errorf("TransformNativeCalls(%q) = %q, want input unchanged", in, got)
		}
	}
}

func TestIdempotent(t *testing.T) {
	inputs := []string{
		"Native.Foo(1.0)",
		"Native.Foo(a, -2.0, x = +3.00)",
		"Native.Foo(a -2.0, b - 3.0)",
		"Native.Foo(1.0 - 2.0, 3.0 -4.0)",
		"Native.Foo(Math.max(1.0, 2), 3.0); Call_Public.Bar(0.0)",
		`Native.Print("1.0", 1.0) // 4.0`,
		"Native.Foo(myFloat(1.0))",
	}
	for _, in := range inputs {
		once := TransformNativeCalls(in)
		twice := TransformNativeCalls(once)
		if once != twice {
			t.Errorf("not idempotent for %q:\n once  %q\n twice %q", in, once, twice)
		}
	}
}

func TestCustomKeywords(t *testing.T) {
	tr := &Transformer{
		NativeKeyword:     "VM",
		CallPublicKeyword: "Public",
		FloatWrapper:      "FloatWrapper",
	}
	tests := []struct {
		in, want string
	}{
		{"VM.Foo(1.0)", "VM.Foo(FloatWrapper(1.0))"},
		{"VM.Foo(FloatWrapper(1.0))", "VM.Foo(FloatWrapper(1.0))"},
		{"Public.Bar(2.0)", "Public.Bar(FloatWrapper(2.0))"},
		{"Native.Foo(1.0)", "Native.Foo(1.0)"},
	}
	for _, tc := range tests {
		if got := tr.Transform(tc.in); got != tc.want {
			t.Errorf("Transform(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestUnterminatedInput(t *testing.T) {
	for _, in := range []string{
		"Native.Foo(1.0",
		`Native.Foo("abc\`,
		"Native.Foo(/* 1.0",
		"Native.Foo(2.0, -",
	} {
		got := TransformNativeCalls(in)
		if TransformNativeCalls(got) != got {
			t.Errorf("unstable output for %q: %q", in, got)
		}
	}
}

func TestLuaSyntax(t *testing.T) {
	tr := NewFor(Lua)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"apostrophe in line comment", "-- don't forget\nsum = Native.floatadd(1.5, 2.0)\n", "-- don't forget\nsum = Native.floatadd(1.5, Float(2.0))\n"},
		{"apostrophe in long string", "local s = [[it's]]\nNative.SetPlayerHealth(1, 100.0)", "local s = [[it's]]\nNative.SetPlayerHealth(1, Float(100.0))"},
		{"call inside long string", "local s = [==[ ]] Native.Foo(1.0) ]==]\nNative.Foo(2.0)", "local s = [==[ ]] Native.Foo(1.0) ]==]\nNative.Foo(Float(2.0))"},
		{"call inside long comment", "--[[ Native.Foo(1.0)\n]] Native.Foo(2.0)", "--[[ Native.Foo(1.0)\n]] Native.Foo(Float(2.0))"},
		{"leveled long comment", "--[==[ ]] ]==] Native.Foo(3.0)", "--[==[ ]] ]==] Native.Foo(Float(3.0))"},
		{"call inside line comment", "-- Native.Foo(1.0)\nNative.Foo(2.0)", "-- Native.Foo(1.0)\nNative.Foo(Float(2.0))"},
		{"comment inside call", "Native.Foo(1.0, -- 3.0)\n2.0)", "Native.Foo(Float(1.0), -- 3.0)\nFloat(2.0))"},
		{"floor division is not a comment", "x = 7 // 2; Native.Foo(1.0)", "x = 7 // 2; Native.Foo(Float(1.0))"},
		{"backtick is not a string", "x = `Native.Foo(1.0)`", "x = `Native.Foo(Float(1.0))`"},
		{"index is not a long bracket", "Native.Foo(t[1.0], 2.0)", "Native.Foo(t[Float(1.0)], Float(2.0))"},
		{"table constructor sign", "Native.Foo({-1.0})", "Native.Foo({Float(-1.0)})"},
		{"quoted string", `print("Native.Foo(1.0)")`, `print("Native.Foo(1.0)")`},
		{"subtraction after wrapped literal", "Native.Foo(1.0 - 2.0)", "Native.Foo(Float(1.0) - Float(2.0))"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tr.Transform(tc.in)
			if got != tc.want {
				t.Errorf("Transform(%q) = %q, want %q", tc.in, got, tc.want)
			}
			if again := tr.Transform(got); again != got {
				t.Errorf("not idempotent: %q", again)
			}
		})
	}
}

func TestParseSyntax(t *testing.T) {
	tests := []struct {
		name string
		want Syntax
		ok   bool
	}{
		{"lua", Lua, true},
		{"LUA", Lua, true},
		{"js", JavaScript, true},
		{"javascript", JavaScript, true},
		{"python", 0, false},
	}
	for _, tc := range tests {
		got, err := ParseSyntax(tc.name)
		if (err == nil) != tc.ok || got != tc.want {
			t.Errorf("ParseSyntax(%q) = %v, %v", tc.name, got, err)
		}
	}
}
