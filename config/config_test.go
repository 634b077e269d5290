package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/cellbridge/convert"
	"github.com/chazu/cellbridge/native"
	"github.com/chazu/cellbridge/vm"
)

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	content := `
[encoding]
enabled = true
target = "windows-1251"

[sandbox]
size = 8192

[natives]
string_buffer_size = 256
float_return = ["GetPlayerHealth"]

[events]
skip = ["OnFilterScriptInit"]
inverted = ["OnRconCommand"]

[trace]
enabled = true

[log]
verbosity = 2

[script]
main = "gamemode.lua"
`
	if err := os.WriteFile(filepath.Join(dir, "cellbridge.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !c.Encoding.Enabled || c.Encoding.Target != "windows-1251" {
		t.Errorf("encoding = %+v", c.Encoding)
	}
	if c.Sandbox.Size != 8192 {
		t.Errorf("sandbox size = %d, want 8192", c.Sandbox.Size)
	}
	if c.Natives.StringBufferSize != 256 {
		t.Errorf("string buffer size = %d, want 256", c.Natives.StringBufferSize)
	}
	if len(c.Natives.FloatReturn) != 1 || c.Natives.FloatReturn[0] != "GetPlayerHealth" {
		t.Errorf("float return = %v", c.Natives.FloatReturn)
	}
	if len(c.Events.Skip) != 1 || c.Events.Skip[0] != "OnFilterScriptInit" {
		t.Errorf("skip = %v", c.Events.Skip)
	}
	if len(c.Events.Inverted) != 1 || c.Events.Inverted[0] != "OnRconCommand" {
		t.Errorf("inverted = %v", c.Events.Inverted)
	}
	if c.Log.Verbosity != 2 {
		t.Errorf("verbosity = %d, want 2", c.Log.Verbosity)
	}
	if want := filepath.Join(c.Dir, ".cellbridge", "trace.db"); c.TracePath() != want {
		t.Errorf("trace path = %q, want %q", c.TracePath(), want)
	}
	if want := filepath.Join(c.Dir, "gamemode.lua"); c.MainScript() != want {
		t.Errorf("main script = %q, want %q", c.MainScript(), want)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	content := `
encoding:
  enabled: true
  target: "1252"
natives:
  string_buffer_size: 64
script:
  main: /abs/main.lua
`
	if err := os.WriteFile(filepath.Join(dir, "cellbridge.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Encoding.Target != "1252" || c.Natives.StringBufferSize != 64 {
		t.Errorf("config = %+v", c)
	}
	if c.MainScript() != "/abs/main.lua" {
		t.Errorf("main script = %q, want /abs/main.lua", c.MainScript())
	}
	if c.Sandbox.Size != vm.DefaultSandboxSize {
		t.Errorf("sandbox size default = %d", c.Sandbox.Size)
	}
}

func TestDefaults(t *testing.T) {
	c := Default()
	if c.Sandbox.Size != vm.DefaultSandboxSize {
		t.Errorf("sandbox size = %d, want %d", c.Sandbox.Size, vm.DefaultSandboxSize)
	}
	if c.Natives.StringBufferSize != convert.DefaultStringBufferSize {
		t.Errorf("string buffer size = %d", c.Natives.StringBufferSize)
	}
	if len(c.Natives.FloatReturn) != len(native.DefaultFloatReturn) {
		t.Errorf("float return = %v", c.Natives.FloatReturn)
	}
	if len(c.Events.Skip) != 1 || c.Events.Skip[0] != "OnGameModeInit" {
		t.Errorf("skip = %v", c.Events.Skip)
	}
	if len(c.Events.Inverted) != 1 || c.Events.Inverted[0] != "OnPlayerCommandText" {
		t.Errorf("inverted = %v", c.Events.Inverted)
	}
	if c.Encoding.Enabled || c.Trace.Enabled {
		t.Error("encoding and trace should be off by default")
	}
	if c.Script.Main != "main.lua" {
		t.Errorf("main = %q", c.Script.Main)
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "cellbridge.toml"), []byte("[sandbox]\nsize = 4096\n"), 0644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "scripts", "modes")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c == nil || c.Sandbox.Size != 4096 {
		t.Fatalf("FindAndLoad = %+v", c)
	}
	abs, _ := filepath.Abs(root)
	if c.Dir != abs {
		t.Errorf("Dir = %q, want %q", c.Dir, abs)
	}
}

func TestFindAndLoadNone(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Skip("a configuration file exists above the temp directory")
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err == nil {
		t.Error("Load on an empty directory should fail")
	}
	bad := filepath.Join(dir, "cellbridge.toml")
	if err := os.WriteFile(bad, []byte("[sandbox\nsize = "), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(bad); err == nil {
		t.Error("LoadFile on malformed TOML should fail")
	}
}
