package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// TestConfig represents a test configuration structure.
type TestConfig struct {
	Config string `help:"Config file path"`

	StringField   string        `toml:"test.string_field" env:"STRING_FIELD"`
	BoolField     bool          `toml:"test.bool_field" env:"BOOL_FIELD"`
	IntField      int           `toml:"test.int_field" env:"INT_FIELD"`
	FloatField    float64       `toml:"test.float_field" env:"FLOAT_FIELD"`
	DurationField time.Duration `toml:"test.duration_field" env:"DURATION_FIELD"`
	SliceField    []string      `toml:"test.slice_field" env:"SLICE_FIELD"`

	NestedString string `toml:"nested.value" env:"NESTED_VALUE"`
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeTemp(t, "config.toml", `
[test]
string_field = "hello world"
bool_field = true
int_field = 42
float_field = 0.25
duration_field = "250ms"
slice_field = ["item1", "item2", "item3"]

[nested]
value = "nested value"
`)

	config := &TestConfig{Config: path}
	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.StringField != "hello world" {
		t.Errorf("Expected StringField to be 'hello world', got '%s'", config.StringField)
	}
	if !config.BoolField {
		t.Errorf("Expected BoolField to be true, got %v", config.BoolField)
	}
	if config.IntField != 42 {
		t.Errorf("Expected IntField to be 42, got %d", config.IntField)
	}
	if config.FloatField != 0.25 {
		t.Errorf("Expected FloatField to be 0.25, got %v", config.FloatField)
	}
	if config.DurationField != 250*time.Millisecond {
		t.Errorf("Expected DurationField to be 250ms, got %v", config.DurationField)
	}
	expectedSlice := []string{"item1", "item2", "item3"}
	if !reflect.DeepEqual(config.SliceField, expectedSlice) {
		t.Errorf("Expected SliceField to be %v, got %v", expectedSlice, config.SliceField)
	}
	if config.NestedString != "nested value" {
		t.Errorf("Expected NestedString to be 'nested value', got '%s'", config.NestedString)
	}
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	t.Setenv("ILLUMINODE_STRING_FIELD", "env string")
	t.Setenv("ILLUMINODE_BOOL_FIELD", "false")
	t.Setenv("ILLUMINODE_INT_FIELD", "123")
	t.Setenv("ILLUMINODE_DURATION_FIELD", "2s")
	t.Setenv("ILLUMINODE_SLICE_FIELD", "a,b,c")
	t.Setenv("ILLUMINODE_NESTED_VALUE", "env nested")

	config := &TestConfig{}
	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.StringField != "env string" {
		t.Errorf("Expected StringField to be 'env string', got '%s'", config.StringField)
	}
	if config.BoolField {
		t.Errorf("Expected BoolField to be false, got %v", config.BoolField)
	}
	if config.IntField != 123 {
		t.Errorf("Expected IntField to be 123, got %d", config.IntField)
	}
	if config.DurationField != 2*time.Second {
		t.Errorf("Expected DurationField to be 2s, got %v", config.DurationField)
	}
	if !reflect.DeepEqual(config.SliceField, []string{"a", "b", "c"}) {
		t.Errorf("Expected SliceField to be [a b c], got %v", config.SliceField)
	}
	if config.NestedString != "env nested" {
		t.Errorf("Expected NestedString to be 'env nested', got '%s'", config.NestedString)
	}
}

func TestLoadConfigInvalidEnvValue(t *testing.T) {
	t.Setenv("ILLUMINODE_INT_FIELD", "many")

	if err := LoadConfig(&TestConfig{}, nil); err == nil {
		t.Fatal("LoadConfig should fail for a malformed env value")
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeTemp(t, "config.toml", `
[test]
string_field = "toml value"
bool_field = true
int_field = 100
`)
	t.Setenv("ILLUMINODE_STRING_FIELD", "env override")
	t.Setenv("ILLUMINODE_INT_FIELD", "200")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Int("int-field", 0, "")
	if err := cmd.Flags().Set("int-field", "300"); err != nil {
		t.Fatalf("Set flag: %v", err)
	}

	config := &TestConfig{Config: path, IntField: 300}
	if err := LoadConfig(config, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.StringField != "env override" {
		t.Errorf("StringField = %q, env should override TOML", config.StringField)
	}
	if !config.BoolField {
		t.Error("BoolField = false, TOML value should apply")
	}
	if config.IntField != 300 {
		t.Errorf("IntField = %d, CLI flag should win", config.IntField)
	}
}

func TestLookup(t *testing.T) {
	doc := map[string]any{
		"device": map[string]any{
			"uri":    "sim://",
			"serial": map[string]any{"baud": int64(115200)},
		},
		"top": "value",
	}

	tests := []struct {
		path   string
		want   any
		wantOK bool
	}{
		{"top", "value", true},
		{"device.uri", "sim://", true},
		{"device.serial.baud", int64(115200), true},
		{"missing", nil, false},
		{"device.missing", nil, false},
		{"top.child", nil, false},
	}
	for _, tt := range tests {
		got, ok := lookup(doc, tt.path)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("lookup(%q) = %v, %v; want %v, %v", tt.path, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestAssign(t *testing.T) {
	var s struct {
		Int      int
		Float    float64
		Duration time.Duration
		Name     string
	}
	v := reflect.ValueOf(&s).Elem()

	if err := assign(v.FieldByName("Int"), int64(42)); err != nil || s.Int != 42 {
		t.Errorf("Int = %d, err = %v", s.Int, err)
	}
	if err := assign(v.FieldByName("Float"), int64(3)); err != nil || s.Float != 3 {
		t.Errorf("Float = %v, err = %v", s.Float, err)
	}
	if err := assign(v.FieldByName("Duration"), int64(150)); err != nil || s.Duration != 150*time.Millisecond {
		t.Errorf("integer duration = %v, err = %v", s.Duration, err)
	}
	if err := assign(v.FieldByName("Duration"), "1m"); err != nil || s.Duration != time.Minute {
		t.Errorf("string duration = %v, err = %v", s.Duration, err)
	}

	wrong := []struct {
		field string
		raw   any
	}{
		{"Int", "forty"},
		{"Name", int64(1)},
		{"Duration", true},
		{"Duration", "soon"},
	}
	for _, w := range wrong {
		if err := assign(v.FieldByName(w.field), w.raw); err == nil {
			t.Errorf("assign(%s, %#v) should fail", w.field, w.raw)
		}
	}
}

func TestAssignString(t *testing.T) {
	var s struct {
		Bool  bool
		Float float64
		Slice []string
	}
	v := reflect.ValueOf(&s).Elem()

	if err := assignString(v.FieldByName("Bool"), "true"); err != nil || !s.Bool {
		t.Errorf("Bool = %v, err = %v", s.Bool, err)
	}
	if err := assignString(v.FieldByName("Float"), "0.5"); err != nil || s.Float != 0.5 {
		t.Errorf("Float = %v, err = %v", s.Float, err)
	}
	if err := assignString(v.FieldByName("Bool"), "maybe"); err == nil {
		t.Error("expected error for malformed bool")
	}
	if err := assignString(v.FieldByName("Slice"), " a , b , c "); err != nil || !reflect.DeepEqual(s.Slice, []string{"a", "b", "c"}) {
		t.Errorf("Slice = %v, err = %v", s.Slice, err)
	}
}

func TestLoadConfigWrongType(t *testing.T) {
	path := writeTemp(t, "config.toml", "[test]\nint_field = \"many\"\n")

	err := LoadConfig(&TestConfig{Config: path}, nil)
	if err == nil || !strings.Contains(err.Error(), "test.int_field") {
		t.Errorf("LoadConfig() error = %v, want mention of test.int_field", err)
	}
}

func TestLoadConfigNotStruct(t *testing.T) {
	var s string
	if err := LoadConfig(&s, nil); err == nil {
		t.Error("expected error for non-struct options")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	config := &TestConfig{Config: filepath.Join(t.TempDir(), "nonexistent.toml")}

	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for missing file: %v", err)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := writeTemp(t, "invalid.toml", `
[test
invalid toml syntax
`)

	if err := LoadConfig(&TestConfig{Config: path}, nil); err == nil {
		t.Fatalf("LoadConfig should fail for invalid TOML")
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := []struct {
		field, want string
	}{
		{"Port", "port"},
		{"LoggingLevel", "logging-level"},
		{"MQTTBroker", "mqtt-broker"},
		{"CORSOrigin", "cors-origin"},
		{"MetricsSSEInterval", "metrics-sse-interval"},
		{"MQTTQos", "mqtt-qos"},
		{"AuthUsername", "auth-username"},
	}
	for _, tt := range tests {
		if got := fieldNameToFlag(tt.field); got != tt.want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", tt.field, got, tt.want)
		}
	}
}
