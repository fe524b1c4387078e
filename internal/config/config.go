package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "ILLUMINODE_"

var durationType = reflect.TypeFor[time.Duration]()

// binding ties one options field to its TOML path and env key.
type binding struct {
	flag  string
	toml  string
	env   string
	value reflect.Value
}

// LoadConfig fills opts from the TOML file named by its Config field and from
// ILLUMINODE_* environment variables, env winning over the file. Fields whose
// flag was set on cmd are left alone. A missing file is not an error.
func LoadConfig(opts any, cmd *cobra.Command) error {
	rv := reflect.ValueOf(opts)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: want pointer to struct, got %T", opts)
	}

	bindings, configPath := bind(rv.Elem(), changedFlags(cmd))

	if configPath != "" {
		doc, err := readTOML(configPath)
		if err != nil {
			return err
		}
		for _, b := range bindings {
			if b.toml == "" {
				continue
			}
			raw, ok := lookup(doc, b.toml)
			if !ok {
				continue
			}
			if err := assign(b.value, raw); err != nil {
				return fmt.Errorf("%s: %s: %w", configPath, b.toml, err)
			}
		}
	}

	for _, b := range bindings {
		if b.env == "" {
			continue
		}
		s, ok := os.LookupEnv(EnvPrefix + b.env)
		if !ok || s == "" {
			continue
		}
		if err := assignString(b.value, s); err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, b.env, err)
		}
	}
	return nil
}

func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := make(map[string]bool)
	if cmd == nil {
		return changed
	}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			changed[f.Name] = true
		}
	})
	return changed
}

// bind lists the settable fields of v that were not set on the command line,
// and returns the value of the Config field.
func bind(v reflect.Value, skip map[string]bool) ([]binding, string) {
	var (
		out        []binding
		configPath string
	)
	t := v.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Name == "Config" && f.Type.Kind() == reflect.String {
			configPath = v.Field(i).String()
			continue
		}
		b := binding{
			flag:  fieldNameToFlag(f.Name),
			toml:  f.Tag.Get("toml"),
			env:   f.Tag.Get("env"),
			value: v.Field(i),
		}
		if skip[b.flag] {
			continue
		}
		out = append(out, b)
	}
	return out, configPath
}

func readTOML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return doc, nil
}

// fieldNameToFlag converts a struct field name to a CLI flag name.
// Acronyms stay one word, matching humacli flag names.
// Example: "LoggingLevel" -> "logging-level", "MQTTBroker" -> "mqtt-broker".
func fieldNameToFlag(fieldName string) string {
	runes := []rune(fieldName)
	var sb strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			afterLower := !unicode.IsUpper(runes[i-1])
			beforeLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if afterLower || beforeLower {
				sb.WriteByte('-')
			}
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}

// lookup walks a dotted path such as "mqtt.broker" through nested tables.
func lookup(doc map[string]any, path string) (any, bool) {
	keys := strings.Split(path, ".")
	table := doc
	for _, key := range keys[:len(keys)-1] {
		next, ok := table[key].(map[string]any)
		if !ok {
			return nil, false
		}
		table = next
	}
	v, ok := table[keys[len(keys)-1]]
	return v, ok
}

// assign stores a decoded TOML value. Durations accept a duration string or
// an integer number of milliseconds.
func assign(field reflect.Value, raw any) error {
	if !field.CanSet() {
		return nil
	}

	if field.Type() == durationType {
		switch d := raw.(type) {
		case string:
			return assignString(field, d)
		case int64:
			field.SetInt(int64(time.Duration(d) * time.Millisecond))
			return nil
		}
		return fmt.Errorf("want duration, got %T", raw)
	}

	switch field.Kind() {
	case reflect.String:
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("want string, got %T", raw)
		}
		field.SetString(s)
	case reflect.Bool:
		b, ok := raw.(bool)
		if !ok {
			return fmt.Errorf("want bool, got %T", raw)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		i, ok := raw.(int64)
		if !ok {
			return fmt.Errorf("want integer, got %T", raw)
		}
		field.SetInt(i)
	case reflect.Float64:
		switch f := raw.(type) {
		case float64:
			field.SetFloat(f)
		case int64:
			field.SetFloat(float64(f))
		default:
			return fmt.Errorf("want number, got %T", raw)
		}
	case reflect.Slice:
		items, ok := raw.([]any)
		if !ok || field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("want string array, got %T", raw)
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("want string array element, got %T", item)
			}
			out = append(out, s)
		}
		field.Set(reflect.ValueOf(out))
	}
	return nil
}

// assignString parses an environment value into field. Slices are
// comma-separated.
func assignString(field reflect.Value, s string) error {
	if !field.CanSet() {
		return nil
	}

	if field.Type() == durationType {
		d, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	case reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Slice:
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	}
	return nil
}
