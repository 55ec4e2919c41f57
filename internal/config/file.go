package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a property file, choosing the parser by extension:
// .yaml/.yml/.json (YAML), .hcl (HCL attributes) or .ini/.properties
// (SeqWare key=value lines).
func LoadFile(path string) (MapSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", ".json":
		return parseYAML(data)
	case ".hcl":
		return parseHCL(data, path)
	case ".ini", ".properties", ".conf":
		return parseINI(data)
	default:
		return nil, fmt.Errorf("unsupported config file extension %q", ext)
	}
}

// parseYAML decodes a flat YAML mapping. Scalars are stringified the way
// they would have been written in an ini file.
func parseYAML(data []byte) (MapSource, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml config: %w", err)
	}

	m := make(MapSource, len(doc))
	for k, v := range doc {
		s, ok, err := scalarString(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		if ok {
			m[k] = s
		}
	}
	return m, nil
}

func scalarString(v any) (string, bool, error) {
	switch val := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return val, true, nil
	case bool:
		return strconv.FormatBool(val), true, nil
	case int:
		return strconv.Itoa(val), true, nil
	case int64:
		return strconv.FormatInt(val, 10), true, nil
	case uint64:
		return strconv.FormatUint(val, 10), true, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true, nil
	case time.Time:
		return val.Format(time.RFC3339), true, nil
	default:
		return "", false, fmt.Errorf("expected a scalar value, got %T", v)
	}
}

// parseHCL reads top-level attributes of an HCL file, e.g.
//
//	tmp_dir    = "/scratch/run1"
//	cnvkit_mem = 8
func parseHCL(data []byte, filename string) (MapSource, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse hcl config: %w", diags)
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("decode hcl config: %w", diags)
	}

	m := make(MapSource, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("key %q: %w", name, diags)
		}
		if val.IsNull() {
			continue
		}
		if !val.Type().IsPrimitiveType() {
			return nil, fmt.Errorf("key %q: expected a scalar value, got %s", name, val.Type().FriendlyName())
		}
		str, err := convert.Convert(val, cty.String)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", name, err)
		}
		m[name] = str.AsString()
	}
	return m, nil
}

// parseINI reads key=value lines. Blank lines, '#' or ';' comments and
// [section] headers are ignored.
func parseINI(data []byte) (MapSource, error) {
	m := make(MapSource)
	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: expected key=value", lineNo)
		}
		m[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ini config: %w", err)
	}
	return m, nil
}
