package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/chaifeng/ghri/internal/platform"
)

// Parser evaluates a Lua config file in a sandboxed VM with the detected
// platform exposed as a read-only global, so configs can say things like
//
//	ghri = {
//	  root = "/opt/tools",
//	  filters = { platform.is_linux and "*musl*" or nil },
//	}
type Parser struct {
	detector platform.Detector
}

// NewParser creates a config parser with the given platform detector.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector}
}

// ParseError represents a config parsing error with a friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// ParseFile loads settings from a Lua config file. A missing file is not
// an error and yields nil settings.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return p.ParseString(ctx, string(data))
}

// ParseString parses a Lua config from a string.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Settings, error) {
	L := newSandboxedVM()
	defer L.Close()

	if p.detector != nil {
		info, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, info); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(luaCode); err != nil {
		return nil, &ParseError{
			Message: "Lua syntax error",
			Detail:  err.Error(),
		}
	}

	return extractSettings(L)
}

// extractSettings reads the global "ghri" table from a Lua state.
func extractSettings(L *lua.LState) (*Settings, error) {
	root := L.GetGlobal("ghri")
	if root.Type() == lua.LTNil {
		return nil, nil
	}
	if root.Type() != lua.LTTable {
		return nil, &ParseError{
			Message: "missing or invalid 'ghri' table",
			Detail:  fmt.Sprintf("expected table, got %s", root.Type()),
		}
	}

	table := root.(*lua.LTable)
	s := &Settings{}

	if v := table.RawGetString("root"); v.Type() == lua.LTString {
		s.Root = expandHome(v.String())
	}
	if v := table.RawGetString("api_url"); v.Type() == lua.LTString {
		s.APIURL = strings.TrimRight(v.String(), "/")
	}
	if v := table.RawGetString("token"); v.Type() == lua.LTString {
		s.Token = v.String()
	}
	if v := table.RawGetString("keyring"); v.Type() == lua.LTString {
		s.Keyring = expandHome(v.String())
	}

	if v := table.RawGetString("filters"); v.Type() == lua.LTTable {
		v.(*lua.LTable).ForEach(func(_, value lua.LValue) {
			// Nil entries come from platform conditionals and are skipped.
			if value.Type() == lua.LTString {
				s.Filters = append(s.Filters, value.String())
			}
		})
	}

	if v := table.RawGetString("log"); v.Type() == lua.LTTable {
		logTable := v.(*lua.LTable)
		if fv := logTable.RawGetString("file"); fv.Type() == lua.LTString {
			s.LogFile = expandHome(fv.String())
		}
		if lv := logTable.RawGetString("level"); lv.Type() == lua.LTString {
			s.LogLevel = lv.String()
		}
	}

	return s, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return home + path[1:]
		}
	}
	return path
}
