package conf

import (
	"fmt"
	"time"
)

// Duration reads "30s" style strings from config files.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type FontsConf struct {
	Paths        []string `json:"paths"`         // directories or files, relative to the app root
	IgnoreSystem bool     `json:"ignore_system"` // skip system font directories
}

// Template store types
const (
	TemplatesFS  = "fs"
	TemplatesKV  = "kv"
	TemplatesSQL = "sql"
)

type TemplatesConf struct {
	Type      string `json:"type"`       // fs (default), kv, sql
	Dir       string `json:"dir"`        // fs: defaults to <app_root>/templates
	KeyPrefix string `json:"key_prefix"` // kv
	Table     string `json:"table"`      // sql
	SQLDB     string `json:"sql_db"`     // sql: name in .sql-databases.json
}

// Backends
const (
	BackendBuiltin = "builtin"
	BackendTypst   = "typst"
)

type RenderConf struct {
	Backend       string   `json:"backend"`   // builtin (default) or typst
	TypstBin      string   `json:"typst_bin"` // typst backend executable
	Timeout       Duration `json:"timeout"`
	AcquireWait   Duration `json:"acquire_wait"`
	MaxConcurrent int64    `json:"max_concurrent"`
	JSONKey       string   `json:"json_key"`
	RealClock     bool     `json:"real_clock"` // datetime.today() reads the wall clock
}

// ThrottleConf enables per client IP throttling of the render routes when
// Burst is positive.
type ThrottleConf struct {
	Burst            int      `json:"burst"`
	Increment        int      `json:"increment"`
	Period           Duration `json:"period"`
	CleanupCycle     Duration `json:"cleanup_cycle"`
	CleanupOlderThan Duration `json:"cleanup_older_than"`
}

// AuthConf enables bearer token checks when PublicKeyPath is set. The path
// is a PEM file or a directory of <kid>_public.pem files.
type AuthConf struct {
	PublicKeyPath string `json:"public_key_path"`
}
