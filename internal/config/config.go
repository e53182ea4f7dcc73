package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaCUE string

// Environment variables that override the file.
const (
	EnvDB = "FACTBASE_DB"
)

// Config is a decoded run configuration.
type Config struct {
	DB           string   `json:"db"`
	Repositories string   `json:"repositories"`
	GitHub       GitHub   `json:"github"`
	Lifetime     string   `json:"lifetime"`
	Timeout      string   `json:"timeout"`
	Seed         *uint64  `json:"seed,omitempty"`
	Repeat       int      `json:"repeat"`
	MaxSteps     int      `json:"max_steps"`
	Judges       []string `json:"judges"`
	Rules        string   `json:"rules,omitempty"`

	// Token is read from the GitHub.TokenEnv variable, never from the file.
	Token string `json:"-"`
}

// GitHub configures the GitHub client.
type GitHub struct {
	TokenEnv     string  `json:"token_env"`
	BaseURL      string  `json:"base_url"`
	Rate         float64 `json:"rate"`
	Burst        int     `json:"burst"`
	MinRemaining int     `json:"min_remaining"`
}

// LifetimeDuration parses Lifetime. Empty is zero.
func (c *Config) LifetimeDuration() (time.Duration, error) {
	return parseDuration("lifetime", c.Lifetime)
}

// TimeoutDuration parses Timeout. Empty is zero.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	return parseDuration("timeout", c.Timeout)
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("%s: %v", field, err)}
	}
	if d < 0 {
		return 0, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("%s: negative duration %s", field, s)}
	}
	return d, nil
}

// LoadError represents an error that occurred during config loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants.
const (
	ErrCodeNotFound   = "E005" // Path not found
	ErrCodeBuild      = "E006" // CUE build failed
	ErrCodeInvalid    = "E101" // Config does not satisfy the schema
	ErrCodeDecode     = "E102" // Config could not be decoded
	ErrCodeSchema     = "E103" // Embedded schema is broken
	ErrCodeNoJudges   = "E104" // Judge list is empty
)

// Default returns the configuration of an empty file.
func Default() (*Config, error) {
	return Parse("", nil)
}

// Load reads a CUE file, validates it against the schema and applies
// environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error reading config: %v", err)}
	}
	cfg, err := Parse(filepath.Base(path), data)
	if err != nil {
		return nil, err
	}
	// relative rule files are relative to the config
	if cfg.Rules != "" && !filepath.IsAbs(cfg.Rules) {
		cfg.Rules = filepath.Join(filepath.Dir(path), cfg.Rules)
	}
	return cfg, nil
}

// Parse validates CUE source against the schema and decodes it. name is
// used in error positions.
func Parse(name string, data []byte) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeSchema, Message: err.Error()}
	}

	value := ctx.CompileBytes(data, cue.Filename(name))
	if err := value.Err(); err != nil {
		return nil, formatCUEError(ErrCodeBuild, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(ErrCodeInvalid, err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, formatCUEError(ErrCodeDecode, err)
	}
	if len(cfg.Judges) == 0 {
		return nil, &LoadError{Code: ErrCodeNoJudges, Message: "no judges configured", Pos: value.Pos()}
	}

	if v := os.Getenv(EnvDB); v != "" {
		cfg.DB = v
	}
	cfg.Token = os.Getenv(cfg.GitHub.TokenEnv)

	if _, err := cfg.LifetimeDuration(); err != nil {
		return nil, err
	}
	if _, err := cfg.TimeoutDuration(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(code string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}

	// Return first error with position info
	first := errs[0]
	le := &LoadError{Code: code, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
