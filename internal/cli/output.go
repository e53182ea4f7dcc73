package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/factbase/internal/fact"
	"github.com/roach88/factbase/internal/pred"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // A judge failed or a run stopped on an error
	ExitCommandError = 2 // Command error (bad config, database not found, etc.)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Response is the JSON envelope of every command's output.
type Response struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *ErrorOut `json:"error,omitempty"` // error details
}

// ErrorOut is the error structure for JSON responses.
type ErrorOut struct {
	Code    string `json:"code"`    // "E001", "E101", etc.
	Message string `json:"message"` // human-readable message
}

// Success outputs a result. Text output prints text; JSON output wraps
// data in a Response.
func (f *OutputFormatter) Success(text string, data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, text)
	return err
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{
			Status: "error",
			Error:  &ErrorOut{Code: code, Message: message},
		})
	}
	_, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	return err
}

// FactOut is the JSON form of a fact: values keep their kind so the
// output can be fed back into predicates.
type FactOut struct {
	ID    int64               `json:"id"`
	Attrs map[string][]string `json:"attrs"`
}

// Facts outputs facts, one per line in text mode as id followed by
// name=value pairs in attribute order.
func (f *OutputFormatter) Facts(facts []*fact.Fact) error {
	if f.Format == "json" {
		out := make([]FactOut, 0, len(facts))
		for _, ft := range facts {
			fo := FactOut{ID: ft.ID(), Attrs: make(map[string][]string)}
			for _, n := range ft.Names() {
				for _, v := range ft.Get(n) {
					fo.Attrs[n] = append(fo.Attrs[n], pred.FormatValue(v))
				}
			}
			out = append(out, fo)
		}
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: out})
	}
	for _, ft := range facts {
		if _, err := fmt.Fprintf(f.Writer, "%d %s\n", ft.ID(), ft.String()); err != nil {
			return err
		}
	}
	return nil
}
