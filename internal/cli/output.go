package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed (validation, rejected import, failed migration)
	ExitCommandError = 2 // Command error (bad flags, config or storage unavailable)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code     int
	Message  string
	Err      error
	Reported bool // already written to the command output
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

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// IsReported reports whether err was already shown to the user.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format   string
	Writer   io.Writer
	Currency string
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status  string `json:"status"` // "ok" or "error"
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func newFormatter(opts *RootOptions, cmd *cobra.Command, currency string) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Currency: currency}
}

// Success writes data as JSON, or calls text to render it for humans.
func (f *OutputFormatter) Success(data any, text func(w io.Writer)) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Status: "ok", Data: data})
	}
	text(f.Writer)
	return nil
}

// Fail reports a failed operation and returns an ExitError for main.
func (f *OutputFormatter) Fail(message string, data any, err error) error {
	if f.Format == "json" {
		_ = json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "error", Data: data, Message: message})
	} else {
		fmt.Fprintf(f.Writer, "Error: %s\n", message)
	}
	exitErr := WrapExitError(ExitFailure, message, err)
	exitErr.Reported = true
	return exitErr
}

// Money formats an amount in the display currency.
func (f *OutputFormatter) Money(amount float64) string {
	return formatMoney(amount, f.Currency)
}

// formatMoney renders amount with the currency's symbol and fraction digits.
// Unknown currencies fall back to two decimals.
func formatMoney(amount float64, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return fmt.Sprintf("%.2f", amount)
	}
	minor := decimal.NewFromFloat(amount).Mul(decimal.New(1, int32(cur.Fraction))).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}

func formatShares(shares float64) string {
	return decimal.NewFromFloat(shares).StringFixed(2)
}

func formatPercent(p float64) string {
	return decimal.NewFromFloat(p).StringFixed(2) + "%"
}

// table writes tab separated rows aligned into columns.
func table(w io.Writer, headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}
