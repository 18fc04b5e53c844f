package format

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/babelcloud/navwalk/pkg/logger"
)

// APIEndpoint represents an API endpoint
type APIEndpoint struct {
	Method      string
	Path        string
	Description string
}

// FormatHTTPMethod returns a colored and bold HTTP method string
func FormatHTTPMethod(method string) string {
	switch method {
	case "GET":
		return color.New(color.Bold, color.FgGreen).Sprint(method)
	case "POST":
		return color.New(color.Bold, color.FgYellow).Sprint(method)
	case "PUT":
		return color.New(color.Bold, color.FgBlue).Sprint(method)
	case "DELETE":
		return color.New(color.Bold, color.FgRed).Sprint(method)
	default:
		return color.New(color.Bold).Sprint(method)
	}
}

// FormatOutcome returns a colored walkthrough outcome
func FormatOutcome(outcome string) string {
	switch outcome {
	case "passed":
		return color.New(color.Bold, color.FgGreen).Sprint(outcome)
	case "failed":
		return color.New(color.Bold, color.FgRed).Sprint(outcome)
	case "unreachable":
		return color.New(color.Bold, color.FgMagenta).Sprint(outcome)
	default:
		return color.New(color.Bold).Sprint(outcome)
	}
}

// FormatDuration rounds d for display
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}

// LogAPIEndpoint logs an API endpoint with consistent formatting
func LogAPIEndpoint(logger *logger.Logger, endpoint APIEndpoint) {
	// Using tabs for alignment since ANSI color codes don't affect tab stops
	logger.Info("  %s\t\t%s\t\t%s",
		FormatHTTPMethod(endpoint.Method),
		endpoint.Path,
		endpoint.Description,
	)
}

// LogAPIEndpoints logs a header and a list of API endpoints
func LogAPIEndpoints(logger *logger.Logger, endpoints []APIEndpoint) {
	logger.Info("API endpoints:")
	for _, endpoint := range endpoints {
		LogAPIEndpoint(logger, endpoint)
	}
}
