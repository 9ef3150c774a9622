package cmd

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/adpilot/adpilot/internal/core/engine"
	"github.com/adpilot/adpilot/internal/core/platform"
	apperrors "github.com/adpilot/adpilot/internal/errors"
)

// ExitWithCode logs msg and err with the foundry exit code metadata, then
// exits. A nil logger falls back to stderr.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		os.Exit(int(exitCode))
	}
	if logger == nil {
		ExitWithCodeStderr(exitCode, msg, err)
		return
	}

	fields := []zap.Field{
		zap.Int("exit_code", info.Code),
		zap.String("exit_name", info.Name),
		zap.String("exit_description", info.Description),
		zap.String("exit_category", info.Category),
	}
	if envelope, ok := err.(*errors.ErrorEnvelope); ok && envelope != nil {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("error_message", envelope.Message),
			zap.String("correlation_id", envelope.CorrelationID),
			zap.String("trace_id", envelope.TraceID),
		)
		if envelope.Context != nil {
			fields = append(fields, zap.Any("error_context", envelope.Context))
		}
		err = underlying(envelope)
	}
	logger.Error(msg, append(fields, zap.Error(err))...)

	os.Exit(info.Code)
}

// ExitWithCodeStderr is ExitWithCode for failures before the logger exists.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	fmt.Fprintln(os.Stderr, fatalLine(msg, err))

	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		os.Exit(int(exitCode))
	}
	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	os.Exit(info.Code)
}

func fatalLine(msg string, err error) string {
	if err == nil {
		return "FATAL: " + msg
	}
	envelope, ok := err.(*errors.ErrorEnvelope)
	if !ok || envelope == nil {
		return fmt.Sprintf("FATAL: %s: %v", msg, err)
	}

	line := fmt.Sprintf("FATAL: %s [%s]: %s (correlation: %s)", msg, envelope.Code, envelope.Message, envelope.CorrelationID)
	if cause := underlying(envelope); cause != error(envelope) {
		line += "\nUnderlying error: " + cause.Error()
	}
	return line
}

// underlying returns the envelope's original error, or the envelope itself.
func underlying(envelope *errors.ErrorEnvelope) error {
	if original, ok := envelope.Original.(error); ok && original != nil {
		return original
	}
	return envelope
}

// ExitForError maps a command failure to a semantic exit code and exits.
func ExitForError(err error) {
	ExitWithCodeStderr(exitCodeFor(err), "Command execution failed", err)
}

// exitCodeFor treats unknown platforms and invalid config as config errors
// and upstream call failures as an unavailable external service.
func exitCodeFor(err error) foundry.ExitCode {
	switch {
	case err == nil:
		return foundry.ExitFailure
	case stderrors.Is(err, platform.ErrUnknownPlatform):
		return foundry.ExitConfigInvalid
	}

	var callErr *engine.CallError
	if stderrors.As(err, &callErr) {
		return foundry.ExitExternalServiceUnavailable
	}

	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) && envelope.Code == apperrors.CodeConfigInvalid {
		return foundry.ExitConfigInvalid
	}
	return foundry.ExitFailure
}
