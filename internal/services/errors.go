package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSourceNotFound    = errors.New("source not found")
	ErrSourceParse       = errors.New("source parse error")
	ErrSchema            = errors.New("schema error")
	ErrTargetUnavailable = errors.New("target unavailable")
	ErrTargetConflict    = errors.New("target conflict")
	ErrTargetConfig      = errors.New("target configuration error")
	ErrTargetTimeout     = errors.New("target timeout")
)

// Kind names an error family of the translation taxonomy.
type Kind string

const (
	KindNone              Kind = ""
	KindSourceNotFound    Kind = "source_not_found"
	KindSourceParse       Kind = "source_parse"
	KindSchema            Kind = "schema"
	KindTargetUnavailable Kind = "target_unavailable"
	KindTargetConflict    Kind = "target_conflict"
	KindTargetConfig      Kind = "target_config"
	KindTargetTimeout     Kind = "target_timeout"
	KindInternal          Kind = "internal"
)

// Process exit codes reported by the CLI.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitSourceError  = 2
	ExitTargetError  = 3
	ExitSchemaError  = 4
	ExitTimeoutError = 5
)

var kindMarkers = []struct {
	kind   Kind
	marker error
}{
	{KindSourceNotFound, ErrSourceNotFound},
	{KindSourceParse, ErrSourceParse},
	{KindSchema, ErrSchema},
	{KindTargetUnavailable, ErrTargetUnavailable},
	{KindTargetConflict, ErrTargetConflict},
	{KindTargetConfig, ErrTargetConfig},
	{KindTargetTimeout, ErrTargetTimeout},
}

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		if err != nil {
			return fmt.Errorf("%s: %w", detail, err)
		}
		return errors.New(detail)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf classifies err against the taxonomy. Unknown errors report KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, km := range kindMarkers {
		if errors.Is(err, km.marker) {
			return km.kind
		}
	}
	return KindInternal
}

// MarkerFor returns the sentinel error for kind, or nil for unknown kinds.
func MarkerFor(kind Kind) error {
	for _, km := range kindMarkers {
		if km.kind == kind {
			return km.marker
		}
	}
	return nil
}

// ExitCode maps err to the CLI exit status.
func ExitCode(err error) int {
	switch KindOf(err) {
	case KindNone:
		return ExitOK
	case KindSourceNotFound, KindSourceParse:
		return ExitSourceError
	case KindSchema:
		return ExitSchemaError
	case KindTargetTimeout:
		return ExitTimeoutError
	case KindTargetUnavailable, KindTargetConflict, KindTargetConfig:
		return ExitTargetError
	default:
		return ExitFailure
	}
}

// ExitLabel is the user-facing error family for an exit code.
func ExitLabel(code int) string {
	switch code {
	case ExitOK:
		return "ok"
	case ExitSourceError:
		return "SourceError"
	case ExitTargetError:
		return "TargetError"
	case ExitSchemaError:
		return "SchemaError"
	case ExitTimeoutError:
		return "TimeoutError"
	default:
		return "Error"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "translation failure"
	}
	return strings.Join(parts, ": ")
}
