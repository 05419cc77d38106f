package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"pmt/internal/fileutil"
	"pmt/internal/project"
	"pmt/internal/services"
	"pmt/internal/writer"
)

// EnvBridgeArgs carries writer arguments to the bridge running inside the
// target host, one key=value pair per line.
const EnvBridgeArgs = "PMT_BRIDGE_ARGS"

// BridgeResult is the document the bridge leaves for the connector.
type BridgeResult struct {
	Result *writer.Result `json:"result,omitempty"`
	Error  *BridgeError   `json:"error,omitempty"`
}

// BridgeError is a writer failure reported across the process boundary.
type BridgeError struct {
	Kind    services.Kind `json:"kind"`
	Message string        `json:"message"`
}

// BridgeRequest describes one writer invocation inside the target host.
type BridgeRequest struct {
	Writer      writer.Writer
	ProjectFile string
	ResultFile  string
	Args        services.Args
}

// RunBridge loads the serialized project, runs the writer, and records the
// outcome in the result file. The writer error is returned as well.
func RunBridge(ctx context.Context, req BridgeRequest) (*writer.Result, error) {
	if req.ResultFile == "" {
		return nil, errors.New("bridge: result file is required")
	}
	p, err := project.ReadFile(req.ProjectFile)
	var result *writer.Result
	if err == nil {
		result, err = req.Writer.Write(ctx, p, req.Args)
	}
	if writeErr := WriteBridgeResult(req.ResultFile, result, err); writeErr != nil {
		return result, errors.Join(err, writeErr)
	}
	return result, err
}

// WriteBridgeResult records result, or err when it is non-nil.
func WriteBridgeResult(path string, result *writer.Result, err error) error {
	doc := BridgeResult{Result: result}
	if err != nil {
		doc = BridgeResult{Error: &BridgeError{Kind: services.KindOf(err), Message: err.Error()}}
	}
	data, marshalErr := json.MarshalIndent(doc, "", "  ")
	if marshalErr != nil {
		return fmt.Errorf("encode bridge result: %w", marshalErr)
	}
	if writeErr := fileutil.WriteFileAtomic(path, data, 0o644); writeErr != nil {
		return fmt.Errorf("write bridge result: %w", writeErr)
	}
	return nil
}

// ReadBridgeResult loads a result file. A reported writer failure is returned
// as an error of the same kind. A missing file reports
// services.ErrTargetUnavailable.
func ReadBridgeResult(path string) (*writer.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrTargetUnavailable, "connector", "bridge result",
				"target host exited without writing "+path, nil)
		}
		return nil, fmt.Errorf("read bridge result: %w", err)
	}
	var doc BridgeResult
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, services.Wrap(services.ErrTargetUnavailable, "connector", "bridge result", "malformed result file", err)
	}
	if doc.Error != nil {
		return nil, services.Wrap(services.MarkerFor(doc.Error.Kind), "target host", "writer", doc.Error.Message, nil)
	}
	if doc.Result == nil {
		return nil, services.Wrap(services.ErrTargetUnavailable, "connector", "bridge result", "result file is empty", nil)
	}
	return doc.Result, nil
}

func encodeBridgeArgs(args services.Args) string {
	return strings.Join(args.Pairs(), "\n")
}

// DecodeBridgeArgs parses the value of EnvBridgeArgs.
func DecodeBridgeArgs(value string) (services.Args, error) {
	var pairs []string
	for _, line := range strings.Split(value, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			pairs = append(pairs, line)
		}
	}
	return services.ParseArgs(pairs)
}
