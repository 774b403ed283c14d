// Package scripttool exposes the script store and sandbox engine as registry tools:
// js_function_save persists a JavaScript function, js_function_exec runs a stored
// function with JSON parameters, js_function_list enumerates stored functions.
//
// Every failure is reported as a structured JSON envelope in the tool result;
// nothing raises past the tool boundary.
package scripttool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/funcbox/funcbox"
	"github.com/funcbox/funcbox/jsengine"
	"github.com/funcbox/funcbox/scriptstore"
)

// codePreviewLimit caps how much of a rejected function_code is echoed back.
const codePreviewLimit = 100

// Toolkit builds the script tools over a shared store and engine.
type Toolkit struct {
	store  *scriptstore.Store
	engine *jsengine.Engine
}

// New creates a Toolkit. store must be non-nil; engine may be nil, in which case
// js_function_exec reports the engine as unavailable instead of executing.
func New(store *scriptstore.Store, engine *jsengine.Engine) (*Toolkit, error) {
	if store == nil {
		return nil, fmt.Errorf("scripttool: store must not be nil")
	}
	return &Toolkit{store: store, engine: engine}, nil
}

// Tools returns the save, exec, and list tools, ready for Registry.Register.
func (k *Toolkit) Tools() ([]funcbox.Tool, error) {
	save, err := k.saveTool()
	if err != nil {
		return nil, err
	}
	exec, err := k.execTool()
	if err != nil {
		return nil, err
	}
	list, err := k.listTool()
	if err != nil {
		return nil, err
	}
	return []funcbox.Tool{save, exec, list}, nil
}

// saveResponse is the envelope for js_function_save. On failure Success is false,
// Error is set, and FunctionCode echoes a truncated preview of the rejected code.
type saveResponse struct {
	Success      bool   `json:"success"`
	FunctionName string `json:"function_name"`
	FilePath     string `json:"file_path,omitempty"`
	Message      string `json:"message,omitempty"`
	Error        string `json:"error,omitempty"`
	FunctionCode string `json:"function_code,omitempty"`
}

type saveRequest struct {
	FunctionName string `json:"function_name"`
	FunctionCode string `json:"function_code"`
}

func (k *Toolkit) saveTool() (funcbox.Tool, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"function_name": map[string]any{
				"type":        "string",
				"description": "Name of the JavaScript function (letters, digits, underscore, hyphen). Must match the declared function name in the code.",
			},
			"function_code": map[string]any{
				"type":        "string",
				"description": "JavaScript source declaring exactly one function named like function_name. Arrow functions are not accepted.",
			},
		},
		"required": []any{"function_name", "function_code"},
	}
	return funcbox.NewDynamicTool(
		"js_function_save",
		"Save a JavaScript function to the script store for later execution with js_function_exec.",
		schema,
		func(_ context.Context, argsJSON []byte) ([]byte, error) {
			var req saveRequest
			if err := json.Unmarshal(argsJSON, &req); err != nil {
				return marshalEnvelope(saveResponse{Error: "invalid request: " + err.Error()})
			}
			name := strings.TrimSpace(req.FunctionName)
			code := strings.TrimSpace(req.FunctionCode)
			if name == "" {
				return marshalEnvelope(saveResponse{Error: "function_name is required"})
			}
			if code == "" {
				return marshalEnvelope(saveResponse{FunctionName: name, Error: "function_code is required"})
			}
			if !strings.Contains(code, "function "+name) {
				return marshalEnvelope(saveResponse{
					FunctionName: name,
					Error:        fmt.Sprintf("function code must contain a declared function named %s; arrow functions are not allowed", name),
					FunctionCode: previewCode(code),
				})
			}
			path, err := k.store.Save(name, code)
			if err != nil {
				return marshalEnvelope(saveResponse{
					FunctionName: name,
					Error:        err.Error(),
					FunctionCode: previewCode(code),
				})
			}
			return marshalEnvelope(saveResponse{
				Success:      true,
				FunctionName: name,
				FilePath:     path,
				Message:      fmt.Sprintf("Function %q saved successfully", name),
			})
		},
	)
}

// execResponse is the envelope for js_function_exec. Result, Console, and Error are
// always present: Error is "" on success, Result is null on failure. FunctionName
// and Parameters echo the request only on failure.
type execResponse struct {
	Result       any    `json:"result"`
	Console      string `json:"console"`
	Error        string `json:"error"`
	FunctionName string `json:"function_name,omitempty"`
	Parameters   string `json:"parameters,omitempty"`
}

type execRequest struct {
	FunctionName string `json:"function_name"`
	Parameters   string `json:"parameters"`
}

func (k *Toolkit) execTool() (funcbox.Tool, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"function_name": map[string]any{
				"type":        "string",
				"description": "Name of the stored function to execute.",
			},
			"parameters": map[string]any{
				"type": "string",
				"description": "JSON-encoded object of named parameters. Values are passed positionally " +
					"in ascending alphabetical key order, so key names must sort in the function's declared parameter order.",
			},
		},
		"required": []any{"function_name", "parameters"},
	}
	return funcbox.NewDynamicTool(
		"js_function_exec",
		"Execute a stored JavaScript function. Returns {result, console, error}: the function's "+
			"return value, captured console output, and an error message (empty on success).",
		schema,
		func(ctx context.Context, argsJSON []byte) ([]byte, error) {
			var req execRequest
			if err := json.Unmarshal(argsJSON, &req); err != nil {
				return marshalEnvelope(execResponse{Error: "invalid request: " + err.Error()})
			}
			name := strings.TrimSpace(req.FunctionName)
			paramsJSON := strings.TrimSpace(req.Parameters)
			if name == "" {
				return marshalEnvelope(execResponse{Error: "no function name provided"})
			}
			if paramsJSON == "" {
				return marshalEnvelope(execResponse{FunctionName: name, Error: "no parameters provided"})
			}
			if k.engine == nil {
				return marshalEnvelope(execResponse{
					Error:        "script engine is not available in this deployment",
					FunctionName: name,
					Parameters:   req.Parameters,
				})
			}
			var params map[string]any
			if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
				return marshalEnvelope(execResponse{
					Error:        "invalid JSON in parameters: " + err.Error(),
					FunctionName: name,
					Parameters:   req.Parameters,
				})
			}
			source, err := k.store.Load(name)
			if err != nil {
				return marshalEnvelope(execResponse{
					Error:        err.Error(),
					FunctionName: name,
					Parameters:   req.Parameters,
				})
			}
			args, _ := jsengine.PositionalArgs(params)
			res := k.engine.Run(ctx, source, name, args)
			if res.Error != "" {
				return marshalEnvelope(execResponse{
					Result:       nil,
					Console:      res.Console,
					Error:        res.Error,
					FunctionName: name,
					Parameters:   req.Parameters,
				})
			}
			return marshalEnvelope(execResponse{Result: res.Value, Console: res.Console})
		},
	)
}

// listResponse is the envelope for js_function_list.
type listResponse struct {
	Message   string   `json:"message"`
	Functions []string `json:"functions"`
	Error     string   `json:"error,omitempty"`
}

func (k *Toolkit) listTool() (funcbox.Tool, error) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	return funcbox.NewDynamicTool(
		"js_function_list",
		"List the names of all stored JavaScript functions.",
		schema,
		func(_ context.Context, _ []byte) ([]byte, error) {
			names, err := k.store.List()
			if err != nil {
				return marshalEnvelope(listResponse{Error: err.Error(), Functions: []string{}})
			}
			if names == nil {
				names = []string{}
			}
			return marshalEnvelope(listResponse{
				Message:   fmt.Sprintf("found %d saved function(s)", len(names)),
				Functions: names,
			})
		},
	)
}

func previewCode(code string) string {
	if len(code) > codePreviewLimit {
		return code[:codePreviewLimit] + "..."
	}
	return code
}

// marshalEnvelope encodes the envelope and never surfaces an error to the registry:
// the envelope types marshal unconditionally.
func marshalEnvelope(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"error":"internal encoding failure"}`), nil
	}
	return b, nil
}
