package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vinayprograms/workcell/internal/jail"
)

// stringArg reads a string argument, tolerating non-string JSON values.
func stringArg(args map[string]interface{}, key, def string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func pathSchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// terminalTool runs a shell command in the workspace.
type terminalTool struct {
	jail    *jail.Jail
	timeout time.Duration
}

func (t *terminalTool) Name() string { return "terminal" }

func (t *terminalTool) Description() string {
	return "Execute a shell command in the project workspace. Use this to run code, install packages, or perform any terminal operation."
}

func (t *terminalTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "The shell command to execute",
			},
		},
		"required": []string{"command"},
	}
}

func (t *terminalTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	command := stringArg(args, "command", "")
	if command == "" {
		return Result{Success: false, Output: "No command provided"}, nil
	}

	res := t.jail.Execute(ctx, command, t.timeout)

	var parts []string
	if res.Stdout != "" {
		parts = append(parts, res.Stdout)
	}
	if res.Stderr != "" {
		parts = append(parts, "[stderr] "+res.Stderr)
	}
	output := "(no output)"
	if len(parts) > 0 {
		output = strings.Join(parts, "\n")
	}

	return Result{
		Success: res.ExitCode == 0,
		Output:  output,
		Data: map[string]interface{}{
			"command":     command,
			"return_code": res.ExitCode,
			"duration":    res.Duration.Seconds(),
		},
	}, nil
}

// writeFileTool creates or overwrites a file.
type writeFileTool struct {
	jail *jail.Jail
}

func (t *writeFileTool) Name() string { return "write_file" }

func (t *writeFileTool) Description() string {
	return "Create or overwrite a file in the project workspace. Use this to write code, configuration files, or any text content."
}

func (t *writeFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path":    pathSchema("File path relative to the workspace root (e.g., 'src/main.py', 'index.html')"),
			"content": pathSchema("The content to write to the file"),
		},
		"required": []string{"path", "content"},
	}
}

func (t *writeFileTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	path := stringArg(args, "path", "")
	content := stringArg(args, "content", "")
	if path == "" {
		return Result{Success: false, Output: "No file path provided"}, nil
	}

	rel := t.jail.Rel(path)
	var before string
	_, existed := t.jail.Stat(path)
	if existed {
		before, _ = t.jail.ReadFile(path)
	}

	msg, err := t.jail.WriteFile(path, content)
	if err != nil {
		return Result{Success: false, Output: err.Error(), Data: map[string]interface{}{"path": path}}, nil
	}

	data := map[string]interface{}{
		"path":    rel,
		"size":    len(content),
		"created": !existed,
	}
	if existed {
		added, removed := lineDelta(before, content)
		data["lines_added"] = added
		data["lines_removed"] = removed
	}
	return Result{Success: true, Output: msg, Data: data}, nil
}

// readFileTool returns a file's content.
type readFileTool struct {
	jail *jail.Jail
}

func (t *readFileTool) Name() string { return "read_file" }

func (t *readFileTool) Description() string {
	return "Read the contents of a file in the project workspace."
}

func (t *readFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": pathSchema("File path relative to the workspace root"),
		},
		"required": []string{"path"},
	}
}

func (t *readFileTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	path := stringArg(args, "path", "")
	if path == "" {
		return Result{Success: false, Output: "No file path provided"}, nil
	}
	content, err := t.jail.ReadFile(path)
	if err != nil {
		return Result{Success: false, Output: err.Error(), Data: map[string]interface{}{"path": path}}, nil
	}
	return Result{Success: true, Output: content, Data: map[string]interface{}{"path": path}}, nil
}

// listFilesTool lists a directory.
type listFilesTool struct {
	jail *jail.Jail
}

func (t *listFilesTool) Name() string { return "list_files" }

func (t *listFilesTool) Description() string {
	return "List files and directories in the project workspace."
}

func (t *listFilesTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Directory path relative to the workspace root. Defaults to root.",
				"default":     ".",
			},
		},
		"required": []string{},
	}
}

func (t *listFilesTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	files := t.jail.List(stringArg(args, "path", "."))
	if len(files) == 0 {
		return Result{
			Success: true,
			Output:  "(empty directory)",
			Data:    map[string]interface{}{"files": []jail.FileInfo{}},
		}, nil
	}

	lines := make([]string, 0, len(files))
	for _, f := range files {
		if f.IsDir {
			lines = append(lines, f.Name+"/")
		} else {
			lines = append(lines, fmt.Sprintf("%s %dB", f.Name, f.Size))
		}
	}
	return Result{
		Success: true,
		Output:  strings.Join(lines, "\n"),
		Data:    map[string]interface{}{"files": files},
	}, nil
}

// deleteFileTool removes a file or directory.
type deleteFileTool struct {
	jail *jail.Jail
}

func (t *deleteFileTool) Name() string { return "delete_file" }

func (t *deleteFileTool) Description() string {
	return "Delete a file or directory in the project workspace."
}

func (t *deleteFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": pathSchema("File or directory path to delete"),
		},
		"required": []string{"path"},
	}
}

func (t *deleteFileTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	path := stringArg(args, "path", "")
	if path == "" {
		return Result{Success: false, Output: "No path provided"}, nil
	}
	msg, err := t.jail.Delete(path)
	if err != nil {
		return Result{Success: false, Output: err.Error(), Data: map[string]interface{}{"path": path}}, nil
	}
	return Result{Success: true, Output: msg, Data: map[string]interface{}{"path": path}}, nil
}
