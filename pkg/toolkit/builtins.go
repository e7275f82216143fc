package toolkit

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/loopwright/koru/pkg/index"
	"github.com/loopwright/koru/pkg/ioerr"
	"github.com/loopwright/koru/pkg/toolkit/normalize"
)

// NewCorePack builds the filesystem, search, shell and reporting tools
// every run needs, sandboxed to workDir. tier drives fs_read's
// adaptive window sizing (normalize.TierSmall/Medium/Large).
func NewCorePack(workDir string, tier normalize.Tier) *Pack {
	history := normalize.NewReadHistory()
	pack := NewPack("core", "", PolicyError, 0, WithPermissions(&Permissions{
		AllowedPathRoots: []string{workDir},
	}))

	pack.AddTool(fsReadTool(workDir, tier, history))
	pack.AddTool(fsWriteTool(workDir))
	pack.AddTool(fsEditTool(workDir))
	pack.AddTool(fsListTool(workDir))
	pack.AddTool(searchTool(workDir))
	pack.AddTool(findTool(workDir))
	pack.AddTool(shellExecTool(workDir))
	pack.AddTool(reportTool())
	return pack
}

// NewBrowserPack builds the chromedp-backed browser_inspect tool, used
// to check the rendered result of a web-facing change against a live
// page instead of trusting the markup alone.
func NewBrowserPack() *Pack {
	pack := NewPack("browser", "", PolicyError, 0)
	pack.AddTool(browserInspectTool())
	return pack
}

func resolvePath(workDir, path string) (string, error) {
	if path == "" {
		path = "."
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(workDir, abs)
	}
	abs = filepath.Clean(abs)
	rel, err := filepath.Rel(workDir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ioerr.New(ioerr.CodePathDenied, "path escapes the working directory: "+path)
	}
	return abs, nil
}

func fsReadTool(workDir string, tier normalize.Tier, history *normalize.ReadHistory) Tool {
	return Tool{
		Name:       "fs_read",
		ReadOnly:   true,
		Capability: CapFilesystem,
		Schema: Schema{
			Properties: map[string]Property{
				"path":   {Kind: KindString, Description: "file path relative to the working directory"},
				"offset": {Kind: KindNumber, Description: "1-indexed starting line"},
				"limit":  {Kind: KindNumber, Description: "maximum lines to return"},
			},
			Required: []string{"path"},
		},
		Exec: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			path, _ := input["path"].(string)
			req := normalize.ReadRequest{
				Path:   path,
				Offset: intArg(input, "offset"),
				Limit:  intArg(input, "limit"),
			}
			if _, err := resolvePath(workDir, path); err != nil {
				return nil, err
			}
			exists := func(p string) bool {
				candidate, rerr := resolvePath(workDir, p)
				if rerr != nil {
					return false
				}
				_, statErr := os.Stat(candidate)
				return statErr == nil
			}
			plan, err := history.NormalizeRead(tier, req, exists, exists)
			if err != nil {
				return nil, err
			}
			resolvedAbs, err := resolvePath(workDir, plan.Path)
			if err != nil {
				return nil, err
			}

			raw, err := os.ReadFile(resolvedAbs)
			if err != nil {
				return nil, ioerr.Newf(ioerr.CodeExecutionError, "read %s: %v", path, err).WithRetryable(true)
			}
			lines := strings.Split(string(raw), "\n")
			history.RecordKnownSize(plan.Path, len(lines))

			start := plan.Offset - 1
			if start < 0 {
				start = 0
			}
			if start > len(lines) {
				start = len(lines)
			}
			end := start + plan.Limit
			if end > len(lines) {
				end = len(lines)
			}

			var b strings.Builder
			for i := start; i < end; i++ {
				b.WriteString(strconv.Itoa(i + 1))
				b.WriteByte('\t')
				b.WriteString(lines[i])
				b.WriteByte('\n')
			}

			return map[string]any{
				"content":     b.String(),
				"total_lines": len(lines),
				"start_line":  start + 1,
				"end_line":    end,
			}, nil
		},
	}
}

func fsWriteTool(workDir string) Tool {
	return Tool{
		Name:       "fs_write",
		Capability: CapFilesystem,
		Schema: Schema{
			Properties: map[string]Property{
				"path":    {Kind: KindString, Description: "file path relative to the working directory"},
				"content": {Kind: KindString, Description: "full file content to write"},
			},
			Required: []string{"path", "content"},
		},
		Exec: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			path, _ := input["path"].(string)
			content, _ := input["content"].(string)
			abs, err := resolvePath(workDir, path)
			if err != nil {
				return nil, err
			}
			if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
				return nil, ioerr.Newf(ioerr.CodeExecutionError, "mkdir for %s: %v", path, err)
			}
			if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
				return nil, ioerr.Newf(ioerr.CodeExecutionError, "write %s: %v", path, err).WithRetryable(true)
			}
			return map[string]any{"path": path, "bytes_written": len(content)}, nil
		},
	}
}

func fsEditTool(workDir string) Tool {
	return Tool{
		Name:       "fs_edit",
		Capability: CapFilesystem,
		Schema: Schema{
			Properties: map[string]Property{
				"path":        {Kind: KindString, Description: "file path relative to the working directory"},
				"old_string":  {Kind: KindString, Description: "exact text to replace, must be unique in the file unless replace_all is set"},
				"new_string":  {Kind: KindString, Description: "replacement text"},
				"replace_all": {Kind: KindBoolean, Description: "replace every occurrence instead of requiring uniqueness"},
			},
			Required: []string{"path", "old_string", "new_string"},
		},
		Exec: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			path, _ := input["path"].(string)
			oldString, _ := input["old_string"].(string)
			newString, _ := input["new_string"].(string)
			replaceAll, _ := input["replace_all"].(bool)

			abs, err := resolvePath(workDir, path)
			if err != nil {
				return nil, err
			}
			raw, err := os.ReadFile(abs)
			if err != nil {
				return nil, ioerr.Newf(ioerr.CodeExecutionError, "read %s: %v", path, err).WithRetryable(true)
			}
			content := string(raw)
			count := strings.Count(content, oldString)
			if count == 0 {
				return nil, ioerr.New(ioerr.CodeSchemaValidationFail, "old_string not found in "+path).
					WithHint("re-read the file; the content may have changed")
			}
			if count > 1 && !replaceAll {
				return nil, ioerr.New(ioerr.CodeSchemaValidationFail, "old_string is not unique in "+path).
					WithHint("include more surrounding context, or set replace_all")
			}

			replacements := 1
			if replaceAll {
				replacements = count
			}
			updated := strings.Replace(content, oldString, newString, replacements)
			if err := os.WriteFile(abs, []byte(updated), 0o644); err != nil {
				return nil, ioerr.Newf(ioerr.CodeExecutionError, "write %s: %v", path, err).WithRetryable(true)
			}
			return map[string]any{"path": path, "replacements": replacements}, nil
		},
	}
}

func fsListTool(workDir string) Tool {
	return Tool{
		Name:       "fs_list",
		ReadOnly:   true,
		Capability: CapFilesystem,
		Schema: Schema{
			Properties: map[string]Property{
				"directory": {Kind: KindString, Description: "directory relative to the working directory"},
			},
		},
		Exec: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			dirArg, _ := input["directory"].(string)
			dir := normalize.ResolveSearchDirectory(workDir, dirArg, func(p string) bool {
				info, err := os.Stat(p)
				return err == nil && !info.IsDir()
			})
			abs, err := resolvePath(workDir, dir)
			if err != nil {
				return nil, err
			}
			entries, err := os.ReadDir(abs)
			if err != nil {
				return nil, ioerr.Newf(ioerr.CodeExecutionError, "list %s: %v", dir, err)
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			sort.Strings(names)
			return map[string]any{"directory": dir, "entries": names}, nil
		},
	}
}

func searchTool(workDir string) Tool {
	return Tool{
		Name:       "search",
		ReadOnly:   true,
		Capability: CapSearch,
		Schema: Schema{
			Properties: map[string]Property{
				"pattern":   {Kind: KindString, Description: "literal substring to search for"},
				"directory": {Kind: KindString, Description: "directory to search, relative to the working directory"},
			},
			Required: []string{"pattern"},
		},
		Exec: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			pattern, _ := input["pattern"].(string)
			dirArg, _ := input["directory"].(string)
			dir := normalize.ResolveSearchDirectory(workDir, dirArg, func(p string) bool {
				info, err := os.Stat(p)
				return err == nil && !info.IsDir()
			})
			abs, err := resolvePath(workDir, dir)
			if err != nil {
				return nil, err
			}

			var matches []string
			walkErr := filepath.WalkDir(abs, func(p string, d os.DirEntry, err error) error {
				if err != nil || d.IsDir() {
					return nil
				}
				raw, err := os.ReadFile(p)
				if err != nil {
					return nil
				}
				if bytes.Contains(raw, []byte(pattern)) {
					rel, _ := filepath.Rel(workDir, p)
					matches = append(matches, rel)
				}
				if len(matches) >= 200 {
					return filepath.SkipAll
				}
				return nil
			})
			if walkErr != nil {
				return nil, ioerr.Newf(ioerr.CodeExecutionError, "search %s: %v", dir, walkErr)
			}
			return map[string]any{"matches": matches, "count": len(matches)}, nil
		},
	}
}

func findTool(workDir string) Tool {
	return Tool{
		Name:       "find",
		ReadOnly:   true,
		Capability: CapSearch,
		Schema: Schema{
			Properties: map[string]Property{
				"glob": {Kind: KindString, Description: "glob pattern, e.g. **/*.go"},
			},
			Required: []string{"glob"},
		},
		Exec: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			pattern, _ := input["glob"].(string)
			pattern = normalize.WrapGlobPattern(pattern)

			var matches []string
			walkErr := filepath.WalkDir(workDir, func(p string, d os.DirEntry, err error) error {
				if err != nil || d.IsDir() {
					return nil
				}
				rel, relErr := filepath.Rel(workDir, p)
				if relErr != nil {
					return nil
				}
				if index.MatchGlob(filepath.ToSlash(rel), pattern) {
					matches = append(matches, rel)
				}
				if len(matches) >= 500 {
					return filepath.SkipAll
				}
				return nil
			})
			if walkErr != nil {
				return nil, ioerr.Newf(ioerr.CodeExecutionError, "find %s: %v", pattern, walkErr)
			}
			return map[string]any{"matches": matches, "count": len(matches)}, nil
		},
	}
}

func shellExecTool(workDir string) Tool {
	return Tool{
		Name:       "shell_exec",
		Capability: CapShell,
		Schema: Schema{
			Properties: map[string]Property{
				"command": {Kind: KindString, Description: "shell command to run"},
				"cwd":     {Kind: KindString, Description: "working directory relative to the project root"},
				"timeout_seconds": {Kind: KindNumber, Description: "kill the command after this many seconds, default 120"},
			},
			Required: []string{"command"},
		},
		Exec: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			command, _ := input["command"].(string)
			cwdArg, _ := input["cwd"].(string)
			cwd, err := normalize.NormalizeShellCwd(workDir, cwdArg)
			if err != nil {
				return nil, err
			}

			timeout := 120 * time.Second
			if secs := intArg(input, "timeout_seconds"); secs > 0 {
				timeout = time.Duration(secs) * time.Second
			}
			runCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			cmd := exec.CommandContext(runCtx, "sh", "-c", command)
			cmd.Dir = cwd
			var stdout, stderr bytes.Buffer
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr
			runErr := cmd.Run()

			if runCtx.Err() == context.DeadlineExceeded {
				return nil, ioerr.New(ioerr.CodeShellTimeout, "command timed out: "+command).WithRetryable(true)
			}
			exitCode := 0
			if runErr != nil {
				var exitErr *exec.ExitError
				if ok := asExitError(runErr, &exitErr); ok {
					exitCode = exitErr.ExitCode()
				} else {
					return nil, ioerr.New(ioerr.CodeCommandNotFound, runErr.Error())
				}
			}
			result := map[string]any{
				"stdout":    stdout.String(),
				"stderr":    stderr.String(),
				"exit_code": exitCode,
			}
			if exitCode != 0 {
				return result, ioerr.New(ioerr.CodeNonZeroExit, "command exited non-zero: "+command).WithRetryable(true)
			}
			return result, nil
		},
	}
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

func reportTool() Tool {
	return Tool{
		Name:       "report",
		ReadOnly:   true,
		Capability: CapInteraction,
		Schema: Schema{
			Properties: map[string]Property{
				"answer":     {Kind: KindString, Description: "final answer or summary of the completed task"},
				"confidence": {Kind: KindNumber, Description: "0-1 confidence that the task is actually complete"},
			},
			Required: []string{"answer"},
		},
		Exec: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			answer, _ := input["answer"].(string)
			return map[string]any{"answer": answer}, nil
		},
	}
}

func browserInspectTool() Tool {
	return Tool{
		Name:       "browser_inspect",
		ReadOnly:   true,
		Capability: CapGeneral,
		Schema: Schema{
			Properties: map[string]Property{
				"url":      {Kind: KindString, Description: "URL to load in a headless browser"},
				"selector": {Kind: KindString, Description: "CSS selector to wait for before reading the page"},
			},
			Required: []string{"url"},
		},
		Exec: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			url, _ := input["url"].(string)
			selector, _ := input["selector"].(string)
			if selector == "" {
				selector = "body"
			}

			opts := append(chromedp.DefaultExecAllocatorOptions[:],
				chromedp.Flag("headless", true),
				chromedp.Flag("disable-gpu", true),
				chromedp.Flag("no-sandbox", true),
			)
			allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
			defer allocCancel()
			browserCtx, browserCancel := chromedp.NewContext(allocCtx)
			defer browserCancel()
			runCtx, runCancel := context.WithTimeout(browserCtx, 30*time.Second)
			defer runCancel()

			var html string
			var title string
			err := chromedp.Run(runCtx,
				chromedp.Navigate(url),
				chromedp.WaitReady(selector, chromedp.ByQuery),
				chromedp.Title(&title),
				chromedp.OuterHTML("html", &html, chromedp.ByQuery),
			)
			if err != nil {
				return nil, ioerr.Newf(ioerr.CodeExecutionError, "browser_inspect %s: %v", url, err).WithRetryable(true)
			}
			if len(html) > 20000 {
				html = html[:20000]
			}
			return map[string]any{"title": title, "html": html}, nil
		},
	}
}

func intArg(input map[string]any, key string) int {
	switch v := input[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return 0
}
