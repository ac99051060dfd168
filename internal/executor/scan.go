package executor

import (
	"regexp"
	"strings"
)

// Third-party packages the executor is willing to install. Anything else
// declared or imported by a generated script fails before installation.
var installAllowList = map[string]bool{
	"pillow":        true,
	"openpyxl":      true,
	"pypdf":         true,
	"pypdf2":        true,
	"python-docx":   true,
	"pandas":        true,
	"numpy":         true,
	"opencv-python": true,
	"pyyaml":        true,
	"xlrd":          true,
}

// Import names that map to a differently named pip package.
var packageNameFixes = map[string]string{
	"PIL":       "Pillow",
	"Image":     "Pillow",
	"ImageDraw": "Pillow",
	"ImageFont": "Pillow",
	"cv2":       "opencv-python",
	"sklearn":   "scikit-learn",
	"yaml":      "PyYAML",
	"docx":      "python-docx",
}

// Modules a generated script must never import. Scripts run with the user's
// own privileges; this is a guard against obviously hostile output, not a
// sandbox.
var disallowedModules = map[string]bool{
	"subprocess":      true,
	"socket":          true,
	"ctypes":          true,
	"multiprocessing": true,
	"urllib":          true,
	"requests":        true,
	"http":            true,
	"pickle":          true,
	"marshal":         true,
	"shelve":          true,
}

var stdlibModules = map[string]bool{
	"os": true, "sys": true, "pathlib": true, "shutil": true, "glob": true,
	"fnmatch": true, "datetime": true, "time": true, "json": true, "csv": true,
	"re": true, "string": true, "collections": true, "itertools": true,
	"functools": true, "operator": true, "math": true, "random": true,
	"statistics": true, "decimal": true, "fractions": true, "io": true,
	"tempfile": true, "argparse": true, "logging": true, "textwrap": true,
	"configparser": true, "platform": true, "traceback": true, "typing": true,
}

var (
	requiresHeaderRe = regexp.MustCompile(`(?m)^#\s*requires:\s*(.+)$`)
	importRe         = regexp.MustCompile(`^import\s+(\w+)`)
	fromImportRe     = regexp.MustCompile(`^from\s+(\w+)\s+import`)
)

// scanDependencies extracts the third-party packages a script needs, either
// from a "# requires: pkgA, pkgB" header or inferred from its imports, and
// checks them against the allow-list. It also rejects disallowed imports
// outright.
func scanDependencies(script string) (required []string, denied []InstallFailure) {
	imports := scriptImports(script)
	for _, name := range imports {
		if disallowedModules[name] {
			denied = append(denied, InstallFailure{Library: name, Error: "module is not permitted in generated scripts"})
		}
	}
	if len(denied) > 0 {
		return nil, denied
	}

	declared := map[string]bool{}
	if m := requiresHeaderRe.FindStringSubmatch(script); m != nil {
		for _, part := range strings.Split(m[1], ",") {
			name := strings.TrimSpace(part)
			if name != "" {
				declared[canonicalPackage(name)] = true
			}
		}
	} else {
		for _, name := range imports {
			if stdlibModules[name] {
				continue
			}
			declared[canonicalPackage(name)] = true
		}
	}

	for name := range declared {
		if !installAllowList[strings.ToLower(name)] {
			denied = append(denied, InstallFailure{Library: name, Error: "package is not on the install allow-list"})
			continue
		}
		required = append(required, name)
	}
	if len(denied) > 0 {
		return nil, denied
	}
	return required, nil
}

func scriptImports(script string) []string {
	seen := map[string]bool{}
	var out []string
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		var name string
		if m := importRe.FindStringSubmatch(line); m != nil {
			name = m[1]
		} else if m := fromImportRe.FindStringSubmatch(line); m != nil {
			name = m[1]
		}
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func canonicalPackage(name string) string {
	if fixed, ok := packageNameFixes[name]; ok {
		return fixed
	}
	return name
}

// stripCodeFence removes markdown code fences the model sometimes wraps
// around generated scripts.
func stripCodeFence(script string) string {
	script = strings.TrimSpace(script)
	if strings.HasPrefix(script, "```python") {
		script = strings.TrimSpace(script[len("```python"):])
	} else if strings.HasPrefix(script, "```") {
		script = strings.TrimSpace(script[3:])
	}
	if strings.HasSuffix(script, "```") {
		script = strings.TrimSpace(script[:len(script)-3])
	}
	return script
}
