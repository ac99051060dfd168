package executor

import (
	"fmt"
	"strings"

	"github.com/wingmanhq/wingman/internal/registry"
)

func scriptPrompt(patternDescription, userExplanation string, actions []registry.Action) string {
	var b strings.Builder
	b.WriteString("You are a Python automation script generator. Create a SIMPLE, SAFE Python script from the observed workflow.\n\n")
	b.WriteString("SAFETY RULES:\n")
	b.WriteString("1. ALWAYS use full absolute paths, never relative paths.\n")
	b.WriteString("2. Keep the code simple; minimise the risk of damaging the user's files.\n")
	b.WriteString("3. If file paths appear in the workflow below, use exactly those paths.\n\n")
	b.WriteString("OUTPUT RULES:\n")
	b.WriteString("- Output ONLY raw Python code, no markdown code fences.\n")
	b.WriteString("- The script must run unattended: no input(), no confirmation prompts.\n")
	b.WriteString("- Prefer the standard library (os, shutil, pathlib, glob, re). If a third-party package is unavoidable, declare it in a first-line comment of the form '# requires: Pillow, openpyxl' using correct pip names.\n")
	b.WriteString("- Include error handling with try/except, a main() function and an if __name__ == '__main__' guard.\n\n")
	b.WriteString("Observed workflow:\n")
	b.WriteString(patternDescription)
	b.WriteString("\n\nWhat the user wants:\n")
	b.WriteString(userExplanation)
	if len(actions) > 0 {
		b.WriteString("\n\nRecorded file operations:\n")
		for _, a := range actions {
			if !a.IsFileEvent() {
				continue
			}
			line := fmt.Sprintf("- %s | %s", a.DetailString("event_type"), a.DetailString("src_path"))
			if dest := a.DetailString("dest_path"); dest != "" {
				line += " -> " + dest
			}
			b.WriteString(line + "\n")
		}
	}
	b.WriteString("\nGenerate the Python script now:")
	return b.String()
}

func refinePrompt(previousScript, refinement string) string {
	var b strings.Builder
	b.WriteString("You are a Python automation script generator. The user wants changes to an existing automation script.\n\n")
	b.WriteString("OUTPUT RULES:\n")
	b.WriteString("- Output ONLY the complete revised Python code, no markdown code fences.\n")
	b.WriteString("- Keep the safety rules: absolute paths only, no input(), standard library preferred, '# requires:' header for any third-party package.\n\n")
	b.WriteString("Current script:\n")
	b.WriteString(previousScript)
	b.WriteString("\n\nRequested change:\n")
	b.WriteString(refinement)
	b.WriteString("\n\nOutput the full revised script:")
	return b.String()
}

func summaryPrompt(script string) string {
	var b strings.Builder
	b.WriteString("Explain this Python automation script to a non-technical person.\n\n")
	b.WriteString("Write 3-5 short bullet points describing WHAT the script will do, not how. ")
	b.WriteString("Mention the specific files, folders or paths it touches. Use plain everyday language.\n\n")
	b.WriteString("Script:\n")
	b.WriteString(script)
	b.WriteString("\n\nBullet summary:")
	return b.String()
}
