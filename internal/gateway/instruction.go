// Copyright 2026 The Skillgate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gateway

import (
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// instructionTemplates map actions to natural-language instructions for the
// runtime. Actions without a template, and template executions that
// reference a missing parameter, fall back to the generic form.
var instructionTemplates = map[string]string{
	"search_web":   "Search the web for: {{.query}}",
	"read_file":    "Read the file at path: {{.path}}",
	"write_file":   "Write to file at path: {{.path}}\n\nContent:\n{{.content}}",
	"run_code":     "Run the following {{.language}} code:\n```{{.language}}\n{{.code}}\n```",
	"run_analysis": "Run analysis: {{.description}}",
	"get_status":   "What is the current status of the agent and workspace?",
	"send_message": "Send this message to {{.target}}: {{.content}}",
	"fetch_url":    "Fetch and summarize the content at this URL: {{.url}}",
}

func parseTemplates() map[string]*template.Template {
	parsed := make(map[string]*template.Template, len(instructionTemplates))
	for action, text := range instructionTemplates {
		parsed[action] = template.Must(
			template.New(action).Option("missingkey=error").Parse(text),
		)
	}
	return parsed
}

// buildInstruction renders the action's template over the sanitized params,
// falling back to the generic action dump when no template fits.
func (g *Gateway) buildInstruction(action string, params map[string]any) string {
	if tmpl, ok := g.templates[action]; ok {
		var buf strings.Builder
		if err := tmpl.Execute(&buf, params); err == nil {
			return buf.String()
		}
	}
	return genericInstruction(action, params)
}

func genericInstruction(action string, params map[string]any) string {
	if len(params) == 0 {
		return fmt.Sprintf("Action: %s", action)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "Action: %s\nParameters:", action)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s: %v", k, params[k])
	}
	return b.String()
}
