// Package prompt turns raw question/solution records into model-ready
// training text. A prompt config supplies the system and user messages as
// Go templates over record fields, a prompt template wraps the messages in a
// model's special tokens, and code tags name the markers the model uses
// around code.
package prompt

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-sftprep/internal/domain"
)

// ErrUnknownPrompt is returned for a prompt file or built-in name that does
// not exist.
var ErrUnknownPrompt = fmt.Errorf("%w: unknown prompt resource", domain.ErrConfig)

// Config holds the message templates. Templates use text/template syntax
// and see every record field plus the code tags, e.g. {{.question}} or
// {{.code_begin}}.
type Config struct {
	System string `yaml:"system"`
	User   string `yaml:"user" validate:"required"`
}

// Template wraps messages in a chat model's special tokens.
type Template struct {
	TextBegin      string `yaml:"text_begin"`
	SystemBegin    string `yaml:"system_begin"`
	SystemEnd      string `yaml:"system_end"`
	UserBegin      string `yaml:"user_begin"`
	UserEnd        string `yaml:"user_end"`
	AssistantBegin string `yaml:"assistant_begin"`
	AssistantEnd   string `yaml:"assistant_end"`
}

// CodeTags are the markers placed around code and code output.
type CodeTags struct {
	CodeBegin       string `yaml:"code_begin"`
	CodeEnd         string `yaml:"code_end"`
	CodeOutputBegin string `yaml:"code_output_begin"`
	CodeOutputEnd   string `yaml:"code_output_end"`
}

func (c CodeTags) fields() map[string]string {
	return map[string]string{
		"code_begin":        c.CodeBegin,
		"code_end":          c.CodeEnd,
		"code_output_begin": c.CodeOutputBegin,
		"code_output_end":   c.CodeOutputEnd,
	}
}

var builtinTemplates = map[string]Template{
	"llama3-instruct": {
		TextBegin:      "<|begin_of_text|>",
		SystemBegin:    "<|start_header_id|>system<|end_header_id|>\n\n",
		SystemEnd:      "<|eot_id|>",
		UserBegin:      "<|start_header_id|>user<|end_header_id|>\n\n",
		UserEnd:        "<|eot_id|>",
		AssistantBegin: "<|start_header_id|>assistant<|end_header_id|>\n\n",
		AssistantEnd:   "<|eot_id|>",
	},
	"qwen-instruct": {
		SystemBegin:    "<|im_start|>system\n",
		SystemEnd:      "<|im_end|>\n",
		UserBegin:      "<|im_start|>user\n",
		UserEnd:        "<|im_end|>\n",
		AssistantBegin: "<|im_start|>assistant\n",
		AssistantEnd:   "<|im_end|>",
	},
}

var builtinCodeTags = map[string]CodeTags{
	"markdown": {
		CodeBegin:       "```python\n",
		CodeEnd:         "```\n",
		CodeOutputBegin: "```output\n",
		CodeOutputEnd:   "```\n",
	},
	"llama3": {
		CodeBegin:       "<|python_tag|>",
		CodeEnd:         "<|eom_id|>",
		CodeOutputBegin: "<|start_header_id|>ipython<|end_header_id|>",
		CodeOutputEnd:   "<|eot_id|><|start_header_id|>assistant<|end_header_id|>",
	},
}

// LoadConfig reads a prompt config file.
func LoadConfig(path string) (*Config, error) {
	var c Config
	if err := loadYAML(path, &c); err != nil {
		return nil, err
	}
	if err := domain.ValidateStruct(&c); err != nil {
		return nil, fmt.Errorf("%w: prompt config %s: %w", domain.ErrConfig, path, err)
	}
	return &c, nil
}

// LoadTemplate returns a built-in template by name or reads one from a file.
func LoadTemplate(nameOrPath string) (*Template, error) {
	if t, ok := builtinTemplates[nameOrPath]; ok {
		return &t, nil
	}
	var t Template
	if err := loadYAML(nameOrPath, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadCodeTags returns built-in code tags by name or reads them from a file.
func LoadCodeTags(nameOrPath string) (*CodeTags, error) {
	if c, ok := builtinCodeTags[nameOrPath]; ok {
		return &c, nil
	}
	var c CodeTags
	if err := loadYAML(nameOrPath, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrUnknownPrompt, path)
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: parsing %s: %w", domain.ErrConfig, path, err)
	}
	return nil
}
