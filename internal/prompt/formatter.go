package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/ahrav/go-sftprep/internal/domain"
)

// ChatFormatOpenAI emits records as an OpenAI style message list.
const ChatFormatOpenAI = "openai"

// MessagesKey holds the message list in chat formatted records.
const MessagesKey = "messages"

// ErrUnknownChatFormat is returned for an unsupported chat_format.
var ErrUnknownChatFormat = fmt.Errorf("%w: unknown chat format", domain.ErrConfig)

// Formatter rewrites a record into its training form. Implementations must
// not modify the record they are given.
type Formatter interface {
	Format(rec *domain.Record) (*domain.Record, error)
}

// Identity returns records unchanged.
type Identity struct{}

// Format returns rec.
func (Identity) Format(rec *domain.Record) (*domain.Record, error) { return rec, nil }

// Options select the prompt resources. Empty values are unset.
type Options struct {
	PromptConfig   string
	PromptTemplate string
	CodeTags       string
	ChatFormat     string
	InputKey       string
	OutputKey      string
}

func (o Options) empty() bool {
	return o.PromptConfig == "" && o.PromptTemplate == "" && o.CodeTags == "" && o.ChatFormat == ""
}

// New loads the resources named in opts. With nothing set it returns Identity.
func New(opts Options) (Formatter, error) {
	if opts.empty() {
		return Identity{}, nil
	}
	if opts.InputKey == "" || opts.OutputKey == "" {
		return nil, fmt.Errorf("%w: prompt formatting needs input and output keys", domain.ErrConfig)
	}
	switch opts.ChatFormat {
	case "", ChatFormatOpenAI:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChatFormat, opts.ChatFormat)
	}

	f := &TemplateFormatter{
		inputKey:   opts.InputKey,
		outputKey:  opts.OutputKey,
		chatFormat: opts.ChatFormat,
	}

	if opts.CodeTags != "" {
		tags, err := LoadCodeTags(opts.CodeTags)
		if err != nil {
			return nil, err
		}
		f.codeTags = *tags
	}
	if opts.PromptTemplate != "" {
		tmpl, err := LoadTemplate(opts.PromptTemplate)
		if err != nil {
			return nil, err
		}
		f.template = tmpl
	}
	if opts.PromptConfig != "" {
		cfg, err := LoadConfig(opts.PromptConfig)
		if err != nil {
			return nil, err
		}
		if err := f.compile(cfg); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// TemplateFormatter renders prompts with text/template.
//
// The user message is the rendered prompt config, or the raw input field
// when no prompt config is set. With a chat format the input and output
// fields are replaced by a message list; otherwise the input field becomes
// the full prompt text and the output field is closed with the template's
// assistant end marker.
type TemplateFormatter struct {
	inputKey   string
	outputKey  string
	chatFormat string
	codeTags   CodeTags
	template   *Template
	system     *template.Template
	user       *template.Template
}

// NewTemplateFormatter builds a formatter from already loaded resources.
// tmpl may be nil.
func NewTemplateFormatter(cfg *Config, tmpl *Template, tags CodeTags, chatFormat, inputKey, outputKey string) (*TemplateFormatter, error) {
	f := &TemplateFormatter{
		inputKey:   inputKey,
		outputKey:  outputKey,
		chatFormat: chatFormat,
		codeTags:   tags,
		template:   tmpl,
	}
	if cfg != nil {
		if err := f.compile(cfg); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *TemplateFormatter) compile(cfg *Config) error {
	user, err := template.New("user").Option("missingkey=error").Parse(cfg.User)
	if err != nil {
		return fmt.Errorf("%w: parsing user prompt: %w", domain.ErrConfig, err)
	}
	f.user = user
	if cfg.System != "" {
		system, err := template.New("system").Option("missingkey=error").Parse(cfg.System)
		if err != nil {
			return fmt.Errorf("%w: parsing system prompt: %w", domain.ErrConfig, err)
		}
		f.system = system
	}
	return nil
}

// Format implements Formatter.
func (f *TemplateFormatter) Format(rec *domain.Record) (*domain.Record, error) {
	input, err := domain.RequireString(rec, f.inputKey)
	if err != nil {
		return nil, err
	}
	output, err := domain.RequireString(rec, f.outputKey)
	if err != nil {
		return nil, err
	}

	data := f.templateData(rec)
	system, err := render(f.system, data)
	if err != nil {
		return nil, err
	}
	user := input
	if f.user != nil {
		if user, err = render(f.user, data); err != nil {
			return nil, err
		}
	}

	out := rec.Clone()
	if f.chatFormat == ChatFormatOpenAI {
		var messages []any
		if system != "" {
			messages = append(messages, message("system", system))
		}
		messages = append(messages, message("user", user), message("assistant", output))
		out.Delete(f.inputKey)
		out.Delete(f.outputKey)
		out.Set(MessagesKey, messages)
		return out, nil
	}

	out.Set(f.inputKey, f.prompt(system, user))
	if f.template != nil {
		out.Set(f.outputKey, output+f.template.AssistantEnd)
	}
	return out, nil
}

func (f *TemplateFormatter) prompt(system, user string) string {
	t := f.template
	if t == nil {
		if system == "" {
			return user
		}
		return system + "\n\n" + user
	}
	var b strings.Builder
	b.WriteString(t.TextBegin)
	b.WriteString(t.SystemBegin)
	b.WriteString(system)
	b.WriteString(t.SystemEnd)
	b.WriteString(t.UserBegin)
	b.WriteString(user)
	b.WriteString(t.UserEnd)
	b.WriteString(t.AssistantBegin)
	return b.String()
}

func (f *TemplateFormatter) templateData(rec *domain.Record) map[string]any {
	data := make(map[string]any, rec.Len()+4)
	for k, v := range f.codeTags.fields() {
		data[k] = v
	}
	for _, k := range rec.Keys() {
		v, _ := rec.Get(k)
		data[k] = v
	}
	return data
}

func render(t *template.Template, data map[string]any) (string, error) {
	if t == nil {
		return "", nil
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("%w: rendering %s prompt: %w", domain.ErrRecordShape, t.Name(), err)
	}
	return b.String(), nil
}

func message(role, content string) *domain.Record {
	return domain.RecordOf("role", role, "content", content)
}
