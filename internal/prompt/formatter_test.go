package prompt

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-sftprep/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNew_NothingSetIsIdentity(t *testing.T) {
	f, err := New(Options{InputKey: "question", OutputKey: "output"})
	require.NoError(t, err)

	rec := domain.RecordOf("question", "q", "output", "a")
	got, err := f.Format(rec)
	require.NoError(t, err)
	assert.Same(t, rec, got)
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want error
	}{
		{
			name: "unknown chat format",
			opts: Options{ChatFormat: "xml", InputKey: "q", OutputKey: "o"},
			want: ErrUnknownChatFormat,
		},
		{
			name: "missing prompt config file",
			opts: Options{PromptConfig: "/nonexistent/prompt.yaml", InputKey: "q", OutputKey: "o"},
			want: ErrUnknownPrompt,
		},
		{
			name: "unknown template",
			opts: Options{PromptTemplate: "no-such-template", InputKey: "q", OutputKey: "o"},
			want: ErrUnknownPrompt,
		},
		{
			name: "keys missing",
			opts: Options{ChatFormat: ChatFormatOpenAI},
			want: domain.ErrConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, domain.ErrConfig)
		})
	}
}

func TestTemplateFormatter_PromptTemplate(t *testing.T) {
	cfgPath := writeFile(t, "prompt.yaml",
		"system: \"You write code.\"\nuser: \"Solve this. Wrap code in {{.code_begin}}.\\n{{.question}}\"\n")

	f, err := New(Options{
		PromptConfig:   cfgPath,
		PromptTemplate: "qwen-instruct",
		CodeTags:       "markdown",
		InputKey:       "question",
		OutputKey:      "output",
	})
	require.NoError(t, err)

	rec := domain.RecordOf("question", "Add two numbers", "output", "```python\nprint(1+2)```", "expected_answer", "3")
	got, err := f.Format(rec)
	require.NoError(t, err)

	wantPrompt := "<|im_start|>system\nYou write code.<|im_end|>\n" +
		"<|im_start|>user\nSolve this. Wrap code in ```python\n.\nAdd two numbers<|im_end|>\n" +
		"<|im_start|>assistant\n"
	q, _ := got.GetString("question")
	assert.Equal(t, wantPrompt, q)
	o, _ := got.GetString("output")
	assert.Equal(t, "```python\nprint(1+2)```<|im_end|>", o)
	assert.Equal(t, []string{"question", "output", "expected_answer"}, got.Keys())

	orig, _ := rec.GetString("question")
	assert.Equal(t, "Add two numbers", orig, "input record must not change")
}

func TestTemplateFormatter_ChatFormat(t *testing.T) {
	f, err := NewTemplateFormatter(&Config{System: "sys", User: "Q: {{.question}}"}, nil, CodeTags{}, ChatFormatOpenAI, "question", "output")
	require.NoError(t, err)

	got, err := f.Format(domain.RecordOf("question", "q1", "output", "a1", "id", 7))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", MessagesKey}, got.Keys())
	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"messages":[
		{"role":"system","content":"sys"},
		{"role":"user","content":"Q: q1"},
		{"role":"assistant","content":"a1"}]}`, string(data))
}

func TestTemplateFormatter_RecordErrors(t *testing.T) {
	f, err := NewTemplateFormatter(&Config{User: "{{.missing_field}}"}, nil, CodeTags{}, "", "question", "output")
	require.NoError(t, err)

	_, err = f.Format(domain.RecordOf("question", "q", "output", "a"))
	assert.ErrorIs(t, err, domain.ErrRecordShape)

	_, err = f.Format(domain.RecordOf("question", "q"))
	var shape *domain.RecordShapeError
	require.ErrorAs(t, err, &shape)
	assert.Equal(t, "output", shape.Field)
}

func TestTemplateFormatter_NoTemplateJoinsSystem(t *testing.T) {
	f, err := NewTemplateFormatter(&Config{System: "sys", User: "{{.question}}"}, nil, CodeTags{}, "", "question", "output")
	require.NoError(t, err)

	got, err := f.Format(domain.RecordOf("question", "q", "output", "a"))
	require.NoError(t, err)
	q, _ := got.GetString("question")
	assert.Equal(t, "sys\n\nq", q)
	o, _ := got.GetString("output")
	assert.Equal(t, "a", o)
}

func TestLoadConfig_RequiresUser(t *testing.T) {
	_, err := LoadConfig(writeFile(t, "p.yaml", "system: only\n"))
	assert.ErrorIs(t, err, domain.ErrConfig)
}
