package artifact_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/ravelchat/ravel/internal/artifact"
	"github.com/ravelchat/ravel/internal/ident"
)

const (
	testSession = ident.SessionID("chat(1700000000000)")
	testParent  = ident.MessageID("assistant(1)")
)

func TestExtract(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name     string
		text     string
		wantLang []string
		wantCode []string
	}{
		{
			name:     "no fences",
			text:     "plain prose with `inline code` only",
			wantLang: nil,
			wantCode: nil,
		},
		{
			name:     "single block with language",
			text:     "Here:\n```go\nfmt.Println(\"hi\")\n```\ndone",
			wantLang: []string{"go"},
			wantCode: []string{"fmt.Println(\"hi\")"},
		},
		{
			name:     "language tag extra fields ignored",
			text:     "```python title=demo\nprint(1)\n```",
			wantLang: []string{"python"},
			wantCode: []string{"print(1)"},
		},
		{
			name:     "no language tag",
			text:     "```\nanything\n```",
			wantLang: []string{""},
			wantCode: []string{"anything"},
		},
		{
			name:     "multiple blocks in document order",
			text:     "```go\na\n```\ntext\n```sql\nb\n```",
			wantLang: []string{"go", "sql"},
			wantCode: []string{"a", "b"},
		},
		{
			name:     "unterminated fence ignored",
			text:     "```go\ncomplete\n```\n```python\nnever closed",
			wantLang: []string{"go"},
			wantCode: []string{"complete"},
		},
		{
			name:     "indented fences",
			text:     "  ```go\n  x := 1\n  ```",
			wantLang: []string{"go"},
			wantCode: []string{"  x := 1"},
		},
		{
			name:     "empty block",
			text:     "```\n```",
			wantLang: []string{""},
			wantCode: []string{""},
		},
		{
			name:     "multiline block keeps interior lines",
			text:     "```go\nline1\n\nline3\n```",
			wantLang: []string{"go"},
			wantCode: []string{"line1\n\nline3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := artifact.Extract(testSession, testParent, tt.text, now)
			if len(got) != len(tt.wantCode) {
				t.Fatalf("extracted %d artifacts, want %d", len(got), len(tt.wantCode))
			}
			for i, a := range got {
				if a.Language != tt.wantLang[i] {
					t.Errorf("artifact %d language = %q, want %q", i, a.Language, tt.wantLang[i])
				}
				if a.Code != tt.wantCode[i] {
					t.Errorf("artifact %d code = %q, want %q", i, a.Code, tt.wantCode[i])
				}
				wantID := ident.ArtifactIDFor(testParent, i+1)
				if a.ID != wantID {
					t.Errorf("artifact %d id = %q, want %q", i, a.ID, wantID)
				}
				if a.ParentID != testParent || a.SessionID != testSession {
					t.Errorf("artifact %d has wrong ownership: %+v", i, a)
				}
			}
		})
	}
}

func TestExtractIdempotent(t *testing.T) {
	now := time.Now().UTC()
	text := "intro\n```go\nfirst\n```\nmiddle\n```js\nsecond\n```\noutro"

	first := artifact.Extract(testSession, testParent, text, now)
	second := artifact.Extract(testSession, testParent, text, now)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-extraction of unchanged text differs:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

// Extending text past the truncation point must keep the ids and content of
// blocks before the cut and re-fill the block that was cut off.
func TestExtractAfterContinuation(t *testing.T) {
	now := time.Now().UTC()
	partial := "```go\nfunc a() {}\n```\nand then\n```python\ndef b():"
	combined := partial + "\n    return 1\n```\ntrailing prose"

	before := artifact.Extract(testSession, testParent, partial, now)
	after := artifact.Extract(testSession, testParent, combined, now)

	if len(before) != 1 {
		t.Fatalf("partial text: extracted %d artifacts, want 1", len(before))
	}
	if len(after) != 2 {
		t.Fatalf("combined text: extracted %d artifacts, want 2", len(after))
	}

	if after[0].ID != before[0].ID {
		t.Errorf("unaffected block changed id: %q -> %q", before[0].ID, after[0].ID)
	}
	if after[0].Code != before[0].Code {
		t.Errorf("unaffected block changed content: %q -> %q", before[0].Code, after[0].Code)
	}
	if after[1].ID != ident.ArtifactIDFor(testParent, 2) {
		t.Errorf("continued block id = %q, want %q", after[1].ID, ident.ArtifactIDFor(testParent, 2))
	}
	if after[1].Language != "python" || after[1].Code != "def b():\n    return 1" {
		t.Errorf("continued block = %q/%q", after[1].Language, after[1].Code)
	}
}

func TestLineCount(t *testing.T) {
	a := &artifact.Artifact{Code: "one\ntwo\nthree"}
	if got := a.LineCount(); got != 3 {
		t.Errorf("LineCount = %d, want 3", got)
	}
	empty := &artifact.Artifact{}
	if got := empty.LineCount(); got != 0 {
		t.Errorf("LineCount of empty code = %d, want 0", got)
	}
}
