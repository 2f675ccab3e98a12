package formatting_test

import (
	"errors"
	"testing"

	"github.com/JaimeStill/safestack/pkg/formatting"
)

type finding struct {
	Timestamp string `json:"timestamp"`
	Policy    string `json:"policy_name"`
}

func TestParse(t *testing.T) {
	t.Run("strict object", func(t *testing.T) {
		got, err := formatting.Parse[finding](`  {"timestamp":"00:15","policy_name":"Ladders"}  `)
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		if got.Timestamp != "00:15" || got.Policy != "Ladders" {
			t.Errorf("Parse = %+v", got)
		}
	})

	t.Run("prose is rejected", func(t *testing.T) {
		_, err := formatting.Parse[finding]("no json here")
		if !errors.Is(err, formatting.ErrParseFailed) {
			t.Errorf("err = %v, want ErrParseFailed", err)
		}
	})
}

func TestParseArray(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{name: "strict array", content: `[{"timestamp":"00:01","policy_name":"A"}]`, want: 1},
		{name: "empty array", content: `[]`, want: 0},
		{
			name:    "fenced array",
			content: "```json\n[{\"timestamp\":\"00:01\",\"policy_name\":\"A\"},{\"timestamp\":\"00:09\",\"policy_name\":\"B\"}]\n```",
			want:    2,
		},
		{
			name:    "array inside prose",
			content: "I found these issues:\n[{\"timestamp\":\"01:02\",\"policy_name\":\"Fall Protection\"}]\nLet me know.",
			want:    1,
		},
		{name: "no array", content: "No violations were observed.", wantErr: true},
		{name: "unbalanced", content: `[{"timestamp":"00:01"`, wantErr: true},
		{name: "wrong element type", content: `[1, 2, 3]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatting.ParseArray[finding](tt.content)
			if tt.wantErr {
				if !errors.Is(err, formatting.ErrParseFailed) {
					t.Fatalf("err = %v, want ErrParseFailed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseArray error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestExtractArray(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		ok      bool
	}{
		{name: "plain", content: `x [1,2] y`, want: `[1,2]`, ok: true},
		{name: "nested", content: `result: [[1],[2,[3]]] done`, want: `[[1],[2,[3]]]`, ok: true},
		{
			name:    "brackets in strings",
			content: `see [{"description":"rail ] missing [x"}] end`,
			want:    `[{"description":"rail ] missing [x"}]`,
			ok:      true,
		},
		{
			name:    "escaped quote in string",
			content: `[{"d":"a \"quoted\" ] word"}]`,
			want:    `[{"d":"a \"quoted\" ] word"}]`,
			ok:      true,
		},
		{name: "skips invalid candidate", content: `[severity 1] then [{"a":1}]`, want: `[{"a":1}]`, ok: true},
		{name: "first of two", content: `[1] and [2]`, want: `[1]`, ok: true},
		{name: "none", content: `nothing to see`, ok: false},
		{name: "never closes", content: `[{"a":1}`, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := formatting.ExtractArray(tt.content)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
