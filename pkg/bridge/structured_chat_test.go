package bridge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/aibridge/pkg/bridge"
	"github.com/MrWong99/aibridge/pkg/provider/llm"
	llmmock "github.com/MrWong99/aibridge/pkg/provider/llm/mock"
	providermock "github.com/MrWong99/aibridge/pkg/provider/mock"
)

type city struct {
	Name       string `json:"name"`
	Population int    `json:"population"`
}

func TestCompleteStructured_SendsSchema(t *testing.T) {
	t.Parallel()

	client := &llmmock.Client{CompleteResponse: &llm.CompletionResponse{
		Content: "```json\n{\"name\":\"Oslo\",\"population\":709000}\n```",
	}}
	svc := singleAdapter(t, &providermock.Adapter{Caps: allCaps, Chat: client})

	got, err := bridge.CompleteStructured[city](context.Background(), svc.Chat, bridge.Selection{}, "Largest city in Norway?")
	if err != nil {
		t.Fatalf("CompleteStructured: %v", err)
	}
	if got != (city{Name: "Oslo", Population: 709000}) {
		t.Errorf("got %+v", got)
	}
	rf := client.CompleteCalls[0].Req.ResponseFormat
	if rf == nil {
		t.Fatal("ResponseFormat not set")
	}
	if rf.Schema["type"] != "object" {
		t.Errorf("schema type: want object, got %v", rf.Schema["type"])
	}
}

func TestCompleteStructuredWithSchemaFlag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		useSchema  bool
		reply      string
		wantFormat bool
		want       city
		wantErr    error
	}{
		{
			name:       "schema on",
			useSchema:  true,
			reply:      `{"name":"Bergen","population":291000}`,
			wantFormat: true,
			want:       city{"Bergen", 291000},
		},
		{
			name:      "schema off is prompt guided",
			useSchema: false,
			reply:     `{"name":"Bergen","population":291000}`,
			want:      city{"Bergen", 291000},
		},
		{
			name:      "schema off tolerates missing fields",
			useSchema: false,
			reply:     `{"name":"Bergen"}`,
			want:      city{Name: "Bergen"},
		},
		{
			name:       "schema on rejects missing fields",
			useSchema:  true,
			reply:      `{"name":"Bergen"}`,
			wantFormat: true,
			wantErr:    bridge.ErrStructuredParse,
		},
		{
			name:      "prose is a parse error",
			useSchema: false,
			reply:     "I am not sure, sorry.",
			wantErr:   bridge.ErrStructuredParse,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			client := &llmmock.Client{CompleteResponse: &llm.CompletionResponse{Content: tc.reply}}
			svc := singleAdapter(t, &providermock.Adapter{Caps: allCaps, Chat: client})

			got, err := bridge.CompleteStructuredWithSchemaFlag[city](context.Background(), svc.Chat, bridge.Selection{}, "q", tc.useSchema)
			if hasFormat := client.CompleteCalls[0].Req.ResponseFormat != nil; hasFormat != tc.wantFormat {
				t.Errorf("ResponseFormat present: want %v, got %v", tc.wantFormat, hasFormat)
			}
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("want %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestCompleteStructured_BackendErrorIsNotParseError(t *testing.T) {
	t.Parallel()

	backendErr := errors.New("503 service unavailable")
	client := &llmmock.Client{CompleteErr: backendErr}
	svc := singleAdapter(t, &providermock.Adapter{Caps: allCaps, Chat: client})

	_, err := bridge.CompleteStructured[city](context.Background(), svc.Chat, bridge.Selection{}, "q")
	if !errors.Is(err, backendErr) {
		t.Fatalf("want backend error, got %v", err)
	}
	if errors.Is(err, bridge.ErrStructuredParse) {
		t.Error("backend error must not be reported as a parse error")
	}
}
