package server

import (
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ryuka-api/ryuka/internal/app"
)

// maxPromptBody is the maximum accepted stub request body size (64 KB).
const maxPromptBody = 64 << 10

type chatData struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

type imageData struct {
	Prompt string `json:"prompt"`
	Image  string `json:"image"`
}

type videoData struct {
	Prompt string `json:"prompt"`
	Video  string `json:"video"`
	Note   string `json:"note"`
}

// readPrompt takes "prompt" from a JSON or form body, then from the query.
// Non-string JSON values are accepted in their text form.
func readPrompt(w http.ResponseWriter, r *http.Request) string {
	var prompt string
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mt == "application/json" || strings.HasSuffix(mt, "+json"):
		b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPromptBody))
		if err == nil && gjson.ValidBytes(b) {
			prompt = gjson.GetBytes(b, "prompt").String()
		}
	case mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxPromptBody)
		prompt = r.PostFormValue("prompt")
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = r.URL.Query().Get("prompt")
	}
	return strings.TrimSpace(prompt)
}

// promptHandler rejects requests without a prompt and renders the rest with fn.
func promptHandler(fn func(prompt string) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prompt := readPrompt(w, r)
		if prompt == "" {
			writeJSON(w, http.StatusBadRequest, failure("missing_prompt", "field 'prompt' is required", ""))
			return
		}
		writeJSON(w, http.StatusOK, success(fn(prompt)))
	}
}

func chatResult(p string) any {
	return chatData{Prompt: p, Response: app.ChatReply(p)}
}

func imageResult(p string) any {
	return imageData{Prompt: p, Image: app.PlaceholderImageURL(p)}
}

func videoResult(p string) any {
	return videoData{Prompt: p, Video: app.SampleVideoURL, Note: app.SampleVideoNote}
}
