package clients

import "time"

const (
	PROVIDER_GEMINI = "gemini"
	PROVIDER_OPENAI = "openai"
	PROVIDER_OLLAMA = "ollama"

	DEFAULT_GEMINI_MODEL = "gemini-2.5-flash"
	DEFAULT_OPENAI_MODEL = "gpt-4o-mini"
	DEFAULT_OLLAMA_MODEL = "gpt-oss:20b"
	DEFAULT_OLLAMA_URL   = "http://localhost:11434"

	DEFAULT_REQUEST_TIMEOUT = 60 * time.Second
	USER_AGENT              = "emotiflow-client/1.0 (+https://github.com/spacesedan/emotiflow)"
)
