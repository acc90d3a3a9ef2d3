package llm

import (
	llmclient "vibedocs/internal/llm/client"
)

// LLMClient is re-exported so callers only import this package.
type LLMClient = llmclient.LLMClient

type (
	Credential = llmclient.Credential
	Request    = llmclient.Request
	Response   = llmclient.Response
	Usage      = llmclient.Usage
)
