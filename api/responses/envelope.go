package responses

// Body is the 2xx shape for everything except webhook acks.
type Body struct {
	Data any `json:"data"`
}

// Problem is the public view of a failed request.
type Problem struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type ProblemBody struct {
	Error Problem `json:"error"`
}
