package handler

// errorResponse is the error envelope of every endpoint: {"detail": "..."}.
type errorResponse struct {
	Detail string `json:"detail"`
}
