package models

// MessageRequest is a text command relayed from the chat platform.
type MessageRequest struct {
	Content string `json:"content"`
	Author  string `json:"author,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
