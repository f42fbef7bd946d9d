package main

// GenresResponse is the response for GET /api/genres
type GenresResponse struct {
	Genres []string `json:"genres"`
	Count  int      `json:"count"`
}

// DeleteResponse is the standard delete acknowledgement
type DeleteResponse struct {
	Message string `json:"message"`
	ID      uint   `json:"id"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
