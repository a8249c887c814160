package dto

// ErrorResponse is the JSON body returned for failed API requests.
type ErrorResponse struct {
	Error string `json:"error"`
}
