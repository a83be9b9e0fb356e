package api

type HTTPError struct {
	StatusCode int
	Message    string
	ErrorLog   error
}

func (e *HTTPError) Error() string {
	return e.Message
}

func NewHTTPError(statusCode int, message string, errorLog error) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		ErrorLog:   errorLog,
	}
}

type ApiError struct {
	Error string `json:"message"`
}
