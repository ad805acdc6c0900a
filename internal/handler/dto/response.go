package dto

// APIResponse - единый конверт всех ответов API: {status, data, message}.
// На ошибках data остается null.
type APIResponse struct {
	Status  int         `json:"status"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

// NewAPIResponse создает конверт ответа
func NewAPIResponse(status int, data interface{}, message string) APIResponse {
	return APIResponse{
		Status:  status,
		Data:    data,
		Message: message,
	}
}

// NewErrorResponse создает конверт ответа с ошибкой (без данных)
func NewErrorResponse(status int, message string) APIResponse {
	return APIResponse{
		Status:  status,
		Data:    nil,
		Message: message,
	}
}
