package types

const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

type SuccessEnvelope struct {
	Status     string          `json:"status"`
	Message    string          `json:"message,omitempty"`
	Results    *int            `json:"results,omitempty"`
	Pagination *PaginationMeta `json:"pagination,omitempty"`
	Data       any             `json:"data"`
}

type PaginationMeta struct {
	CurrentPage int   `json:"currentPage"`
	Limit       int   `json:"limit"`
	TotalPages  int   `json:"totalPages"`
	TotalUsers  int64 `json:"totalUsers"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Stack   string `json:"stack,omitempty"`
	Debug   any    `json:"debug,omitempty"`
}

type ErrorEnvelope struct {
	Status string   `json:"status"`
	Error  APIError `json:"error"`
}
