package response

// RequestIDKey gin context 中请求 ID 的键
const RequestIDKey = "request_id"

// Response 统一响应信封。金额字段在 data 内以最小货币单位给出。
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id,omitempty"`
}

type PaginatedResponse struct {
	Response
	Pagination Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPagination 由页码、页大小和总数计算总页数
func NewPagination(page, size int, total int64) Pagination {
	p := Pagination{Page: page, PageSize: size, TotalItems: total}
	if size > 0 {
		p.TotalPages = int((total + int64(size) - 1) / int64(size))
	}
	return p
}
