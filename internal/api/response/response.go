package response

import "github.com/gin-gonic/gin"

const (
	CodeSuccess = 0
)

const (
	ErrUnauthorized = 10001
	ErrTokenExpired = 10002
	ErrForbidden    = 10003
	ErrRateLimited  = 10004
)

const (
	ErrGiftCardNotFound    = 20001
	ErrGiftCardNotActive   = 20002
	ErrInsufficientBalance = 20003
	ErrGiftCardApplied     = 20004
	ErrCodeSpaceExhausted  = 20005
)

const (
	ErrOrderNotFound    = 30001
	ErrOrderLocked      = 30002
	ErrEditWindowClosed = 30003
	ErrDeadlinePassed   = 30004
	ErrAlreadySubmitted = 30005
	ErrOrderConflict    = 30006
)

const (
	ErrInvalidRequest   = 40001
	ErrValidationFailed = 40002
)

const (
	ErrInternal = 99999
)

type Response struct {
	Code       int         `json:"code"`
	Message    string      `json:"message"`
	Data       any         `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

func Success(c *gin.Context, data any) {
	c.JSON(200, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Paginated(c *gin.Context, data any, page, pageSize int, total int64) {
	c.JSON(200, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
		Pagination: &Pagination{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		},
	})
}

func Fail(c *gin.Context, httpStatus, appCode int, message string) {
	c.JSON(httpStatus, Response{
		Code:    appCode,
		Message: message,
	})
}
