package http

const (
	HeaderContentType = "Content-Type"
	HeaderValueJson   = "application/json"
	HeaderRequestId   = "X-Request-Id"
)

const (
	ProductBaseUrl = "http://product-service:8080/products"
)
