package log

const (
	KeyAppName       = "app"
	KeyTag           = "tag"
	KeyProcess       = "process"
	KeyConfig        = "config"
	KeyRequestID     = "requestId"
	KeyRequestBody   = "requestBody"
	KeyRequestHost   = "host"
	KeyRequestIp     = "requesterIP"
	KeyRequestMethod = "requestMethod"
	KeyRequestURI    = "requestURI"
	KeyRequestURL    = "requestURL"
	KeyUserID        = "userId"
	KeyCartID        = "cartId"
	KeyProductID     = "productId"
	KeyQuantity      = "quantity"
	KeyCart          = "cart"
	KeyCartStats     = "cartStats"
	KeyCacheKey      = "cacheKey"
	KeyLockKey       = "lockKey"
	KeyToken         = "token"
	KeyMongoURI      = "mongoUri"
)
