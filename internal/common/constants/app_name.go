package constants

const (
	AppCartService    = "cart-service"
	AppProductService = "product-service"
	AppUserService    = "user-service"
	AppMainEcommerce  = "main ecommerce"
	AudienceUser      = "audience-user"
)
