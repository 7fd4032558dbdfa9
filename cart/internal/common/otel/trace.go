package otel

import (
	"go.opentelemetry.io/otel"

	"github.com/skatehub/ecommerce/internal/common/constants"
)

var Tracer = otel.Tracer(constants.AppCartService)
