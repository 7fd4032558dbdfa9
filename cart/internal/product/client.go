package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/skatehub/ecommerce/cart/internal/common/otel"
	inErrors "github.com/skatehub/ecommerce/internal/common/errors"
	inHttp "github.com/skatehub/ecommerce/internal/common/http"
	"github.com/skatehub/ecommerce/internal/log"
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
}

// Lookup is the narrow interface the cart consumes from the product catalog.
// The catalog is read-only from the cart's perspective.
type Lookup interface {
	FindById(c context.Context, productId string) (Product, error)
}

type Client struct {
	baseUrl string
	client  *http.Client
}

func NewClient(baseUrl string) Client {
	if baseUrl == "" {
		baseUrl = inHttp.ProductBaseUrl
	}
	return Client{baseUrl: baseUrl, client: otelhttp.DefaultClient}
}

// FindById fetches the live product by id. A 404 from the catalog maps to
// ErrProductNotFound.
func (cl Client) FindById(c context.Context, productId string) (Product, error) {
	c, span := otel.Tracer.Start(c, "ProductClient FindById")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "ProductClient FindById").
		Str(log.KeyProductID, productId).
		Logger()

	req, err := http.NewRequestWithContext(
		c,
		http.MethodGet,
		cl.baseUrl+"/"+productId,
		nil,
	)
	if err != nil {
		err = fmt.Errorf("failed creating request for productId=%s with error=%w", productId, err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Product{}, err
	}
	if requestId := log.RequestIDFromContext(c); requestId != "" {
		req.Header.Add(inHttp.HeaderRequestId, requestId)
	}

	resp, err := cl.client.Do(req)
	if err != nil {
		err = fmt.Errorf("failed getting productId=%s with error=%w", productId, err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Product{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		logger.Info().Msgf("productId=%s not found", productId)
		return Product{}, inErrors.ErrProductNotFound
	}
	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf(
			"product service returned status code=%d for productId=%s",
			resp.StatusCode,
			productId,
		)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Product{}, err
	}

	respBody := struct {
		Data struct {
			Product Product `json:"product"`
		} `json:"data"`
	}{}
	err = json.NewDecoder(resp.Body).Decode(&respBody)
	if err != nil {
		err = fmt.Errorf("failed decoding productId=%s response with error=%w", productId, err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Product{}, err
	}
	if respBody.Data.Product.ID == "" {
		return Product{}, errors.New("product service returned empty product")
	}

	return respBody.Data.Product, nil
}
