package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rl1809/cropchain/internal/adapter/handler"
	"github.com/rl1809/cropchain/internal/core/domain"
)

const (
	defaultBaseURL = "http://localhost:8080"
	initialStock   = 20
	totalRequests  = 50
	linesPerOrder  = 1
)

type client struct {
	baseURL string
	http    *http.Client
}

func (c *client) call(ctx context.Context, method, path, token string, body any, out any) (int, handler.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, handler.Response{}, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return 0, handler.Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req, out)
}

func (c *client) do(req *http.Request, out any) (int, handler.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, handler.Response{}, err
	}
	defer resp.Body.Close()

	var raw struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return resp.StatusCode, handler.Response{}, err
	}
	if out != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, out); err != nil {
			return resp.StatusCode, handler.Response{}, err
		}
	}
	return resp.StatusCode, handler.Response{Success: raw.Success, Message: raw.Message}, nil
}

// signUp registers a fresh user and logs in.
func (c *client) signUp(ctx context.Context, seller bool) (string, error) {
	name := "load-" + uuid.NewString()[:8]
	status, resp, err := c.call(ctx, http.MethodPost, "/users/register", "", domain.Registration{
		Username: name,
		Email:    name + "@example.com",
		Password: "stress-password",
		IsSeller: seller,
	}, nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("register %s: %d %s", name, status, resp.Message)
	}

	form := url.Values{"username": {name}, "password": {"stress-password"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok handler.TokenResponse
	status, resp, err = c.do(req, &tok)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("login %s: %d %s", name, status, resp.Message)
	}
	return tok.AccessToken, nil
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	ctx := context.Background()

	baseURL := os.Getenv("CROPCHAIN_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &client{baseURL: baseURL, http: &http.Client{Timeout: 10 * time.Second}}

	// Seller lists one product with limited stock
	sellerToken, err := c.signUp(ctx, true)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create seller")
	}

	var category domain.Category
	status, resp, err := c.call(ctx, http.MethodPost, "/categories", sellerToken,
		handler.CategoryRequest{Name: "stress-" + uuid.NewString()[:8]}, &category)
	if err != nil || status != http.StatusCreated {
		logger.Fatal().Err(err).Int("status", status).Str("message", resp.Message).Msg("failed to create category")
	}

	var product domain.Product
	status, resp, err = c.call(ctx, http.MethodPost, "/products", sellerToken, handler.ProductRequest{
		Title:             "Stress test harvest",
		Description:       "Limited batch",
		Price:             decimal.NewFromInt(5),
		QuantityAvailable: initialStock,
		CategoryID:        category.ID,
	}, &product)
	if err != nil || status != http.StatusCreated {
		logger.Fatal().Err(err).Int("status", status).Str("message", resp.Message).Msg("failed to create product")
	}
	logger.Info().Int64("product_id", product.ID).Int("stock", initialStock).Msg("product ready")

	// Buyers sign up before the clock starts
	tokens := make([]string, totalRequests)
	for i := range tokens {
		if tokens[i], err = c.signUp(ctx, false); err != nil {
			logger.Fatal().Err(err).Msg("failed to create buyer")
		}
	}

	// Counters
	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var errorCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()

			status, resp, err := c.call(ctx, http.MethodPost, "/orders", token, handler.PlaceOrderRequest{
				Products: []domain.LineRequest{{ProductID: product.ID, Quantity: linesPerOrder}},
			}, nil)
			switch {
			case err != nil || status >= http.StatusInternalServerError:
				errorCount.Add(1)
				logger.Error().Err(err).Int("status", status).Str("message", resp.Message).Msg("order failed")
			case resp.Success:
				successCount.Add(1)
			default:
				soldOutCount.Add(1)
			}
		}(tokens[i])
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	soldOut := soldOutCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Rejected:         %d\n", soldOut)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialStock && soldOut == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d orders succeeded, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d rejected, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, soldOut)
	}

	// Verify final stock through the owner's view
	var final domain.Product
	if _, _, err := c.call(ctx, http.MethodGet, fmt.Sprintf("/products/%d", product.ID), sellerToken, nil, &final); err != nil {
		logger.Fatal().Err(err).Msg("failed to read product")
	}
	fmt.Printf("Final Stock:      %d\n", final.QuantityAvailable)

	if final.QuantityAvailable == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", final.QuantityAvailable)
	}
}
