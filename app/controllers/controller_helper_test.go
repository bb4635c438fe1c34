package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudvps-cz/CloudVPS/internal/pkg/ares"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/payment"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env))
	return env
}

func TestJSONEnvelopes(t *testing.T) {
	app := fiber.New()
	app.Get("/ok", func(c *fiber.Ctx) error {
		return jsonSuccess(c, fiber.Map{"value": 42})
	})
	app.Get("/fail", func(c *fiber.Ctx) error {
		return jsonError(c, fiber.StatusBadRequest, "bad input")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ok", nil))
	require.NoError(t, err)
	env := decodeEnvelope(t, resp)
	assert.True(t, env.Success)
	assert.NotNil(t, env.Data)
	assert.Empty(t, env.Error)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/fail", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	env = decodeEnvelope(t, resp)
	assert.False(t, env.Success)
	assert.Equal(t, "bad input", env.Error)
	// error responses never carry a data field
	assert.Nil(t, env.Data)
}

func TestValidationMessage(t *testing.T) {
	err := validate.Struct(payment.StartOrderInput{})
	require.Error(t, err)

	msg := validationMessage(err)
	assert.Contains(t, msg, "validation failed")
	assert.Contains(t, msg, "Email")

	assert.Equal(t, "invalid request body", validationMessage(assert.AnError))
}

func TestCompanyLookupValidatesBeforeNetwork(t *testing.T) {
	called := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ico":"12345678","obchodniJmeno":"Test s.r.o."}`))
	}))
	defer upstream.Close()

	SetAresClient(&ares.Client{BaseURL: upstream.URL, HTTPClient: upstream.Client()})

	app := fiber.New()
	app.Get("/api/v1/company/:ico", HandleAPICompanyLookup)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/company/123", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.False(t, called)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/company/12345678", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, called)

	env := decodeEnvelope(t, resp)
	assert.True(t, env.Success)

	var company ares.Company
	require.NoError(t, json.Unmarshal(env.Data, &company))
	assert.Equal(t, "Test s.r.o.", company.Name)
}

func TestGatewayAckFormats(t *testing.T) {
	app := fiber.New()
	app.Get("/ack/:gateway", func(c *fiber.Ctx) error {
		return gatewayAck(c, c.Params("gateway"))
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ack/comgate", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "code=0&message=OK", string(body))

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/ack/payu", nil))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"status":"OK"}`, string(body))
}
