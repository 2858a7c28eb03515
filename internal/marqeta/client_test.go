package marqeta

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"nexus-terminal-go/internal/activity"
	"nexus-terminal-go/internal/gateway"
	"nexus-terminal-go/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gw := gateway.NewWithClient(srv.Client(), models.GatewayConfig{
		MarqetaBaseURL: srv.URL + "/v3",
	}, activity.NewLog(activity.DefaultCapacity)).WithCredentials(models.Credentials{
		Marqeta: models.MarqetaCredentials{ApplicationToken: "app", AdminAccessToken: "admin"},
	})
	return NewClient(gw, models.ProviderProfile{})
}

func TestListCardProducts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"token":"cp_1","name":"Reloadable","active":true,"config":{"x":1}}]}`))
	})

	products, err := c.ListCardProducts(context.Background())
	if err != nil {
		t.Fatalf("ListCardProducts: %v", err)
	}
	if len(products) != 1 || products[0].Token != "cp_1" || !products[0].Active {
		t.Errorf("products = %+v", products)
	}
}

func TestListCardProductsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	products, err := c.ListCardProducts(context.Background())
	if err != nil {
		t.Fatalf("ListCardProducts: %v", err)
	}
	if products == nil || len(products) != 0 {
		t.Errorf("products = %#v, want empty non-nil", products)
	}
}

func TestCreateCardProductDefaults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body createCardProductRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !strings.HasPrefix(body.Token, "cp_") || body.Name != "Nexus Elite V1" || !body.Active {
			t.Errorf("request = %+v", body)
		}
		cfg := body.Config
		if cfg.PaymentInstrument != "VIRTUAL_PAN" || !cfg.CardLifeCycle.ActivateUponIssue {
			t.Errorf("config = %+v", cfg)
		}
		if cfg.CardLifeCycle.ExpirationOffset != (expirationOffset{Unit: "YEARS", Value: 5}) {
			t.Errorf("expiration = %+v", cfg.CardLifeCycle.ExpirationOffset)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"token":"` + body.Token + `"}`))
	})

	token, err := c.CreateCardProduct(context.Background())
	if err != nil {
		t.Fatalf("CreateCardProduct: %v", err)
	}
	if !strings.HasPrefix(token, "cp_") {
		t.Errorf("token = %q", token)
	}
}

func TestCreateCardDisclosesPan(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("show_pan") != "true" || r.URL.Query().Get("show_cvv_number") != "true" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		w.Write([]byte(`{"token":"c1","user_token":"u_1","card_product_token":"cp_1","last_four":"4321",
			"pan":"1111222233334321","expiration":"0130","cvv_number":"123","state":"ACTIVE"}`))
	})

	card, err := c.CreateCard(context.Background(), "u_1", "cp_1")
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}
	if card.Cvv != "123" || card.Pan != "1111222233334321" || card.State != "ACTIVE" {
		t.Errorf("card = %+v", card)
	}
}

func TestCreateUserRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error_code":"400","error_message":"token already exists"}`))
	})

	err := c.CreateUser(context.Background(), "u_dup")
	var perr *gateway.ProviderError
	if !errors.As(err, &perr) || perr.Message != "token already exists" {
		t.Errorf("err = %v", err)
	}
}

func TestDisplayPan(t *testing.T) {
	tests := []struct {
		card models.IssuedCard
		want string
	}{
		{models.IssuedCard{Pan: "1111222233334444"}, "1111 2222 3333 4444"},
		{models.IssuedCard{Pan: "123456"}, "1234 56"},
		{models.IssuedCard{LastFour: "9876"}, "**** **** **** 9876"},
	}
	for _, tt := range tests {
		if got := DisplayPan(tt.card); got != tt.want {
			t.Errorf("DisplayPan(%+v) = %q, want %q", tt.card, got, tt.want)
		}
	}
}

func TestNewToken(t *testing.T) {
	a, b := NewToken("u_"), NewToken("u_")
	if a == b {
		t.Error("tokens should be unique")
	}
	if len(a) != 12 || !strings.HasPrefix(a, "u_") {
		t.Errorf("token = %q", a)
	}
}
